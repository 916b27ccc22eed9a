// Package audit records the outcome of every pipeline cycle.
package audit

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Record describes one pipeline cycle from event to final phase.
type Record struct {
	CycleID   string        `json:"cycle_id"`
	Time      time.Time     `json:"time"`
	Outcome   string        `json:"outcome"`
	EventRule string        `json:"event_rule"`
	Priority  string        `json:"priority"`
	Hostname  string        `json:"hostname,omitempty"`
	Rules     []string      `json:"rules,omitempty"`
	Fixes     int           `json:"fixes,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// Publisher ships records to an external sink such as Kafka.
type Publisher interface {
	PublishJSON(ctx context.Context, key string, value any) error
}

// Trail logs every record and forwards it to an optional Publisher.
// Publish failures are logged and counted, never returned.
type Trail struct {
	publisher Publisher
	logger    *slog.Logger
	timeout   time.Duration

	recorded atomic.Int64
	dropped  atomic.Int64
}

// NewTrail creates a Trail. publisher may be nil.
func NewTrail(publisher Publisher, logger *slog.Logger) *Trail {
	return &Trail{
		publisher: publisher,
		logger:    logger,
		timeout:   5 * time.Second,
	}
}

// Record writes rec to the log and the publisher.
func (t *Trail) Record(ctx context.Context, rec Record) {
	t.recorded.Add(1)
	t.logger.Info("pipeline cycle",
		"cycle_id", rec.CycleID,
		"outcome", rec.Outcome,
		"event_rule", rec.EventRule,
		"priority", rec.Priority,
		"rules", rec.Rules,
		"reason", rec.Reason,
		"duration", rec.Duration,
	)

	if t.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	if err := t.publisher.PublishJSON(ctx, rec.CycleID, rec); err != nil {
		t.dropped.Add(1)
		t.logger.Warn("audit publish failed", "cycle_id", rec.CycleID, "error", err)
	}
}

// Stats returns the number of recorded and undelivered records.
func (t *Trail) Stats() (recorded, dropped int64) {
	return t.recorded.Load(), t.dropped.Load()
}
