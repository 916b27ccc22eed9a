// Package pipeline drives alerts from the event stream through synthesis,
// validation and persistence to an engine reload.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"kerneural/internal/audit"
	"kerneural/internal/cooldown"
	"kerneural/internal/event"
	"kerneural/internal/logging"
	"kerneural/internal/metrics"
	"kerneural/internal/queue"
	"kerneural/internal/rules"
	"kerneural/internal/synth"
)

// DefaultPollInterval is the backoff used when the stream has no new event.
const DefaultPollInterval = 500 * time.Millisecond

// Outcome is how a cycle ended.
type Outcome string

const (
	OutcomeIgnored         Outcome = "ignored"
	OutcomeSuppressed      Outcome = "suppressed"
	OutcomeSynthesisFailed Outcome = "synthesis_failed"
	OutcomeRejected        Outcome = "rejected"
	OutcomePersistFailed   Outcome = "persist_failed"
	OutcomeApplied         Outcome = "applied"
	OutcomeReloadFailed    Outcome = "reload_failed"
)

// Source yields events without blocking.
type Source interface {
	Next() (event.Event, bool, error)
}

// RuleStore persists accepted rule batches.
type RuleStore interface {
	Append(batch []rules.Definition) error
	Names() (map[string]struct{}, error)
	Path() string
}

// Reloader asks the engine to pick up the rule store.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Archiver copies the rule store somewhere durable.
type Archiver interface {
	Snapshot(ctx context.Context, file string) (string, error)
}

// Recorder receives one record per finished cycle.
type Recorder interface {
	Record(ctx context.Context, rec audit.Record)
}

// Options wires an Orchestrator. Source, Synthesizer, Validator, Store and
// Reloader are required.
type Options struct {
	Source      Source
	Triage      func(event.Event) bool
	Synthesizer synth.Synthesizer
	Validator   *rules.Validator
	Store       RuleStore
	Reloader    Reloader

	Cooldown cooldown.Limiter
	Recorder Recorder
	Archiver Archiver
	Metrics  *metrics.Metrics
	Recent   *queue.RingBuffer

	PollInterval     time.Duration
	RejectDuplicates bool
	Logger           *slog.Logger
}

// Orchestrator runs the single-threaded pipeline loop.
type Orchestrator struct {
	opts   Options
	status *StatusTracker
	logger *slog.Logger
	newID  func() string
}

// New validates opts and creates an Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	switch {
	case opts.Source == nil:
		return nil, errors.New("pipeline: event source is required")
	case opts.Synthesizer == nil:
		return nil, errors.New("pipeline: synthesizer is required")
	case opts.Validator == nil:
		return nil, errors.New("pipeline: validator is required")
	case opts.Store == nil:
		return nil, errors.New("pipeline: rule store is required")
	case opts.Reloader == nil:
		return nil, errors.New("pipeline: reloader is required")
	}
	if opts.Triage == nil {
		return nil, errors.New("pipeline: triage function is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Orchestrator{
		opts:   opts,
		status: NewStatusTracker(),
		logger: opts.Logger,
		newID:  func() string { return uuid.NewString() },
	}, nil
}

// Status returns the current pipeline status.
func (o *Orchestrator) Status() Status {
	return o.status.Snapshot()
}

// Subscribe streams status changes. See StatusTracker.Subscribe.
func (o *Orchestrator) Subscribe(buffer int) (<-chan Status, func()) {
	return o.status.Subscribe(buffer)
}

// Recent returns up to n recently received alerts, newest first.
func (o *Orchestrator) Recent(n int) []event.Event {
	if o.opts.Recent == nil {
		return nil
	}
	return o.opts.Recent.Recent(n)
}

// Run processes events in stream order until ctx is cancelled. No pipeline
// failure ends the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline started", "poll_interval", o.opts.PollInterval)

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if ctx.Err() != nil {
			o.logger.Info("pipeline stopped")
			return nil
		}

		processed, err := o.Step(ctx)
		if err != nil {
			o.logger.Warn("event source error", "error", err)
		}
		if processed {
			continue
		}

		timer.Reset(o.opts.PollInterval)
		select {
		case <-ctx.Done():
			o.logger.Info("pipeline stopped")
			return nil
		case <-timer.C:
		}
	}
}

// Step reads at most one event and runs it through the pipeline. It reports
// whether an event was processed.
func (o *Orchestrator) Step(ctx context.Context) (bool, error) {
	ev, ok, err := o.opts.Source.Next()
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	o.Process(ctx, ev)
	return true, nil
}

// cycle carries the bookkeeping for one event.
type cycle struct {
	start  time.Time
	record audit.Record
}

// Process runs one event through the state machine and returns how the
// cycle ended. The pipeline is back in Monitoring when it returns.
func (o *Orchestrator) Process(ctx context.Context, ev event.Event) Outcome {
	c := &cycle{
		start: time.Now(),
		record: audit.Record{
			CycleID:   o.newID(),
			EventRule: ev.Rule,
			Priority:  string(ev.Priority),
			Hostname:  ev.Hostname,
		},
	}

	o.status.update(func(s *Status) {
		s.EventCount++
		s.CycleID = c.record.CycleID
		s.Phase = PhaseTriaging
		s.LastAction = fmt.Sprintf("Received %s alert: %s", ev.Priority, ev.Rule)
	})
	if o.opts.Recent != nil {
		o.opts.Recent.Push(ev)
	}
	if o.opts.Metrics != nil {
		o.opts.Metrics.ObserveEvent(string(ev.Priority))
	}

	if !o.opts.Triage(ev) {
		return o.finish(ctx, c, OutcomeIgnored, "", fmt.Sprintf("Ignored %s alert: %s", ev.Priority, ev.Rule))
	}
	if o.opts.Cooldown != nil && !o.opts.Cooldown.Allow(ctx, ev.Rule) {
		return o.finish(ctx, c, OutcomeSuppressed, "cooldown active",
			fmt.Sprintf("Skipped %s: a rule was synthesized for it recently", ev.Rule))
	}

	candidate, err := o.synthesize(ctx, ev)
	if err != nil {
		o.status.update(func(s *Status) { s.SynthesisFailures++ })
		return o.finish(ctx, c, OutcomeSynthesisFailed, err.Error(), "Synthesis failed: "+err.Error())
	}

	o.status.transition(PhaseValidating, "Validating candidate rule")
	report, err := o.opts.Validator.Validate(candidate)
	if err == nil && o.opts.RejectDuplicates {
		err = o.checkDuplicates(report.Rules)
	}
	if err != nil {
		o.status.update(func(s *Status) { s.Rejections++ })
		o.logger.Warn("rule candidate rejected", "cycle_id", c.record.CycleID, "error", err)
		return o.finish(ctx, c, OutcomeRejected, err.Error(), "Rejected candidate: "+err.Error())
	}
	names := rules.Names(report.Rules)
	c.record.Rules = names
	c.record.Fixes = len(report.Fixes)

	o.status.transition(PhasePersisting, "Writing "+strings.Join(names, ", "))
	if err := o.opts.Store.Append(report.Rules); err != nil {
		o.logger.Error("rule store append failed", "cycle_id", c.record.CycleID, "error", err)
		return o.finish(ctx, c, OutcomePersistFailed, err.Error(), "Rule store write failed: "+err.Error())
	}
	o.status.update(func(s *Status) { s.RulesApplied += uint64(len(report.Rules)) })
	if o.opts.Metrics != nil {
		o.opts.Metrics.RulesAppliedTotal.Add(float64(len(report.Rules)))
		o.opts.Metrics.FixesTotal.Add(float64(len(report.Fixes)))
	}

	// The rule is on disk: the engine must be reloaded even if a stop was
	// requested meanwhile.
	tailCtx := context.WithoutCancel(ctx)

	o.status.transition(PhaseReloading, "Reloading detection engine")
	start := time.Now()
	err = o.opts.Reloader.Reload(tailCtx)
	if o.opts.Metrics != nil {
		o.opts.Metrics.ReloadSeconds.Observe(time.Since(start).Seconds())
	}
	o.archive(tailCtx)

	if err != nil {
		o.status.update(func(s *Status) { s.ReloadFailures++ })
		return o.finish(tailCtx, c, OutcomeReloadFailed, err.Error(),
			fmt.Sprintf("Applied %s; engine reload failed: %v", strings.Join(names, ", "), err))
	}

	return o.finish(tailCtx, c, OutcomeApplied, "", fmt.Sprintf("Applied %s; engine reloaded", strings.Join(names, ", ")))
}

func (o *Orchestrator) synthesize(ctx context.Context, ev event.Event) (string, error) {
	o.status.transition(PhaseSynthesizing, "Synthesizing rule for "+ev.Rule)

	redacted := ev
	redacted.OutputFields = logging.RedactFields(ev.OutputFields)
	redacted.Output = logging.MaskSensitivePatterns(ev.Output)
	payload, err := redacted.Serialize()
	if err != nil {
		return "", fmt.Errorf("%w: %w", synth.ErrSynthesis, err)
	}

	start := time.Now()
	candidate, err := o.opts.Synthesizer.Synthesize(ctx, payload)
	if o.opts.Metrics != nil {
		o.opts.Metrics.SynthesisSeconds.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(candidate) == "" {
		return "", fmt.Errorf("%w: %w", synth.ErrSynthesis, synth.ErrEmptyCandidate)
	}
	return candidate, nil
}

func (o *Orchestrator) checkDuplicates(batch []rules.Definition) error {
	existing, err := o.opts.Store.Names()
	if err != nil {
		return &rules.Rejection{Kind: rules.KindSchema, Index: -1, Field: "rule",
			Reason: fmt.Sprintf("cannot read existing rule names: %v", err)}
	}
	return rules.CheckDuplicates(batch, existing)
}

func (o *Orchestrator) archive(ctx context.Context) {
	if o.opts.Archiver == nil {
		return
	}
	key, err := o.opts.Archiver.Snapshot(ctx, o.opts.Store.Path())
	if err != nil {
		o.logger.Warn("rule store archive failed", "error", err)
		return
	}
	o.logger.Debug("rule store archived", "key", key)
}

// finish returns the pipeline to Monitoring and records the cycle.
func (o *Orchestrator) finish(ctx context.Context, c *cycle, outcome Outcome, reason, action string) Outcome {
	o.status.transition(PhaseMonitoring, action)

	c.record.Time = time.Now().UTC()
	c.record.Outcome = string(outcome)
	c.record.Reason = reason
	c.record.Duration = time.Since(c.start)

	if o.opts.Metrics != nil {
		o.opts.Metrics.ObserveOutcome(string(outcome))
	}
	if o.opts.Recorder != nil {
		o.opts.Recorder.Record(context.WithoutCancel(ctx), c.record)
	}
	return outcome
}
