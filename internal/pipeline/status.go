package pipeline

import (
	"sync"
	"time"
)

// Phase is a state of the pipeline state machine.
type Phase string

const (
	PhaseMonitoring   Phase = "Monitoring"
	PhaseTriaging     Phase = "Triaging"
	PhaseSynthesizing Phase = "Synthesizing"
	PhaseValidating   Phase = "Validating"
	PhasePersisting   Phase = "Persisting"
	PhaseReloading    Phase = "Reloading"
)

// Status is a point-in-time view of the pipeline.
type Status struct {
	Phase             Phase     `json:"phase"`
	LastAction        string    `json:"last_action"`
	EventCount        uint64    `json:"event_count"`
	CycleID           string    `json:"cycle_id,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
	RulesApplied      uint64    `json:"rules_applied"`
	Rejections        uint64    `json:"rejections"`
	SynthesisFailures uint64    `json:"synthesis_failures"`
	ReloadFailures    uint64    `json:"reload_failures"`
}

// StatusTracker owns the pipeline status. Only the orchestrator writes to
// it; readers get copies through Snapshot or Subscribe.
type StatusTracker struct {
	mu     sync.RWMutex
	status Status
	subs   map[int]chan Status
	nextID int
	now    func() time.Time
}

// NewStatusTracker creates a tracker in the Monitoring phase.
func NewStatusTracker() *StatusTracker {
	t := &StatusTracker{
		subs: make(map[int]chan Status),
		now:  time.Now,
	}
	t.status = Status{
		Phase:      PhaseMonitoring,
		LastAction: "Waiting for alerts",
		UpdatedAt:  t.now(),
	}
	return t
}

// Snapshot returns the current status.
func (t *StatusTracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Subscribe returns a channel receiving every status change and a function
// that cancels the subscription. A subscriber that falls behind misses
// updates rather than blocking the pipeline.
func (t *StatusTracker) Subscribe(buffer int) (<-chan Status, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Status, buffer)

	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.subs[id] = ch
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
			close(ch)
		})
	}
}

// update applies fn under the write lock and notifies subscribers.
func (t *StatusTracker) update(fn func(*Status)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fn(&t.status)
	t.status.UpdatedAt = t.now()

	for _, ch := range t.subs {
		select {
		case ch <- t.status:
		default:
		}
	}
}

// transition moves to phase and records action.
func (t *StatusTracker) transition(phase Phase, action string) {
	t.update(func(s *Status) {
		s.Phase = phase
		s.LastAction = action
	})
}
