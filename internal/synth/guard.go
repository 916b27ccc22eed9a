package synth

import "time"

// Guard suspends synthesis for a cooldown after too many consecutive
// failures. A nil *Guard always allows. Guard is not safe for concurrent use.
type Guard struct {
	maxFailures   int
	cooldown      time.Duration
	failures      int
	disabledUntil time.Time
	now           func() time.Time
}

// NewGuard creates a Guard. maxFailures <= 0 never suspends.
func NewGuard(maxFailures int, cooldown time.Duration) *Guard {
	return &Guard{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

func (g *Guard) Allow() bool {
	if g == nil || g.disabledUntil.IsZero() {
		return true
	}
	if g.now().After(g.disabledUntil) {
		// Half-open: one more failure re-arms the cooldown.
		g.failures = g.maxFailures - 1
		g.disabledUntil = time.Time{}
		return true
	}
	return false
}

func (g *Guard) RecordFailure() {
	if g == nil || g.maxFailures <= 0 {
		return
	}
	g.failures++
	if g.failures >= g.maxFailures {
		g.disabledUntil = g.now().Add(g.cooldown)
	}
}

func (g *Guard) RecordSuccess() {
	if g == nil {
		return
	}
	g.failures = 0
	g.disabledUntil = time.Time{}
}

func (g *Guard) DisabledUntil() time.Time {
	if g == nil {
		return time.Time{}
	}
	return g.disabledUntil
}

func (g *Guard) Failures() int {
	if g == nil {
		return 0
	}
	return g.failures
}
