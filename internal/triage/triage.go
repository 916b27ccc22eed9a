// Package triage decides which engine alerts justify a synthesis call.
package triage

import "kerneural/internal/event"

// actionable holds the priorities that warrant a new rule. Emergency and
// Alert are deliberately absent.
var actionable = map[event.Priority]bool{
	event.PriorityWarning:  true,
	event.PriorityError:    true,
	event.PriorityCritical: true,
	event.PriorityNotice:   true,
}

// ShouldSynthesize reports whether ev is important enough to send to the
// synthesizer. It has no side effects.
func ShouldSynthesize(ev event.Event) bool {
	p, ok := event.ParsePriority(string(ev.Priority))
	if !ok {
		return false
	}
	return actionable[p]
}
