package triage

import (
	"testing"

	"kerneural/internal/event"
)

func TestShouldSynthesize(t *testing.T) {
	tests := []struct {
		priority event.Priority
		want     bool
	}{
		{event.PriorityWarning, true},
		{event.PriorityError, true},
		{event.PriorityCritical, true},
		{event.PriorityNotice, true},
		{"warning", true},
		{event.PriorityInformational, false},
		{"Info", false},
		{event.PriorityDebug, false},
		{event.PriorityEmergency, false},
		{event.PriorityAlert, false},
		{"", false},
		{"Bogus", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			ev := event.Event{Priority: tt.priority, Rule: "Terminal shell in container"}
			if got := ShouldSynthesize(ev); got != tt.want {
				t.Errorf("ShouldSynthesize(%q) = %v, want %v", tt.priority, got, tt.want)
			}
		})
	}
}

func TestShouldSynthesize_IgnoresMissingFields(t *testing.T) {
	ev := event.Event{Priority: event.PriorityCritical}
	if !ShouldSynthesize(ev) {
		t.Error("missing rule name and output fields must not affect triage")
	}
}
