package pipeline

import (
	"testing"
)

func TestStatusTracker_Initial(t *testing.T) {
	st := NewStatusTracker().Snapshot()
	if st.Phase != PhaseMonitoring {
		t.Errorf("initial phase = %s", st.Phase)
	}
	if st.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}

func TestStatusTracker_Subscribe(t *testing.T) {
	tracker := NewStatusTracker()
	ch, cancel := tracker.Subscribe(4)

	tracker.transition(PhaseTriaging, "triaging")
	tracker.transition(PhaseMonitoring, "done")

	first := <-ch
	second := <-ch
	if first.Phase != PhaseTriaging || second.Phase != PhaseMonitoring {
		t.Errorf("phases = %s, %s", first.Phase, second.Phase)
	}

	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	tracker.transition(PhaseValidating, "no subscribers")
}

func TestStatusTracker_SlowSubscriberDoesNotBlock(t *testing.T) {
	tracker := NewStatusTracker()
	_, cancel := tracker.Subscribe(1)
	defer cancel()

	for i := 0; i < 100; i++ {
		tracker.update(func(s *Status) { s.EventCount++ })
	}
	if got := tracker.Snapshot().EventCount; got != 100 {
		t.Errorf("EventCount = %d, want 100", got)
	}
}
