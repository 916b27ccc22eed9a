package synth

import (
	"testing"
	"time"
)

func TestGuard_SuspendsAfterMaxFailures(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	g := NewGuard(2, time.Minute)
	g.now = func() time.Time { return now }

	g.RecordFailure()
	if !g.Allow() {
		t.Fatal("guard suspended after one failure")
	}
	g.RecordFailure()
	if g.Allow() {
		t.Fatal("guard should be suspended after two failures")
	}
	if want := now.Add(time.Minute); !g.DisabledUntil().Equal(want) {
		t.Errorf("DisabledUntil = %v, want %v", g.DisabledUntil(), want)
	}

	now = now.Add(2 * time.Minute)
	if !g.Allow() {
		t.Fatal("guard should allow after cooldown")
	}
	g.RecordFailure()
	if g.Allow() {
		t.Error("a single failure after cooldown should suspend again")
	}
}

func TestGuard_SuccessResets(t *testing.T) {
	g := NewGuard(1, time.Hour)
	g.RecordFailure()
	if g.Allow() {
		t.Fatal("expected suspension")
	}
	g.RecordSuccess()
	if !g.Allow() || g.Failures() != 0 {
		t.Error("RecordSuccess did not reset guard")
	}
}

func TestGuard_NilAndDisabled(t *testing.T) {
	var g *Guard
	g.RecordFailure()
	if !g.Allow() {
		t.Error("nil guard must allow")
	}

	off := NewGuard(0, time.Hour)
	for i := 0; i < 10; i++ {
		off.RecordFailure()
	}
	if !off.Allow() {
		t.Error("guard with maxFailures 0 must never suspend")
	}
}
