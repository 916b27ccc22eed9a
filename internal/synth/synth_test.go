package synth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBounded_PassesCandidateThrough(t *testing.T) {
	b := NewBounded(SynthesizerFunc(func(ctx context.Context, ev string) (string, error) {
		return "- rule: x", nil
	}), time.Second, NewGuard(3, time.Minute), testLogger())

	out, err := b.Synthesize(context.Background(), "{}")
	if err != nil || out != "- rule: x" {
		t.Fatalf("Synthesize() = %q, %v", out, err)
	}
}

func TestBounded_EmptyCandidate(t *testing.T) {
	b := NewBounded(SynthesizerFunc(func(ctx context.Context, ev string) (string, error) {
		return "  \n", nil
	}), 0, nil, testLogger())

	_, err := b.Synthesize(context.Background(), "{}")
	if !errors.Is(err, ErrSynthesis) || !errors.Is(err, ErrEmptyCandidate) {
		t.Fatalf("expected ErrSynthesis and ErrEmptyCandidate, got %v", err)
	}
}

func TestBounded_TimeoutSurfacesAsFailure(t *testing.T) {
	b := NewBounded(SynthesizerFunc(func(ctx context.Context, ev string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), 20*time.Millisecond, nil, testLogger())

	start := time.Now()
	_, err := b.Synthesize(context.Background(), "{}")
	if !errors.Is(err, ErrSynthesis) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline synthesis failure, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("timeout not enforced")
	}
}

func TestBounded_GuardSuspendsCalls(t *testing.T) {
	calls := 0
	b := NewBounded(SynthesizerFunc(func(ctx context.Context, ev string) (string, error) {
		calls++
		return "", errors.New("quota exceeded")
	}), 0, NewGuard(2, time.Hour), testLogger())

	for i := 0; i < 2; i++ {
		if _, err := b.Synthesize(context.Background(), "{}"); !errors.Is(err, ErrSynthesis) {
			t.Fatalf("call %d: expected ErrSynthesis, got %v", i, err)
		}
	}

	_, err := b.Synthesize(context.Background(), "{}")
	if !errors.Is(err, ErrGuardOpen) {
		t.Fatalf("expected ErrGuardOpen, got %v", err)
	}
	if calls != 2 {
		t.Errorf("underlying synthesizer called %d times, want 2", calls)
	}
}
