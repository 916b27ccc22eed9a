// Package synth obtains candidate Falco rules from a language model.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	// ErrSynthesis wraps every failed synthesis call.
	ErrSynthesis = errors.New("synth: synthesis failed")
	// ErrEmptyCandidate is returned when the model answered with no text.
	ErrEmptyCandidate = errors.New("synth: empty candidate")
	// ErrGuardOpen is returned while synthesis is suspended after repeated failures.
	ErrGuardOpen = errors.New("synth: suspended after repeated failures")
)

// Synthesizer turns a serialized event into candidate rule text.
type Synthesizer interface {
	Synthesize(ctx context.Context, serializedEvent string) (string, error)
}

// SynthesizerFunc adapts a function to the Synthesizer interface.
type SynthesizerFunc func(ctx context.Context, serializedEvent string) (string, error)

// Synthesize calls f.
func (f SynthesizerFunc) Synthesize(ctx context.Context, serializedEvent string) (string, error) {
	return f(ctx, serializedEvent)
}

// Bounded wraps a Synthesizer with a per-call timeout and a failure guard.
// Every error it returns wraps ErrSynthesis.
type Bounded struct {
	next    Synthesizer
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	guard *Guard
}

// NewBounded wraps next. A zero timeout disables the deadline and a nil guard
// disables suspension.
func NewBounded(next Synthesizer, timeout time.Duration, guard *Guard, logger *slog.Logger) *Bounded {
	return &Bounded{
		next:    next,
		timeout: timeout,
		guard:   guard,
		logger:  logger,
	}
}

// Synthesize requests a candidate for serializedEvent.
func (b *Bounded) Synthesize(ctx context.Context, serializedEvent string) (string, error) {
	b.mu.Lock()
	allowed := b.guard.Allow()
	until := b.guard.DisabledUntil()
	b.mu.Unlock()
	if !allowed {
		return "", fmt.Errorf("%w: %w until %s", ErrSynthesis, ErrGuardOpen, until.Format(time.RFC3339))
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	start := time.Now()
	candidate, err := b.next.Synthesize(ctx, serializedEvent)
	if err == nil && strings.TrimSpace(candidate) == "" {
		err = ErrEmptyCandidate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.guard.RecordFailure()
		b.logger.Warn("synthesis failed",
			"error", err,
			"duration", time.Since(start),
			"consecutive_failures", b.guard.Failures(),
		)
		if errors.Is(err, ErrSynthesis) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrSynthesis, err)
	}

	b.guard.RecordSuccess()
	b.logger.Debug("synthesis completed", "duration", time.Since(start), "bytes", len(candidate))
	return candidate, nil
}
