// Package engine drives reloads of the external detection engine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"
)

// ErrReload wraps every failed reload attempt.
var ErrReload = errors.New("engine: reload failed")

// Reloader makes the engine re-read its rule files.
type Reloader interface {
	Reload(ctx context.Context) error
}

// ReloaderFunc adapts a function to the Reloader interface.
type ReloaderFunc func(ctx context.Context) error

// Reload calls f.
func (f ReloaderFunc) Reload(ctx context.Context) error {
	return f(ctx)
}

// DefaultCommand restarts the Falco container.
var DefaultCommand = []string{"docker", "restart", "falco"}

// CommandReloader runs an external command, for example `docker restart falco`.
type CommandReloader struct {
	argv    []string
	timeout time.Duration
}

// NewCommandReloader creates a CommandReloader. An empty argv uses DefaultCommand.
func NewCommandReloader(argv []string, timeout time.Duration) *CommandReloader {
	if len(argv) == 0 {
		argv = DefaultCommand
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &CommandReloader{argv: argv, timeout: timeout}
}

// Reload runs the command and returns its output on failure.
func (c *CommandReloader) Reload(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.argv[0], c.argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("%s: %w", strings.Join(c.argv, " "), err)
		}
		return fmt.Errorf("%s: %w: %s", strings.Join(c.argv, " "), err, msg)
	}
	return nil
}

// Manager invokes a Reloader and records the outcome. A failed reload leaves
// the engine on its previous rule set; it is reported, never fatal.
type Manager struct {
	reloader Reloader
	logger   *slog.Logger

	attempts atomic.Uint64
	failures atomic.Uint64
	lastErr  atomic.Value // stores string
}

// ManagerMetrics holds reload statistics.
type ManagerMetrics struct {
	Attempts  uint64 `json:"attempts"`
	Failures  uint64 `json:"failures"`
	LastError string `json:"last_error,omitempty"`
}

// NewManager creates a Manager around reloader.
func NewManager(reloader Reloader, logger *slog.Logger) *Manager {
	return &Manager{
		reloader: reloader,
		logger:   logger,
	}
}

// Reload asks the engine to reload. The returned error wraps ErrReload.
func (m *Manager) Reload(ctx context.Context) error {
	m.attempts.Add(1)
	start := time.Now()

	if err := m.reloader.Reload(ctx); err != nil {
		m.failures.Add(1)
		m.lastErr.Store(err.Error())
		m.logger.Error("engine reload failed",
			"error", err,
			"duration", time.Since(start),
		)
		return fmt.Errorf("%w: %v", ErrReload, err)
	}

	m.lastErr.Store("")
	m.logger.Info("engine reloaded", "duration", time.Since(start))
	return nil
}

// Metrics returns reload statistics.
func (m *Manager) Metrics() ManagerMetrics {
	last, _ := m.lastErr.Load().(string)
	return ManagerMetrics{
		Attempts:  m.attempts.Load(),
		Failures:  m.failures.Load(),
		LastError: last,
	}
}
