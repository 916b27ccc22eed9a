package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_ReloadSuccess(t *testing.T) {
	calls := 0
	m := NewManager(ReloaderFunc(func(ctx context.Context) error {
		calls++
		return nil
	}), testLogger())

	if err := m.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("reloader called %d times, want 1", calls)
	}

	metrics := m.Metrics()
	if metrics.Attempts != 1 || metrics.Failures != 0 {
		t.Errorf("metrics = %+v", metrics)
	}
}

func TestManager_ReloadFailureIsWrapped(t *testing.T) {
	m := NewManager(ReloaderFunc(func(ctx context.Context) error {
		return errors.New("container falco not found")
	}), testLogger())

	err := m.Reload(context.Background())
	if !errors.Is(err, ErrReload) {
		t.Fatalf("expected ErrReload, got %v", err)
	}
	if !strings.Contains(err.Error(), "container falco not found") {
		t.Errorf("error lost cause: %v", err)
	}

	metrics := m.Metrics()
	if metrics.Failures != 1 {
		t.Errorf("Failures = %d, want 1", metrics.Failures)
	}
	if metrics.LastError == "" {
		t.Error("LastError not recorded")
	}
}

func TestManager_SuccessClearsLastError(t *testing.T) {
	fail := true
	m := NewManager(ReloaderFunc(func(ctx context.Context) error {
		if fail {
			return errors.New("boom")
		}
		return nil
	}), testLogger())

	_ = m.Reload(context.Background())
	fail = false
	if err := m.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := m.Metrics().LastError; got != "" {
		t.Errorf("LastError = %q, want empty", got)
	}
}

func TestCommandReloader_Defaults(t *testing.T) {
	r := NewCommandReloader(nil, 0)
	if strings.Join(r.argv, " ") != "docker restart falco" {
		t.Errorf("argv = %v", r.argv)
	}
	if r.timeout != time.Minute {
		t.Errorf("timeout = %v", r.timeout)
	}
}

func TestCommandReloader_MissingBinary(t *testing.T) {
	r := NewCommandReloader([]string{"kerneural-no-such-binary", "restart"}, time.Second)
	if err := r.Reload(context.Background()); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
