package cooldown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemory_Allow(t *testing.T) {
	m := NewMemory(10, time.Hour)
	ctx := context.Background()

	if !m.Allow(ctx, "Sensitive file opened") {
		t.Fatal("first trigger should be allowed")
	}
	if m.Allow(ctx, "Sensitive file opened") {
		t.Error("repeat inside ttl should be suppressed")
	}
	if !m.Allow(ctx, "Terminal shell in container") {
		t.Error("different key should be allowed")
	}
}

func TestMemory_Expires(t *testing.T) {
	m := NewMemory(10, 20*time.Millisecond)
	ctx := context.Background()

	m.Allow(ctx, "k")
	time.Sleep(60 * time.Millisecond)
	if !m.Allow(ctx, "k") {
		t.Error("key should be allowed again after ttl")
	}
}

type fakeRedis struct {
	keys map[string]time.Duration
	err  error
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	if f.err != nil {
		return redis.NewBoolResult(false, f.err)
	}
	if _, ok := f.keys[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func TestRedis_Allow(t *testing.T) {
	fake := &fakeRedis{keys: map[string]time.Duration{}}
	r := NewRedis(fake, "", time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	if !r.Allow(ctx, "rule") {
		t.Fatal("first trigger should be allowed")
	}
	if r.Allow(ctx, "rule") {
		t.Error("repeat should be suppressed")
	}
	if ttl, ok := fake.keys["kerneural:cooldown:rule"]; !ok || ttl != time.Minute {
		t.Errorf("unexpected key state: %v", fake.keys)
	}
}

func TestRedis_FailsOpen(t *testing.T) {
	fake := &fakeRedis{err: errors.New("connection refused")}
	r := NewRedis(fake, "p:", time.Minute, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !r.Allow(context.Background(), "rule") {
		t.Error("limiter must allow when redis is unavailable")
	}
}
