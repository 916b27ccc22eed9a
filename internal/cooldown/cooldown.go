// Package cooldown suppresses repeated synthesis for the same triggering rule.
package cooldown

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a key may trigger synthesis now. Allow marks the
// key as used when it returns true.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// Memory is an in-process Limiter backed by an expiring LRU.
type Memory struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, time.Time]
}

// NewMemory creates a Memory limiter tracking at most size keys for ttl.
func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = 1024
	}
	return &Memory{cache: expirable.NewLRU[string, time.Time](size, nil, ttl)}
}

func (m *Memory) Allow(_ context.Context, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.cache.Get(key); ok {
		return false
	}
	m.cache.Add(key, time.Now())
	return true
}

// RedisConfig holds connection settings for the shared limiter.
type RedisConfig struct {
	Addr       string `yaml:"addr" json:"addr"`
	Password   string `yaml:"password,omitempty" json:"-"`
	DB         int    `yaml:"db" json:"db"`
	TLSEnabled bool   `yaml:"tls_enabled" json:"tls_enabled"`
	KeyPrefix  string `yaml:"key_prefix" json:"key_prefix"`
}

type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Redis is a Limiter shared between instances through SET NX with a TTL.
// It fails open: when Redis is unreachable synthesis is allowed.
type Redis struct {
	client setNXer
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedis creates a Redis limiter.
func NewRedis(client setNXer, prefix string, ttl time.Duration, logger *slog.Logger) *Redis {
	if prefix == "" {
		prefix = "kerneural:cooldown:"
	}
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *Redis) Allow(ctx context.Context, key string) bool {
	ok, err := r.client.SetNX(ctx, r.prefix+key, time.Now().Unix(), r.ttl).Result()
	if err != nil {
		r.logger.Warn("cooldown check failed, allowing synthesis", "key", key, "error", err)
		return true
	}
	return ok
}
