package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores cached node outputs in Redis, JSON-encoded, with an
// optional TTL. It lets concurrent processes share one memoization layer; the
// engine's at-most-one-store-per-execution invariant still holds per process,
// while racing writers across processes resolve to last-write-wins.
type RedisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

// Compile-time check that RedisBackend implements Backend.
var _ Backend = (*RedisBackend)(nil)

// RedisOption configures a RedisBackend.
type RedisOption func(*RedisBackend)

// WithTTL sets the expiry for stored entries. Zero (the default) stores
// entries without expiry.
func WithTTL(ttl time.Duration) RedisOption {
	return func(backend *RedisBackend) {
		backend.ttl = ttl
	}
}

// NewRedisBackend wraps an existing go-redis client as a cache Backend.
func NewRedisBackend(client *redis.Client, opts ...RedisOption) *RedisBackend {
	backend := &RedisBackend{client: client}
	for _, opt := range opts {
		opt(backend)
	}
	return backend
}

// Get fetches and decodes the value stored under key. A missing key is not
// an error.
func (backend *RedisBackend) Get(ctx context.Context, key string) (any, bool, error) {
	raw, err := backend.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: redis get %q: %w", key, err)
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, fmt.Errorf("cache: corrupt entry for %q: %w", key, err)
	}
	return value, true, nil
}

// Set JSON-encodes value and stores it under key with the configured TTL.
func (backend *RedisBackend) Set(ctx context.Context, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: value for %q is not JSON-serializable: %w", key, err)
	}

	if err := backend.client.Set(ctx, key, encoded, backend.ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set %q: %w", key, err)
	}
	return nil
}
