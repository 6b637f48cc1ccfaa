package cache

import (
	"context"
	"sync"
)

// InMemoryBackend is the default Backend implementation. It stores values in
// a map guarded by a sync.RWMutex; contents are lost when the process exits.
//
// Suitable for single-process runs and tests. For shared or persistent
// caching use RedisBackend or implement Backend over another store.
type InMemoryBackend struct {
	mu   sync.RWMutex
	data map[string]any
}

// Compile-time check that InMemoryBackend implements Backend.
var _ Backend = (*InMemoryBackend)(nil)

// NewInMemoryBackend creates an empty in-memory cache backend.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{data: make(map[string]any)}
}

// Get returns the cached value for key, if present. In-memory lookups never
// fail.
func (backend *InMemoryBackend) Get(_ context.Context, key string) (any, bool, error) {
	backend.mu.RLock()
	defer backend.mu.RUnlock()

	value, exists := backend.data[key]
	return value, exists, nil
}

// Set stores value under key. In-memory writes never fail.
func (backend *InMemoryBackend) Set(_ context.Context, key string, value any) error {
	backend.mu.Lock()
	defer backend.mu.Unlock()

	backend.data[key] = value
	return nil
}

// Len returns the number of cached entries.
func (backend *InMemoryBackend) Len() int {
	backend.mu.RLock()
	defer backend.mu.RUnlock()

	return len(backend.data)
}
