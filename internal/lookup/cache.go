package lookup

import (
	"context"
	"sync"
)

// Cache holds a value loaded on first use. It moves from unloaded to loaded
// only when a load succeeds; a failed load leaves it unloaded so the next
// call retries. There is no invalidation.
type Cache[T any] struct {
	mu     sync.Mutex
	load   func(context.Context) (T, error)
	value  T
	loaded bool
}

// NewCache returns an unloaded cache backed by load.
func NewCache[T any](load func(context.Context) (T, error)) *Cache[T] {
	return &Cache[T]{load: load}
}

// EnsureLoaded returns the cached value, loading it first if needed.
// Concurrent callers wait for a single load.
func (c *Cache[T]) EnsureLoaded(ctx context.Context) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.value, nil
	}
	v, err := c.load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.value, c.loaded = v, true
	return v, nil
}

// IsLoaded reports whether a load has succeeded.
func (c *Cache[T]) IsLoaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}
