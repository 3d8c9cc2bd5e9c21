package cache

import (
	"context"
	"sync"
	"time"
)

// entry pairs a cached value with its absolute expiry.
type entry struct {
	value   string
	expires time.Time
}

// InMemory is a process-local Cache implementation used in tests and as
// a degraded fallback when no remote cache endpoint is configured. It
// never fails: Get/Set/Del are plain map operations behind a mutex.
type InMemory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewInMemory creates an empty in-memory cache.
func NewInMemory() *InMemory {
	return &InMemory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (c *InMemory) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().After(e.expires) {
		delete(c.entries, key)
		return "", false
	}
	return e.value, true
}

func (c *InMemory) Set(_ context.Context, key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: value, expires: c.now().Add(ttl)}
}

func (c *InMemory) Del(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

var _ Cache = (*InMemory)(nil)
