// Package cache provides small, injectable in-process caches. Each service
// owns its cache instances via constructor injection; there is no ambient
// package-level state.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	cachedAt time.Time
}

// TTLCache is a string-keyed cache whose entries expire after a fixed TTL.
// A full mutex around each read-modify-write cycle is sufficient for this
// low-contention, small-footprint state. The clock is injectable so TTL
// behavior is deterministic under test.
type TTLCache[V any] struct {
	mu  sync.Mutex
	m   map[string]entry[V]
	ttl time.Duration
	now func() time.Time
}

// NewTTLCache creates a cache with the given TTL. A nil now falls back to
// time.Now.
func NewTTLCache[V any](ttl time.Duration, now func() time.Time) *TTLCache[V] {
	if now == nil {
		now = time.Now
	}
	return &TTLCache[V]{
		m:   make(map[string]entry[V]),
		ttl: ttl,
		now: now,
	}
}

// Get returns the cached value when a fresh entry exists. Stale entries are
// removed on access.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[key]
	if !ok {
		var zero V
		return zero, false
	}
	if c.now().Sub(e.cachedAt) >= c.ttl {
		delete(c.m, key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value with a fresh timestamp.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = entry[V]{value: value, cachedAt: c.now()}
}

// Delete removes one entry.
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

// Purge drops all entries.
func (c *TTLCache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string]entry[V])
}

// Len returns the number of entries, including any not yet evicted stale ones.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
