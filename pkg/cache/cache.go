package cache

import (
	"sync"
	"time"
)

// Clock abstracts time for deterministic expiry in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a small in-process cache with per-cache TTL and an injected clock.
// It is owned by whichever component constructs it; there is no package-level
// shared state.
type TTL[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   Clock
	entries map[K]entry[V]
}

// NewTTL builds a cache whose entries expire ttl after being set. A zero or
// negative ttl disables caching entirely.
func NewTTL[K comparable, V any](ttl time.Duration, clock Clock) *TTL[K, V] {
	if clock == nil {
		clock = SystemClock()
	}
	return &TTL[K, V]{
		ttl:     ttl,
		clock:   clock,
		entries: map[K]entry[V]{},
	}
}

// Get returns the cached value if present and unexpired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	var zero V
	if c == nil || c.ttl <= 0 {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.clock.Now().After(item.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return item.value, true
}

// Set stores the value, replacing any previous entry.
func (c *TTL[K, V]) Set(key K, value V) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.clock.Now().Add(c.ttl)}
}

// Delete evicts the entry if present.
func (c *TTL[K, V]) Delete(key K) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of stored entries, including ones not yet reaped.
func (c *TTL[K, V]) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
