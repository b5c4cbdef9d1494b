package cache

import (
	"sync"
	"time"

	"insta-archive/internal/metrics"
)

// entry is a cached response body with its expiry time.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// Cache is a small in-memory TTL cache for API responses. Every entry is
// invalidated wholesale after a reconciliation run, so the TTL only bounds
// staleness between runs.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
}

// New creates a cache whose entries expire after ttl.
func New(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
}

// Get returns the cached value for key, or nil and false when the key is
// missing or expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		metrics.CacheRequestsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		metrics.CacheEntries.Set(float64(len(c.entries)))
		c.mu.Unlock()
		metrics.CacheRequestsTotal.WithLabelValues("expired").Inc()
		return nil, false
	}

	metrics.CacheRequestsTotal.WithLabelValues("hit").Inc()
	return e.value, true
}

// Set stores value under key.
func (c *Cache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
	metrics.CacheEntries.Set(float64(len(c.entries)))
}

// Clear drops all entries. Called after every successful index run so
// readers never see pre-run data past the run boundary.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry)
	metrics.CacheEntries.Set(0)
}

// Len returns the number of entries, counting expired ones not yet evicted.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
