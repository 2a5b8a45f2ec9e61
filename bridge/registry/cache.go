package registry

import (
	"context"
	"sync"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/bridge/clock"
)

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a TTL cache shared by every pipeline instance. Entries are replaced
// as a whole on refresh and handed out by value, so callers never patch them.
type Cache[V any] struct {
	mu      sync.RWMutex
	clock   clock.Clock
	ttl     time.Duration
	entries map[string]cacheEntry[V]
}

func NewCache[V any](ttl time.Duration, clk clock.Clock) *Cache[V] {
	if clk == nil {
		clk = clock.System()
	}
	return &Cache[V]{
		clock:   clk,
		ttl:     ttl,
		entries: make(map[string]cacheEntry[V]),
	}
}

// Get returns the value stored under key if it has not expired
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || !c.clock.Now().Before(entry.expiresAt) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set replaces the value stored under key
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry[V]{value: value, expiresAt: c.clock.Now().Add(c.ttl)}
}

// Invalidate drops key
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// GetOrLoad returns the cached value or calls load and stores its result.
// A failed load leaves the previous entry untouched.
func (c *Cache[V]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}
