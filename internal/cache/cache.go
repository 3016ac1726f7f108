// Package cache provides typed in-memory caches with expiry.
package cache

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	gocache "github.com/patrickmn/go-cache"
	"github.com/raminkhorsandi/framework/internal/shared"
)

const (
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 15 * time.Minute
)

// Cache is a typed wrapper around [gocache.Cache].
type Cache[V any] struct {
	name   string
	ttl    time.Duration
	cache  *gocache.Cache
	logger *log.Logger

	// loading serializes read-through loads per cache
	loading sync.Mutex
}

// New creates a cache whose entries expire after ttl. Zero durations fall back to the defaults.
func New[V any](name string, ttl, cleanup time.Duration, logger *log.Logger) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultExpiration
	}
	if cleanup <= 0 {
		cleanup = DefaultCleanupInterval
	}
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Cache[V]{
		name:   name,
		ttl:    ttl,
		cache:  gocache.New(ttl, cleanup),
		logger: logger.With("cache", name),
	}
}

// Get returns the cached value for key.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	value, found := c.cache.Get(key)
	if !found {
		return zero, false
	}
	v, ok := value.(V)
	if !ok {
		c.logger.Error("wrong type in cache", "key", key)
		return zero, false
	}
	c.logger.Debug("cache hit", "key", key)
	return v, true
}

// Set stores value under key with the cache's ttl.
func (c *Cache[V]) Set(key string, value V) {
	c.cache.Set(key, value, c.ttl)
}

// Delete removes keys.
func (c *Cache[V]) Delete(keys ...string) {
	for _, k := range keys {
		c.cache.Delete(k)
	}
}

// Flush removes every entry.
func (c *Cache[V]) Flush() {
	c.cache.Flush()
}

// Len returns the number of entries, including expired ones not yet cleaned up.
func (c *Cache[V]) Len() int {
	return c.cache.ItemCount()
}

// Remember returns the cached value for key or loads, stores and returns it.
// Failed loads are not cached.
func (c *Cache[V]) Remember(key string, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.loading.Lock()
	defer c.loading.Unlock()
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}
