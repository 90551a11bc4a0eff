package registry

import (
	"context"
	"sync"
	"time"

	"goa.design/toolforge/runtime/tool"
)

// Cache caches registered actions per integration. Entries carry their
// insertion time and TTL explicitly so staleness is decided against an
// injectable clock rather than wall time baked into the entry.
type Cache interface {
	// Get retrieves a cached entry by key. The second return is false when
	// the key is absent or expired.
	Get(ctx context.Context, key string) ([]tool.RegisteredAction, bool, error)
	// Set stores an entry with the given TTL.
	Set(ctx context.Context, key string, actions []tool.RegisteredAction, ttl time.Duration) error
	// Delete removes a cached entry.
	Delete(ctx context.Context, key string) error
}

type (
	// MemoryCache is an in-process cache implementation with TTL support.
	// It is safe for concurrent use. Contents are not shared across
	// processes; durable storage remains the source of truth.
	MemoryCache struct {
		mu      sync.RWMutex
		entries map[string]cacheEntry
		clock   func() time.Time
	}

	cacheEntry struct {
		actions    []tool.RegisteredAction
		insertedAt time.Time
		ttl        time.Duration
	}

	// MemoryCacheOption configures a MemoryCache.
	MemoryCacheOption func(*MemoryCache)
)

// Compile-time check that MemoryCache implements Cache.
var _ Cache = (*MemoryCache)(nil)

// WithCacheClock sets the clock used for expiry decisions. Defaults to
// time.Now.
func WithCacheClock(clock func() time.Time) MemoryCacheOption {
	return func(c *MemoryCache) {
		c.clock = clock
	}
}

// NewMemoryCache creates a new in-process cache.
func NewMemoryCache(opts ...MemoryCacheOption) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]cacheEntry),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a cached entry by key, dropping it if expired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]tool.RegisteredAction, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if entry.ttl > 0 && c.clock().Sub(entry.insertedAt) > entry.ttl {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}
	return entry.actions, true, nil
}

// Set stores an entry with the given TTL.
func (c *MemoryCache) Set(_ context.Context, key string, actions []tool.RegisteredAction, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{actions: actions, insertedAt: c.clock(), ttl: ttl}
	return nil
}

// Delete removes a cached entry.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}
