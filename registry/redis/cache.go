// Package redis provides a Redis-backed implementation of the registry
// cache, for deployments that want cache contents shared across processes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"goa.design/toolforge/registry"
	"goa.design/toolforge/runtime/tool"
)

const defaultKeyPrefix = "toolforge:registry:"

type (
	// Options configures the cache.
	Options struct {
		// Client is the Redis connection. Required.
		Client *goredis.Client
		// KeyPrefix namespaces cache keys. Defaults to "toolforge:registry:".
		KeyPrefix string
	}

	// Cache implements registry.Cache on Redis. Expiry is enforced by the
	// server TTL; the envelope still records the insertion time for
	// diagnostics.
	Cache struct {
		client *goredis.Client
		prefix string
	}

	envelope struct {
		InsertedAt time.Time               `json:"insertedAt"`
		TTL        time.Duration           `json:"ttl"`
		Actions    []tool.RegisteredAction `json:"actions"`
	}
)

// Compile-time check that Cache implements registry.Cache.
var _ registry.Cache = (*Cache)(nil)

// New constructs a Redis-backed cache.
func New(opts Options) (*Cache, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Cache{client: opts.Client, prefix: prefix}, nil
}

// Get retrieves a cached entry by key.
func (c *Cache) Get(ctx context.Context, key string) ([]tool.RegisteredAction, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false, fmt.Errorf("decode cache entry %q: %w", key, err)
	}
	return env.Actions, true, nil
}

// Set stores an entry with the given TTL.
func (c *Cache) Set(ctx context.Context, key string, actions []tool.RegisteredAction, ttl time.Duration) error {
	raw, err := json.Marshal(envelope{InsertedAt: time.Now().UTC(), TTL: ttl, Actions: actions})
	if err != nil {
		return fmt.Errorf("encode cache entry %q: %w", key, err)
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Delete removes a cached entry.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}
