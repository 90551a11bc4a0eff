// Package inmem provides an in-memory memory.Client for development and
// testing.
package inmem

import (
	"context"
	"sync"

	"goa.design/toolforge/features/memory"
)

// Client is an in-memory implementation of memory.Client. It is safe for
// concurrent use.
type Client struct {
	mu     sync.RWMutex
	values map[string]any
}

// Compile-time check that Client implements memory.Client.
var _ memory.Client = (*Client)(nil)

// New creates a new in-memory client.
func New() *Client {
	return &Client{values: make(map[string]any)}
}

// Get retrieves a value, returning memory.ErrNotFound for missing keys.
func (c *Client) Get(_ context.Context, scopeKey, namespace, key string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.values[compose(scopeKey, namespace, key)]
	if !ok {
		return nil, memory.ErrNotFound
	}
	return value, nil
}

// Set stores a value.
func (c *Client) Set(_ context.Context, scopeKey, namespace, key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[compose(scopeKey, namespace, key)] = value
	return nil
}

// Delete removes a value. Deleting a missing key is not an error.
func (c *Client) Delete(_ context.Context, scopeKey, namespace, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, compose(scopeKey, namespace, key))
	return nil
}

func compose(scopeKey, namespace, key string) string {
	return scopeKey + "|" + namespace + "|" + key
}
