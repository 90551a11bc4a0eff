// Package inmem provides an in-memory state.Store for development and
// testing.
package inmem

import (
	"context"
	"sync"

	"goa.design/toolforge/features/state"
)

// Store is an in-memory implementation of state.Store. It is safe for
// concurrent use.
type Store struct {
	mu     sync.RWMutex
	states map[string]map[string]any
}

// Compile-time check that Store implements state.Store.
var _ state.Store = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{states: make(map[string]map[string]any)}
}

// Load returns the persisted state object, empty when none was saved.
func (s *Store) Load(_ context.Context, toolID, orgID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	saved, ok := s.states[toolID+"/"+orgID]
	if !ok {
		return map[string]any{}, nil
	}
	// Shallow copy so callers cannot mutate the stored object.
	out := make(map[string]any, len(saved))
	for k, v := range saved {
		out[k] = v
	}
	return out, nil
}

// Save replaces the persisted state object.
func (s *Store) Save(_ context.Context, toolID, orgID string, st map[string]any) error {
	copied := make(map[string]any, len(st))
	for k, v := range st {
		copied[k] = v
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[toolID+"/"+orgID] = copied
	return nil
}
