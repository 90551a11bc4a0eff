// Package memory provides an in-memory implementation of the registry store.
//
// This implementation is suitable for development, testing, and single-node
// deployments where persistence across restarts is not required.
package memory

import (
	"context"
	"sync"

	"goa.design/toolforge/registry/store"
	"goa.design/toolforge/runtime/tool"
)

// Store is an in-memory implementation of the store.Store interface.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	actions map[string]map[string]tool.RegisteredAction // integration id -> capability id -> record
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		actions: make(map[string]map[string]tool.RegisteredAction),
	}
}

// PutActions stores or replaces the given records.
func (s *Store) PutActions(ctx context.Context, actions []tool.RegisteredAction) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range actions {
		byCap, ok := s.actions[a.IntegrationID]
		if !ok {
			byCap = make(map[string]tool.RegisteredAction)
			s.actions[a.IntegrationID] = byCap
		}
		byCap[a.CapabilityID] = a
	}
	return nil
}

// ListActions returns all records for an integration.
func (s *Store) ListActions(ctx context.Context, integrationID string) ([]tool.RegisteredAction, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	byCap := s.actions[integrationID]
	out := make([]tool.RegisteredAction, 0, len(byCap))
	for _, a := range byCap {
		out = append(out, a)
	}
	return out, nil
}

// GetAction retrieves one record by key.
func (s *Store) GetAction(ctx context.Context, integrationID, capabilityID string) (tool.RegisteredAction, error) {
	select {
	case <-ctx.Done():
		return tool.RegisteredAction{}, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.actions[integrationID][capabilityID]
	if !ok {
		return tool.RegisteredAction{}, store.ErrNotFound
	}
	return a, nil
}

// DeleteActions removes all records for an integration.
func (s *Store) DeleteActions(ctx context.Context, integrationID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.actions, integrationID)
	return nil
}
