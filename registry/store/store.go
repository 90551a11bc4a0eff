// Package store defines the durable persistence layer for discovered
// capability metadata.
//
// The Store interface abstracts registered-action storage, allowing different
// backend implementations. Available implementations:
//
//   - memory: in-memory store for development and testing
//   - mongo: MongoDB store for production persistence
//
// To add a new implementation, create a subpackage that implements the Store
// interface and returns store.ErrNotFound for missing records.
package store

import (
	"context"
	"errors"

	"goa.design/toolforge/runtime/tool"
)

// ErrNotFound is returned when a registered action is not found in the store.
var ErrNotFound = errors.New("registered action not found")

// Store defines the persistence layer for registered actions. Records are
// keyed uniquely by (integration id, capability id). Implementations must be
// safe for concurrent use.
type Store interface {
	// PutActions stores or replaces the given records.
	PutActions(ctx context.Context, actions []tool.RegisteredAction) error

	// ListActions returns all records for an integration. Returns an empty
	// slice when none exist.
	ListActions(ctx context.Context, integrationID string) ([]tool.RegisteredAction, error)

	// GetAction retrieves one record by key. Returns ErrNotFound if the
	// record does not exist.
	GetAction(ctx context.Context, integrationID, capabilityID string) (tool.RegisteredAction, error)

	// DeleteActions removes all records for an integration.
	DeleteActions(ctx context.Context, integrationID string) error
}
