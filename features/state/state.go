// Package state persists the reducer-applied state object per tool instance.
//
// Unlike memory, state writes are strict: a failed save propagates to the
// caller rather than being swallowed, because losing a requested state write
// silently would corrupt the tool's UI-bound data.
package state

import "context"

// Store persists the named state object per (tool, org).
type Store interface {
	// Load returns the persisted state object, or an empty object when none
	// was saved yet.
	Load(ctx context.Context, toolID, orgID string) (map[string]any, error)
	// Save replaces the persisted state object. Last writer wins; no
	// optimistic concurrency token is maintained on the document.
	Save(ctx context.Context, toolID, orgID string, state map[string]any) error
}
