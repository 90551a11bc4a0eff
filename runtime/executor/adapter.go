// Package executor runs compiled actions against integration adapters: it
// resolves the action from the compiled artifact, obtains an auth context,
// enforces adapter permission checks, invokes the capability, folds the
// output into persisted state through the action's declared reducer, and
// emits the action's declared events.
package executor

import (
	"context"
	"errors"
	"fmt"

	"goa.design/toolforge/features/auth"
	"goa.design/toolforge/runtime/telemetry"
)

// Hard executor errors. Unknown references are structural defects in the
// artifact or wiring, not runtime conditions, so they never degrade.
var (
	ErrUnknownAction     = errors.New("action is not declared in the compiled artifact")
	ErrUnknownAdapter    = errors.New("no runtime adapter for integration")
	ErrUnknownReducer    = errors.New("action references an unknown reducer")
	ErrUnknownCapability = errors.New("adapter does not expose capability")
)

type (
	// Capability is a single externally callable operation exposed by an
	// integration adapter.
	Capability interface {
		// Execute invokes the provider operation. The tracer receives one
		// structured record per call regardless of outcome.
		Execute(ctx context.Context, params map[string]any, authCtx auth.Context, tracer telemetry.CallTracer) (any, error)
	}

	// Adapter is the per-integration runtime adapter: one conforming
	// implementation per provider, with an explicit capability map instead
	// of runtime shape-guessing.
	Adapter interface {
		// ResolveContext turns a bearer credential into the adapter's auth
		// context.
		ResolveContext(ctx context.Context, orgID, token string) (auth.Context, error)
		// Capability returns the named capability.
		Capability(id string) (Capability, bool)
	}

	// PermissionChecker is optionally implemented by adapters that enforce
	// capability-level permission checks before execution.
	PermissionChecker interface {
		// CheckPermissions returns a non-nil error to deny the invocation.
		CheckPermissions(ctx context.Context, authCtx auth.Context, capabilityID string) error
	}

	// PermissionError is the typed denial surfaced distinct from generic
	// failures, so callers can prompt for reconnection or approval.
	PermissionError struct {
		IntegrationID string
		CapabilityID  string
		Reason        error
	}
)

// Error implements error.
func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied for capability %q on integration %q: %v",
		e.CapabilityID, e.IntegrationID, e.Reason)
}

// Unwrap exposes the underlying denial reason.
func (e *PermissionError) Unwrap() error {
	return e.Reason
}
