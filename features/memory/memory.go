// Package memory provides scoped key/value persistence for cross-turn
// evidence and session context.
//
// Memory is best-effort auxiliary data: writes and deletes log and swallow
// persistence failures so a memory outage never blocks a tool build or an
// action execution. A scope that fails normalization is different: the
// address is wrong, the backend was never touched, and Save and Delete
// surface that as *InvalidScopeError so callers can tell a caller defect
// apart from an outage.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"goa.design/toolforge/runtime/telemetry"
)

// ScopeKind enumerates the memory addressing scopes.
type ScopeKind string

// Memory scopes.
const (
	ScopeSession  ScopeKind = "session"
	ScopeTool     ScopeKind = "tool"
	ScopeToolUser ScopeKind = "tool_user"
	ScopeToolOrg  ScopeKind = "tool_org"
	ScopeUser     ScopeKind = "user"
	ScopeOrg      ScopeKind = "org"
)

// ErrNotFound is returned by clients when no value exists for a key.
var ErrNotFound = errors.New("no memory found")

// InvalidScopeError reports an operation addressed with a scope that fails
// normalization. The backend is never touched.
type InvalidScopeError struct {
	Kind ScopeKind
	Err  error
}

// Error implements error.
func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid %s memory scope: %s", e.Kind, e.Err)
}

// Unwrap returns the normalization failure.
func (e *InvalidScopeError) Unwrap() error { return e.Err }

type (
	// Scope is the addressing key under which memory is partitioned. Kind
	// selects which identifiers participate in the bucket address.
	Scope struct {
		Kind      ScopeKind
		SessionID string
		ToolID    string
		UserID    string
		OrgID     string
	}

	// Ref addresses one memory value.
	Ref struct {
		Scope     Scope
		Namespace string
		Key       string
	}

	// Client is the low-level persistence adapter. Implementations return
	// ErrNotFound for missing keys and must be safe for concurrent use.
	Client interface {
		Get(ctx context.Context, scopeKey, namespace, key string) (any, error)
		Set(ctx context.Context, scopeKey, namespace, key string, value any) error
		Delete(ctx context.Context, scopeKey, namespace, key string) error
	}

	// Options configures the store.
	Options struct {
		// Client constructs the persistence adapter. Construction is lazy:
		// the function runs once, on first use, so adapter bootstrap
		// (schema/table existence) happens before the first operation and an
		// unreachable backend does not fail process start. Required.
		Client func(ctx context.Context) (Client, error)
		// Logger receives swallowed write failures. Defaults to a noop
		// logger.
		Logger telemetry.Logger
	}

	// Store applies scope normalization and the best-effort policy on top of
	// a Client.
	Store struct {
		clientFn func(ctx context.Context) (Client, error)
		logger   telemetry.Logger

		once    sync.Once
		client  Client
		initErr error
	}
)

// NewStore constructs a memory store.
func NewStore(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("client constructor is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Store{clientFn: opts.Client, logger: logger}, nil
}

// Normalize canonicalizes the scope's identifiers. Session ids are hashed to
// deterministic UUID form when not already UUID-shaped; tool, user, and org
// ids must already be valid UUIDs or the call fails. Normalization prevents
// cross-tenant key collisions and is mandatory before any operation.
func (s Scope) Normalize() (Scope, error) {
	out := s
	switch s.Kind {
	case ScopeSession:
		if s.SessionID == "" {
			return Scope{}, errors.New("session scope requires a session id")
		}
		out.SessionID = canonicalSessionID(s.SessionID)
	case ScopeTool:
		if err := requireUUID("tool id", s.ToolID); err != nil {
			return Scope{}, err
		}
	case ScopeToolUser:
		if err := requireUUID("tool id", s.ToolID); err != nil {
			return Scope{}, err
		}
		if err := requireUUID("user id", s.UserID); err != nil {
			return Scope{}, err
		}
	case ScopeToolOrg:
		if err := requireUUID("tool id", s.ToolID); err != nil {
			return Scope{}, err
		}
		if err := requireUUID("org id", s.OrgID); err != nil {
			return Scope{}, err
		}
	case ScopeUser:
		if err := requireUUID("user id", s.UserID); err != nil {
			return Scope{}, err
		}
	case ScopeOrg:
		if err := requireUUID("org id", s.OrgID); err != nil {
			return Scope{}, err
		}
	default:
		return Scope{}, fmt.Errorf("unknown memory scope %q", s.Kind)
	}
	return out, nil
}

// Key returns the bucket address for a normalized scope.
func (s Scope) Key() string {
	switch s.Kind {
	case ScopeSession:
		return "session:" + s.SessionID
	case ScopeTool:
		return "tool:" + s.ToolID
	case ScopeToolUser:
		return "tool:" + s.ToolID + ":user:" + s.UserID
	case ScopeToolOrg:
		return "tool:" + s.ToolID + ":org:" + s.OrgID
	case ScopeUser:
		return "user:" + s.UserID
	case ScopeOrg:
		return "org:" + s.OrgID
	}
	return string(s.Kind)
}

// Load reads one value. Missing values return (nil, false, nil); persistence
// failures propagate.
func (s *Store) Load(ctx context.Context, ref Ref) (any, bool, error) {
	scope, err := ref.Scope.Normalize()
	if err != nil {
		return nil, false, &InvalidScopeError{Kind: ref.Scope.Kind, Err: err}
	}
	client, err := s.adapter(ctx)
	if err != nil {
		return nil, false, err
	}
	value, err := client.Get(ctx, scope.Key(), ref.Namespace, ref.Key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load memory %s/%s: %w", ref.Namespace, ref.Key, err)
	}
	return value, true, nil
}

// Save writes one value. Persistence failures are logged and swallowed; a
// scope that fails normalization returns *InvalidScopeError because a bad
// address is a caller defect, not an outage.
func (s *Store) Save(ctx context.Context, ref Ref, value any) error {
	scope, err := ref.Scope.Normalize()
	if err != nil {
		return &InvalidScopeError{Kind: ref.Scope.Kind, Err: err}
	}
	client, err := s.adapter(ctx)
	if err != nil {
		s.logger.Warn(ctx, "memory adapter unavailable", "error", err.Error())
		return nil
	}
	if err := client.Set(ctx, scope.Key(), ref.Namespace, ref.Key, value); err != nil {
		s.logger.Warn(ctx, "memory save failed", "namespace", ref.Namespace, "key", ref.Key, "error", err.Error())
	}
	return nil
}

// Delete removes one value. Same contract as Save.
func (s *Store) Delete(ctx context.Context, ref Ref) error {
	scope, err := ref.Scope.Normalize()
	if err != nil {
		return &InvalidScopeError{Kind: ref.Scope.Kind, Err: err}
	}
	client, err := s.adapter(ctx)
	if err != nil {
		s.logger.Warn(ctx, "memory adapter unavailable", "error", err.Error())
		return nil
	}
	if err := client.Delete(ctx, scope.Key(), ref.Namespace, ref.Key); err != nil {
		s.logger.Warn(ctx, "memory delete failed", "namespace", ref.Namespace, "key", ref.Key, "error", err.Error())
	}
	return nil
}

// adapter constructs the client once per process.
func (s *Store) adapter(ctx context.Context) (Client, error) {
	s.once.Do(func() {
		s.client, s.initErr = s.clientFn(ctx)
	})
	if s.initErr != nil {
		return nil, s.initErr
	}
	return s.client, nil
}

// canonicalSessionID returns the id unchanged when already UUID-shaped, and a
// deterministic SHA-1 UUID of it otherwise.
func canonicalSessionID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func requireUUID(label, id string) error {
	if id == "" {
		return fmt.Errorf("%s is required", label)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%s %q is not a valid UUID", label, id)
	}
	return nil
}
