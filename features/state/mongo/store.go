// Package mongo provides the MongoDB state store with its degraded fallback
// chain: session-scoped collection access first, an elevated-privilege
// retry second, and finally the runtimeState field embedded in the tool's
// own spec document when the state collection itself is unavailable. The
// fallback preserves the read/write contract as single-document storage; a
// failure at the fallback layer is fatal and propagated.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"goa.design/clue/health"

	"goa.design/toolforge/features/state"
	"goa.design/toolforge/runtime/telemetry"
)

const (
	defaultTimeout = 5 * time.Second
	pingerName     = "state-mongo"
)

type (
	// Options configures the store.
	Options struct {
		// Session is the session-scoped collection handle used on the
		// primary path. Required.
		Session *mongodriver.Collection
		// Elevated is the elevated-privilege collection handle retried when
		// the session-scoped path fails. Optional; without it, failures fall
		// through to the spec-document fallback directly.
		Elevated *mongodriver.Collection
		// Specs is the tool spec collection carrying the embedded
		// runtimeState fallback field. Required.
		Specs *mongodriver.Collection
		// Client is the MongoDB client used for health pings. Required.
		Client *mongodriver.Client
		// Timeout bounds individual operations. Defaults to 5 seconds.
		Timeout time.Duration
		// Logger records fallback transitions. Defaults to a noop logger.
		Logger telemetry.Logger
	}

	// Store is the MongoDB implementation of state.Store.
	Store struct {
		session  *mongodriver.Collection
		elevated *mongodriver.Collection
		specs    *mongodriver.Collection
		client   *mongodriver.Client
		timeout  time.Duration
		logger   telemetry.Logger
	}

	stateDocument struct {
		ID    string         `bson:"_id"`
		State map[string]any `bson:"state"`
	}

	specStateDocument struct {
		RuntimeState map[string]any `bson:"runtime_state"`
	}
)

// Compile-time checks.
var (
	_ state.Store   = (*Store)(nil)
	_ health.Pinger = (*Store)(nil)
)

// New constructs the store.
func New(opts Options) (*Store, error) {
	if opts.Session == nil {
		return nil, errors.New("session collection is required")
	}
	if opts.Specs == nil {
		return nil, errors.New("spec collection is required")
	}
	if opts.Client == nil {
		return nil, errors.New("mongo client is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Store{
		session:  opts.Session,
		elevated: opts.Elevated,
		specs:    opts.Specs,
		client:   opts.Client,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

// Name identifies the store for health reporting.
func (s *Store) Name() string {
	return pingerName
}

// Ping checks MongoDB connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.client.Ping(ctx, readpref.Primary())
}

// Load reads the state object: session-scoped access, elevated retry, then
// the spec document's runtimeState field.
func (s *Store) Load(ctx context.Context, toolID, orgID string) (map[string]any, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	st, err := s.loadFrom(ctx, s.session, toolID, orgID)
	if err == nil {
		return st, nil
	}
	s.logger.Warn(ctx, "session-scoped state load failed", "tool_id", toolID, "error", err.Error())

	if s.elevated != nil {
		st, err = s.loadFrom(ctx, s.elevated, toolID, orgID)
		if err == nil {
			return st, nil
		}
		s.logger.Warn(ctx, "elevated state load failed", "tool_id", toolID, "error", err.Error())
	}

	var doc specStateDocument
	err = s.specs.FindOne(ctx, bson.M{"_id": toolID, "org_id": orgID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("state fallback load for tool %q: %w", toolID, err)
	}
	if doc.RuntimeState == nil {
		return map[string]any{}, nil
	}
	return normalizeState(doc.RuntimeState), nil
}

// Save writes the state object through the same chain as Load. A fallback
// failure propagates: no silent loss of a requested state write.
func (s *Store) Save(ctx context.Context, toolID, orgID string, st map[string]any) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.saveTo(ctx, s.session, toolID, orgID, st)
	if err == nil {
		return nil
	}
	s.logger.Warn(ctx, "session-scoped state save failed", "tool_id", toolID, "error", err.Error())

	if s.elevated != nil {
		err = s.saveTo(ctx, s.elevated, toolID, orgID, st)
		if err == nil {
			return nil
		}
		s.logger.Warn(ctx, "elevated state save failed", "tool_id", toolID, "error", err.Error())
	}

	_, err = s.specs.UpdateOne(ctx,
		bson.M{"_id": toolID, "org_id": orgID},
		bson.M{"$set": bson.M{"runtime_state": st}},
	)
	if err != nil {
		return fmt.Errorf("state fallback save for tool %q: %w", toolID, err)
	}
	return nil
}

func (s *Store) loadFrom(ctx context.Context, coll *mongodriver.Collection, toolID, orgID string) (map[string]any, error) {
	var doc stateDocument
	err := coll.FindOne(ctx, bson.M{"_id": stateID(toolID, orgID)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	if doc.State == nil {
		return map[string]any{}, nil
	}
	return normalizeState(doc.State), nil
}

func (s *Store) saveTo(ctx context.Context, coll *mongodriver.Collection, toolID, orgID string, st map[string]any) error {
	doc := stateDocument{ID: stateID(toolID, orgID), State: st}
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func stateID(toolID, orgID string) string {
	return toolID + "/" + orgID
}

// normalizeState rewrites BSON decoder shapes into the plain JSON-like values
// the rest of the runtime operates on: nested documents become map[string]any,
// arrays become []any, and int32 widens to int64. Without it, reducers and
// condition paths would see bson.D documents and int32 zeros they do not
// recognize.
func normalizeState(st map[string]any) map[string]any {
	out := make(map[string]any, len(st))
	for k, v := range st {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case bson.D:
		out := make(map[string]any, len(x))
		for _, e := range x {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case bson.M:
		return normalizeState(x)
	case map[string]any:
		return normalizeState(x)
	case bson.A:
		return normalizeSlice(x)
	case []any:
		return normalizeSlice(x)
	case int32:
		return int64(x)
	}
	return v
}

func normalizeSlice(s []any) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = normalizeValue(v)
	}
	return out
}
