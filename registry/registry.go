// Package registry resolves what can be called on an integration. Lookups
// settle in order: in-process cache, durable store, dynamic discovery against
// the provider. Discovery failures degrade to empty results so one broken
// integration never aborts the caller.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"goa.design/toolforge/registry/store"
	"goa.design/toolforge/runtime/telemetry"
	"goa.design/toolforge/runtime/tool"
)

const (
	// DefaultCacheTTL bounds in-process cache entries.
	DefaultCacheTTL = 5 * time.Minute
	// DefaultActionTTLHours is the freshness window stamped on records
	// synthesized by discovery.
	DefaultActionTTLHours = 24
)

// ErrUnresolvedCapability is returned when a capability id cannot be mapped
// to a provider-native action name.
var ErrUnresolvedCapability = errors.New("capability does not resolve to a provider action")

type (
	// Descriptor is a provider-native action description returned by
	// discovery, before classification.
	Descriptor struct {
		// Name is the provider-native action name.
		Name string
		// DisplayName is the operator-facing name. Defaults to Name.
		DisplayName string
		Description string
		// DeclaredType is the provider-declared operation type
		// (create/update/delete/list/get/search), empty when undeclared.
		DeclaredType string
		Resource     string
		Scopes       []string
		InputSchema  json.RawMessage
		OutputSchema json.RawMessage
	}

	// Discoverer performs dynamic capability discovery against a provider.
	Discoverer interface {
		// Discover lists the provider's action descriptors for an
		// integration, optionally narrowed to one entity.
		Discover(ctx context.Context, integrationID, entityID string) ([]Descriptor, error)
	}

	// Options configures the registry.
	Options struct {
		// Store is the durable record store. Required.
		Store store.Store
		// Discoverer performs dynamic discovery. Optional; without it,
		// resolution stops at the durable store.
		Discoverer Discoverer
		// Cache is the in-process cache. Defaults to NewMemoryCache().
		Cache Cache
		// CacheTTL bounds cache entries. Defaults to DefaultCacheTTL.
		CacheTTL time.Duration
		// ActionTTLHours is stamped on synthesized records. Defaults to
		// DefaultActionTTLHours.
		ActionTTLHours int
		// Logger receives resolution diagnostics. Defaults to a noop logger.
		Logger telemetry.Logger
		// Clock supplies discovery timestamps and staleness decisions.
		// Defaults to time.Now.
		Clock func() time.Time
	}

	// LookupOptions tunes one resolution.
	LookupOptions struct {
		// ForceRefresh skips the cache and the durable store, going straight
		// to discovery.
		ForceRefresh bool
		// EntityID narrows discovery to capabilities for one entity.
		EntityID string
	}

	// Registry resolves registered actions for integrations.
	Registry struct {
		store          store.Store
		discoverer     Discoverer
		cache          Cache
		cacheTTL       time.Duration
		actionTTLHours int
		logger         telemetry.Logger
		clock          func() time.Time

		mu       sync.Mutex
		inflight map[string]*inflightLookup
	}

	// inflightLookup lets concurrent identical lookups join a running one
	// instead of issuing duplicates.
	inflightLookup struct {
		done    chan struct{}
		actions []tool.RegisteredAction
		err     error
	}
)

// capabilityNamePattern recognizes capability ids that already follow the
// provider action naming convention (ALL_CAPS_WITH_UNDERSCORES).
var capabilityNamePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// New constructs a registry.
func New(opts Options) (*Registry, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache()
	}
	cacheTTL := opts.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	ttlHours := opts.ActionTTLHours
	if ttlHours <= 0 {
		ttlHours = DefaultActionTTLHours
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		store:          opts.Store,
		discoverer:     opts.Discoverer,
		cache:          cache,
		cacheTTL:       cacheTTL,
		actionTTLHours: ttlHours,
		logger:         logger,
		clock:          clock,
		inflight:       make(map[string]*inflightLookup),
	}, nil
}

// ActionsForIntegration resolves the registered actions for one integration.
// Concurrent identical lookups coalesce onto a single resolution.
func (r *Registry) ActionsForIntegration(ctx context.Context, integrationID string, opts LookupOptions) ([]tool.RegisteredAction, error) {
	if integrationID == "" {
		return nil, errors.New("integration id is required")
	}
	key := lookupKey(integrationID, opts)

	r.mu.Lock()
	if call, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		select {
		case <-call.done:
			return call.actions, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &inflightLookup{done: make(chan struct{})}
	r.inflight[key] = call
	r.mu.Unlock()

	call.actions, call.err = r.resolve(ctx, integrationID, opts)
	close(call.done)

	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()

	return call.actions, call.err
}

// ActionsForIntegrations fans out over several integrations with best-effort
// settlement: one integration's failure does not fail the others, it yields
// an empty entry instead.
func (r *Registry) ActionsForIntegrations(ctx context.Context, integrationIDs []string, opts LookupOptions) map[string][]tool.RegisteredAction {
	out := make(map[string][]tool.RegisteredAction, len(integrationIDs))
	for _, id := range integrationIDs {
		actions, err := r.ActionsForIntegration(ctx, id, opts)
		if err != nil {
			r.logger.Warn(ctx, "capability lookup failed", "integration_id", id, "error", err.Error())
			out[id] = nil
			continue
		}
		out[id] = actions
	}
	return out
}

// ResolveCapabilityName maps a capability id to its provider-native action
// name. The durable store is preferred; capability ids that already follow
// the ALL_CAPS_WITH_UNDERSCORES convention resolve to themselves.
func (r *Registry) ResolveCapabilityName(ctx context.Context, integrationID, capabilityID string) (string, error) {
	rec, err := r.store.GetAction(ctx, integrationID, capabilityID)
	if err == nil && rec.ProviderAction != "" {
		return rec.ProviderAction, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("look up capability %q on %q: %w", capabilityID, integrationID, err)
	}
	if capabilityNamePattern.MatchString(capabilityID) {
		return capabilityID, nil
	}
	return "", fmt.Errorf("%w: %q on %q", ErrUnresolvedCapability, capabilityID, integrationID)
}

// resolve settles one lookup: cache, then durable store, then discovery.
func (r *Registry) resolve(ctx context.Context, integrationID string, opts LookupOptions) ([]tool.RegisteredAction, error) {
	key := lookupKey(integrationID, opts)
	if !opts.ForceRefresh {
		cached, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn(ctx, "cached actions read failed", "integration_id", integrationID, "error", err.Error())
		}
		if err == nil && ok {
			return cached, nil
		}
		actions, err := r.store.ListActions(ctx, integrationID)
		if err != nil {
			return nil, fmt.Errorf("list registered actions for %q: %w", integrationID, err)
		}
		if len(actions) > 0 && r.allFresh(actions) {
			if err := r.cache.Set(ctx, key, actions, r.cacheTTL); err != nil {
				r.logger.Warn(ctx, "cache registered actions", "integration_id", integrationID, "error", err.Error())
			}
			return actions, nil
		}
	}
	return r.discover(ctx, integrationID, opts)
}

// discover synthesizes records from provider descriptors. Failures degrade
// to an empty result for the integration rather than aborting the caller.
func (r *Registry) discover(ctx context.Context, integrationID string, opts LookupOptions) ([]tool.RegisteredAction, error) {
	if r.discoverer == nil {
		return nil, nil
	}
	descriptors, err := r.discoverer.Discover(ctx, integrationID, opts.EntityID)
	if err != nil {
		r.logger.Warn(ctx, "capability discovery failed",
			"integration_id", integrationID,
			"error", err.Error(),
		)
		return nil, nil
	}
	now := r.clock()
	actions := make([]tool.RegisteredAction, 0, len(descriptors))
	for _, d := range descriptors {
		display := d.DisplayName
		if display == "" {
			display = d.Name
		}
		actions = append(actions, tool.RegisteredAction{
			IntegrationID:  integrationID,
			CapabilityID:   d.Name,
			Name:           display,
			Description:    d.Description,
			Type:           Classify(d.DeclaredType, d.Name),
			RequiredScopes: d.Scopes,
			InputSchema:    d.InputSchema,
			OutputSchema:   d.OutputSchema,
			ProviderAction: d.Name,
			Resource:       d.Resource,
			DiscoveredAt:   now,
			TTLHours:       r.actionTTLHours,
		})
	}
	if err := r.store.PutActions(ctx, actions); err != nil {
		// The records remain usable for this call; only durability suffered.
		r.logger.Warn(ctx, "persist discovered actions", "integration_id", integrationID, "error", err.Error())
	}
	if err := r.cache.Set(ctx, lookupKey(integrationID, opts), actions, r.cacheTTL); err != nil {
		r.logger.Warn(ctx, "cache discovered actions", "integration_id", integrationID, "error", err.Error())
	}
	return actions, nil
}

// allFresh reports whether no record is stale per its own TTL.
func (r *Registry) allFresh(actions []tool.RegisteredAction) bool {
	now := r.clock()
	for _, a := range actions {
		if a.Stale(now) {
			return false
		}
	}
	return true
}

func lookupKey(integrationID string, opts LookupOptions) string {
	if opts.EntityID == "" {
		return integrationID
	}
	return integrationID + "#" + opts.EntityID
}
