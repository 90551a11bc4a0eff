// Package auth defines the token collaborator the runtime depends on. The
// core treats token refresh and expiry as opaque: it asks for a valid access
// token and hands the result to integration adapters.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNoToken is returned when no credential exists for an (org, integration)
// pair.
var ErrNoToken = errors.New("no access token for integration")

// TokenSource resolves a valid bearer credential for an organization's
// connection to an integration.
type TokenSource interface {
	AccessToken(ctx context.Context, orgID, integrationID string) (string, error)
}

// Context is the auth context handed to integration adapters. It carries at
// minimum the bearer credential.
type Context struct {
	OrgID         string
	IntegrationID string
	Token         string
}

type (
	// StaticTokenSource serves tokens from a fixed map, keyed by
	// orgID + "/" + integrationID. Suitable for tests and single-tenant
	// deployments.
	StaticTokenSource struct {
		mu     sync.RWMutex
		tokens map[string]string
	}

	// CoalescingTokenSource wraps another source with a keyed in-flight map
	// so concurrent identical resolutions join a running one instead of
	// issuing duplicates (token refresh is typically rate limited upstream).
	CoalescingTokenSource struct {
		source TokenSource

		mu       sync.Mutex
		inflight map[string]*inflightToken
	}

	inflightToken struct {
		done  chan struct{}
		token string
		err   error
	}
)

// NewStaticTokenSource constructs a source serving the given tokens.
func NewStaticTokenSource(tokens map[string]string) *StaticTokenSource {
	copied := make(map[string]string, len(tokens))
	for k, v := range tokens {
		copied[k] = v
	}
	return &StaticTokenSource{tokens: copied}
}

// AccessToken returns the configured token for the pair.
func (s *StaticTokenSource) AccessToken(_ context.Context, orgID, integrationID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[tokenKey(orgID, integrationID)]
	if !ok {
		return "", fmt.Errorf("%w: %q on org %q", ErrNoToken, integrationID, orgID)
	}
	return token, nil
}

// SetToken stores or replaces the token for the pair.
func (s *StaticTokenSource) SetToken(orgID, integrationID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenKey(orgID, integrationID)] = token
}

// NewCoalescingTokenSource wraps source with in-flight coalescing.
func NewCoalescingTokenSource(source TokenSource) (*CoalescingTokenSource, error) {
	if source == nil {
		return nil, errors.New("token source is required")
	}
	return &CoalescingTokenSource{
		source:   source,
		inflight: make(map[string]*inflightToken),
	}, nil
}

// AccessToken resolves the token, joining an already-running resolution for
// the same pair when one exists.
func (c *CoalescingTokenSource) AccessToken(ctx context.Context, orgID, integrationID string) (string, error) {
	key := tokenKey(orgID, integrationID)

	c.mu.Lock()
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.token, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	call := &inflightToken{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	call.token, call.err = c.source.AccessToken(ctx, orgID, integrationID)
	close(call.done)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()

	return call.token, call.err
}

func tokenKey(orgID, integrationID string) string {
	return orgID + "/" + integrationID
}
