package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStaticTokenSource(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	src := NewStaticTokenSource(map[string]string{"org-1/gmail": "tok-a"})

	tok, err := src.AccessToken(ctx, "org-1", "gmail")
	require.NoError(t, err)
	require.Equal(t, "tok-a", tok)

	_, err = src.AccessToken(ctx, "org-1", "slack")
	require.ErrorIs(t, err, ErrNoToken)

	_, err = src.AccessToken(ctx, "org-2", "gmail")
	require.ErrorIs(t, err, ErrNoToken)

	src.SetToken("org-1", "slack", "tok-b")
	tok, err = src.AccessToken(ctx, "org-1", "slack")
	require.NoError(t, err)
	require.Equal(t, "tok-b", tok)
}

type countingSource struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (s *countingSource) AccessToken(ctx context.Context, orgID, integrationID string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return orgID + "/" + integrationID + "/token", nil
}

func (s *countingSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestCoalescingTokenSourceRequiresSource(t *testing.T) {
	t.Parallel()
	_, err := NewCoalescingTokenSource(nil)
	require.Error(t, err)
}

func TestCoalescingTokenSourceDelegates(t *testing.T) {
	t.Parallel()
	inner := &countingSource{}
	src, err := NewCoalescingTokenSource(inner)
	require.NoError(t, err)

	tok, err := src.AccessToken(context.Background(), "org-1", "gmail")
	require.NoError(t, err)
	require.Equal(t, "org-1/gmail/token", tok)
	require.Equal(t, 1, inner.callCount())

	// Sequential calls resolve independently.
	_, err = src.AccessToken(context.Background(), "org-1", "gmail")
	require.NoError(t, err)
	require.Equal(t, 2, inner.callCount())
}

func TestCoalescingTokenSourceJoinsInflight(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	inner := &countingSource{release: release}
	src, err := NewCoalescingTokenSource(inner)
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = src.AccessToken(context.Background(), "org-1", "gmail")
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "org-1/gmail/token", tokens[i])
	}
	require.Equal(t, 1, inner.callCount(), "concurrent identical resolutions must coalesce")
}

func TestCoalescingTokenSourceDistinctKeysDoNotCoalesce(t *testing.T) {
	t.Parallel()
	inner := &countingSource{}
	src, err := NewCoalescingTokenSource(inner)
	require.NoError(t, err)

	_, err = src.AccessToken(context.Background(), "org-1", "gmail")
	require.NoError(t, err)
	_, err = src.AccessToken(context.Background(), "org-2", "gmail")
	require.NoError(t, err)
	_, err = src.AccessToken(context.Background(), "org-1", "slack")
	require.NoError(t, err)
	require.Equal(t, 3, inner.callCount())
}
