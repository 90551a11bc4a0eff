package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"goa.design/toolforge/registry/store"
	"goa.design/toolforge/registry/store/memory"
	"goa.design/toolforge/runtime/telemetry"
	"goa.design/toolforge/runtime/tool"
)

type stubDiscoverer struct {
	mu          sync.Mutex
	calls       int
	descriptors []Descriptor
	err         error
}

func (d *stubDiscoverer) Discover(_ context.Context, _, _ string) ([]Descriptor, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.descriptors, d.err
}

func (d *stubDiscoverer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type failingCache struct {
	Cache
	getErr error
}

func (c *failingCache) Get(ctx context.Context, key string) ([]tool.RegisteredAction, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	return c.Cache.Get(ctx, key)
}

type recordingLogger struct {
	telemetry.Logger
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Warn(_ context.Context, msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

type failingStore struct {
	store.Store
	listErr error
}

func (s *failingStore) ListActions(ctx context.Context, integrationID string) ([]tool.RegisteredAction, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.Store.ListActions(ctx, integrationID)
}

func freshRecord(now time.Time) tool.RegisteredAction {
	return tool.RegisteredAction{
		IntegrationID:  "gmail",
		CapabilityID:   "LIST_EMAILS",
		Name:           "List emails",
		Type:           tool.ActionRead,
		ProviderAction: "LIST_EMAILS",
		DiscoveredAt:   now,
		TTLHours:       24,
	}
}

func TestActionsForIntegrationFromStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	st := memory.New()
	require.NoError(t, st.PutActions(ctx, []tool.RegisteredAction{freshRecord(now)}))

	disc := &stubDiscoverer{}
	r, err := New(Options{Store: st, Discoverer: disc, Clock: func() time.Time { return now }})
	require.NoError(t, err)

	actions, err := r.ActionsForIntegration(ctx, "gmail", LookupOptions{})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Equal(t, "LIST_EMAILS", actions[0].CapabilityID)
	require.Zero(t, disc.callCount(), "fresh store records must not trigger discovery")
}

func TestActionsForIntegrationCachesStoreHit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	st := memory.New()
	require.NoError(t, st.PutActions(ctx, []tool.RegisteredAction{freshRecord(now)}))

	r, err := New(Options{Store: st, Clock: func() time.Time { return now }})
	require.NoError(t, err)

	_, err = r.ActionsForIntegration(ctx, "gmail", LookupOptions{})
	require.NoError(t, err)

	// Drop the store records; the cached entry still serves lookups.
	require.NoError(t, st.DeleteActions(ctx, "gmail"))
	actions, err := r.ActionsForIntegration(ctx, "gmail", LookupOptions{})
	require.NoError(t, err)
	require.Len(t, actions, 1)
}

func TestActionsForIntegrationCacheReadFailureFallsThrough(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	st := memory.New()
	require.NoError(t, st.PutActions(ctx, []tool.RegisteredAction{freshRecord(now)}))

	logger := &recordingLogger{Logger: telemetry.NewNoopLogger()}
	cache := &failingCache{Cache: NewMemoryCache(), getErr: errors.New("redis down")}
	r, err := New(Options{Store: st, Cache: cache, Logger: logger, Clock: func() time.Time { return now }})
	require.NoError(t, err)

	actions, err := r.ActionsForIntegration(ctx, "gmail", LookupOptions{})
	require.NoError(t, err)
	require.Len(t, actions, 1, "a broken cache degrades to the durable store")

	logger.mu.Lock()
	defer logger.mu.Unlock()
	require.Contains(t, logger.warns, "cached actions read failed")
}

func TestActionsForIntegrationStaleRecordsDiscover(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	discovered := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := discovered.Add(25 * time.Hour)

	st := memory.New()
	require.NoError(t, st.PutActions(ctx, []tool.RegisteredAction{freshRecord(discovered)}))

	disc := &stubDiscoverer{descriptors: []Descriptor{
		{Name: "LIST_EMAILS", DeclaredType: "list"},
		{Name: "SEND_EMAIL"},
	}}
	r, err := New(Options{Store: st, Discoverer: disc, Clock: func() time.Time { return now }})
	require.NoError(t, err)

	actions, err := r.ActionsForIntegration(ctx, "gmail", LookupOptions{})
	require.NoError(t, err)
	require.Len(t, actions, 2)
	require.Equal(t, 1, disc.callCount())
	require.Equal(t, tool.ActionRead, actions[0].Type)
	require.Equal(t, tool.ActionNotify, actions[1].Type)
	require.Equal(t, now, actions[0].DiscoveredAt)
	require.Equal(t, 24, actions[0].TTLHours)

	// Discovery results were persisted.
	stored, err := st.ListActions(ctx, "gmail")
	require.NoError(t, err)
	require.Len(t, stored, 2)
}

func TestActionsForIntegrationForceRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	st := memory.New()
	require.NoError(t, st.PutActions(ctx, []tool.RegisteredAction{freshRecord(now)}))

	disc := &stubDiscoverer{descriptors: []Descriptor{{Name: "SEARCH_EMAILS", DeclaredType: "search"}}}
	r, err := New(Options{Store: st, Discoverer: disc, Clock: func() time.Time { return now }})
	require.NoError(t, err)

	actions, err := r.ActionsForIntegration(ctx, "gmail", LookupOptions{ForceRefresh: true})
	require.NoError(t, err)
	require.Len(t, actions, 1)
	require.Equal(t, "SEARCH_EMAILS", actions[0].CapabilityID)
	require.Equal(t, 1, disc.callCount())
}

func TestDiscoveryFailureDegradesToEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	disc := &stubDiscoverer{err: errors.New("provider down")}
	r, err := New(Options{Store: memory.New(), Discoverer: disc})
	require.NoError(t, err)

	actions, err := r.ActionsForIntegration(ctx, "gmail", LookupOptions{})
	require.NoError(t, err)
	require.Empty(t, actions)
}

func TestNoDiscovererStopsAtStore(t *testing.T) {
	t.Parallel()
	r, err := New(Options{Store: memory.New()})
	require.NoError(t, err)

	actions, err := r.ActionsForIntegration(context.Background(), "gmail", LookupOptions{})
	require.NoError(t, err)
	require.Empty(t, actions)
}

func TestStoreFailurePropagates(t *testing.T) {
	t.Parallel()
	st := &failingStore{Store: memory.New(), listErr: errors.New("store down")}
	r, err := New(Options{Store: st})
	require.NoError(t, err)

	_, err = r.ActionsForIntegration(context.Background(), "gmail", LookupOptions{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "store down")
}

func TestActionsForIntegrationsBestEffort(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	st := &failingStore{Store: memory.New()}
	require.NoError(t, st.PutActions(ctx, []tool.RegisteredAction{freshRecord(now)}))

	r, err := New(Options{Store: st, Clock: func() time.Time { return now }})
	require.NoError(t, err)

	// Fail listings after the first integration resolves from cache.
	_, err = r.ActionsForIntegration(ctx, "gmail", LookupOptions{})
	require.NoError(t, err)
	st.listErr = errors.New("store down")

	out := r.ActionsForIntegrations(ctx, []string{"gmail", "slack"}, LookupOptions{})
	require.Len(t, out, 2)
	require.Len(t, out["gmail"], 1)
	require.Nil(t, out["slack"])
}

func TestConcurrentLookupsCoalesce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	release := make(chan struct{})
	disc := &blockingDiscoverer{release: release}
	r, err := New(Options{Store: memory.New(), Discoverer: disc})
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.ActionsForIntegration(ctx, "gmail", LookupOptions{})
		}(i)
	}

	// Let the goroutines pile onto the single in-flight lookup.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
	}
	require.Equal(t, 1, disc.callCount())
}

type blockingDiscoverer struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (d *blockingDiscoverer) Discover(ctx context.Context, _, _ string) ([]Descriptor, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	select {
	case <-d.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []Descriptor{{Name: "LIST_EMAILS"}}, nil
}

func (d *blockingDiscoverer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func TestResolveCapabilityName(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Now()
	st := memory.New()
	require.NoError(t, st.PutActions(ctx, []tool.RegisteredAction{{
		IntegrationID:  "gmail",
		CapabilityID:   "fetch-mail",
		ProviderAction: "LIST_EMAILS",
		DiscoveredAt:   now,
		TTLHours:       24,
	}}))

	r, err := New(Options{Store: st, Clock: func() time.Time { return now }})
	require.NoError(t, err)

	name, err := r.ResolveCapabilityName(ctx, "gmail", "fetch-mail")
	require.NoError(t, err)
	require.Equal(t, "LIST_EMAILS", name)

	// Conventionally named ids resolve to themselves without a record.
	name, err = r.ResolveCapabilityName(ctx, "gmail", "SEND_EMAIL")
	require.NoError(t, err)
	require.Equal(t, "SEND_EMAIL", name)

	_, err = r.ResolveCapabilityName(ctx, "gmail", "send mail")
	require.ErrorIs(t, err, ErrUnresolvedCapability)
}

func TestMemoryCacheExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := NewMemoryCache(WithCacheClock(func() time.Time { return clock() }))

	require.NoError(t, c.Set(ctx, "gmail", []tool.RegisteredAction{freshRecord(now)}, 5*time.Minute))

	_, ok, err := c.Get(ctx, "gmail")
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(5*time.Minute + time.Second)
	_, ok, err = c.Get(ctx, "gmail")
	require.NoError(t, err)
	require.False(t, ok)

	// Expired entries are dropped, not resurrected.
	_, ok, err = c.Get(ctx, "gmail")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryCacheDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := NewMemoryCache()
	require.NoError(t, c.Set(ctx, "k", nil, time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}
