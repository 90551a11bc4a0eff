package inmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEmptyWhenUnsaved(t *testing.T) {
	t.Parallel()
	s := New()
	got, err := s.Load(context.Background(), "tool-1", "org-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestSaveThenLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Save(ctx, "tool-1", "org-1", map[string]any{"emails": []any{"a"}}))
	got, err := s.Load(ctx, "tool-1", "org-1")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"emails": []any{"a"}}, got)

	// Last writer wins.
	require.NoError(t, s.Save(ctx, "tool-1", "org-1", map[string]any{"emails": []any{"b"}}))
	got, err = s.Load(ctx, "tool-1", "org-1")
	require.NoError(t, err)
	require.Equal(t, []any{"b"}, got["emails"])
}

func TestInstancesIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Save(ctx, "tool-1", "org-1", map[string]any{"v": 1}))
	require.NoError(t, s.Save(ctx, "tool-1", "org-2", map[string]any{"v": 2}))

	a, err := s.Load(ctx, "tool-1", "org-1")
	require.NoError(t, err)
	b, err := s.Load(ctx, "tool-1", "org-2")
	require.NoError(t, err)
	require.Equal(t, 1, a["v"])
	require.Equal(t, 2, b["v"])
}

func TestLoadReturnsCopy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Save(ctx, "tool-1", "org-1", map[string]any{"v": 1}))

	got, err := s.Load(ctx, "tool-1", "org-1")
	require.NoError(t, err)
	got["v"] = 99

	again, err := s.Load(ctx, "tool-1", "org-1")
	require.NoError(t, err)
	require.Equal(t, 1, again["v"], "caller mutations must not leak into the store")
}
