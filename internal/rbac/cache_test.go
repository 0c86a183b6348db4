package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecisionCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, 7, "leads.view")
	assert.False(t, ok)

	cache.Set(ctx, 7, "leads.view", true)
	allowed, ok := cache.Get(ctx, 7, "leads.view")
	require.True(t, ok)
	assert.True(t, allowed)

	cache.Set(ctx, 7, "leads.edit", false)
	allowed, ok = cache.Get(ctx, 7, "leads.edit")
	require.True(t, ok)
	assert.False(t, allowed)
}

func TestDecisionCacheBump(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, 7, "leads.view", true)
	require.NoError(t, cache.Bump(ctx))

	_, ok := cache.Get(ctx, 7, "leads.view")
	assert.False(t, ok, "bump must disown previous entries")
}

func TestDecisionCacheServesAsInvalidator(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	cache.Set(ctx, 7, "leads.view", true)

	var inv Invalidator = cache
	require.NoError(t, inv.Invalidate(ctx))

	_, ok := cache.Get(ctx, 7, "leads.view")
	assert.False(t, ok, "invalidate must disown previous entries")
}

func TestDecisionCacheNilIsNoop(t *testing.T) {
	var cache *DecisionCache
	ctx := context.Background()

	_, ok := cache.Get(ctx, 7, "leads.view")
	assert.False(t, ok)
	cache.Set(ctx, 7, "leads.view", true)
	assert.NoError(t, cache.Bump(ctx))
}
