package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tenant-auth/internal/cache"
	"github.com/iliyamo/tenant-auth/internal/model"
)

func cacheFixture(t *testing.T, ttl time.Duration) (*cache.TenantCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cache.NewTenantCache(rdb, ttl), mr
}

func TestTenantCacheRoundTrip(t *testing.T) {
	c, _ := cacheFixture(t, time.Hour)
	ctx := context.Background()

	_, hit := c.Get(ctx, "acme")
	require.False(t, hit)

	want := cache.TenantProjection{ID: 1, Subdomain: "acme", Status: model.TenantActive}
	c.Set(ctx, want)

	got, hit := c.Get(ctx, "acme")
	require.True(t, hit)
	require.Equal(t, want, got)
}

func TestTenantCacheInvalidate(t *testing.T) {
	c, _ := cacheFixture(t, time.Hour)
	ctx := context.Background()

	c.Set(ctx, cache.TenantProjection{ID: 1, Subdomain: "acme", Status: model.TenantActive})
	c.Invalidate(ctx, "acme")

	_, hit := c.Get(ctx, "acme")
	require.False(t, hit)
}

func TestTenantCacheTTLExpiry(t *testing.T) {
	c, mr := cacheFixture(t, time.Minute)
	ctx := context.Background()

	c.Set(ctx, cache.TenantProjection{ID: 1, Subdomain: "acme", Status: model.TenantActive})
	mr.FastForward(2 * time.Minute)

	_, hit := c.Get(ctx, "acme")
	require.False(t, hit)
}

func TestTenantCacheNilClient(t *testing.T) {
	c := cache.NewTenantCache(nil, time.Hour)
	ctx := context.Background()

	// All operations degrade to no-ops without a client.
	c.Set(ctx, cache.TenantProjection{ID: 1, Subdomain: "acme", Status: model.TenantActive})
	_, hit := c.Get(ctx, "acme")
	require.False(t, hit)
	c.Invalidate(ctx, "acme")
}

func TestTenantCacheGarbledEntryMisses(t *testing.T) {
	c, mr := cacheFixture(t, time.Hour)
	require.NoError(t, mr.Set("tenant:sub:acme", "not-json"))

	_, hit := c.Get(context.Background(), "acme")
	require.False(t, hit)
}
