package authz

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisCacheForTest(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, time.Minute), mr
}

func samplePermissions() EffectivePermissions {
	return EffectivePermissions{
		Permissions: map[string]struct{}{"patients.view": {}, "schedule.view": {}},
		DataScope:   ScopeAllLocations,
		LocationIDs: map[int64]struct{}{1: {}, 3: {}},
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	cache, _ := newRedisCacheForTest(t)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, 7, samplePermissions()))

	got, ok, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, samplePermissions(), got)
}

func TestRedisCacheInvalidateSingleUser(t *testing.T) {
	cache, _ := newRedisCacheForTest(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 7, samplePermissions()))
	require.NoError(t, cache.Set(ctx, 8, samplePermissions()))
	require.NoError(t, cache.Invalidate(ctx, 7))

	_, ok, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = cache.Get(ctx, 8)
	require.NoError(t, err)
	assert.True(t, ok, "other users keep their entries")
}

func TestRedisCacheInvalidateAllBumpsVersion(t *testing.T) {
	cache, _ := newRedisCacheForTest(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 7, samplePermissions()))
	require.NoError(t, cache.Set(ctx, 8, samplePermissions()))
	require.NoError(t, cache.InvalidateAll(ctx))

	for _, userID := range []int64{7, 8} {
		_, ok, err := cache.Get(ctx, userID)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestRedisCacheEntriesExpire(t *testing.T) {
	cache, mr := newRedisCacheForTest(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 7, samplePermissions()))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheTTL(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	current := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return current }
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 7, samplePermissions()))

	got, ok, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, samplePermissions(), got)

	current = current.Add(2 * time.Minute)
	_, ok, err = cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCacheInvalidateAll(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, 7, samplePermissions()))
	require.NoError(t, cache.Set(ctx, 8, samplePermissions()))
	require.NoError(t, cache.InvalidateAll(ctx))

	_, ok, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}
