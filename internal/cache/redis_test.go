package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCacheStoreAndLookup(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	cache, err := NewRedis(RedisConfig{Address: server.Addr()})
	require.NoError(t, err)
	ctx := context.Background()

	entry := Entry{
		Permission:  "allow",
		Description: "rule-1",
		StoredAt:    time.Now().UTC(),
	}
	entry.ExpiresAt = entry.StoredAt.Add(500 * time.Millisecond)

	require.NoError(t, cache.Store(ctx, "redis:key", entry))

	got, ok, err := cache.Lookup(ctx, "redis:key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, entry.Permission, got.Permission)
	require.Equal(t, entry.Description, got.Description)

	server.FastForward(time.Second)

	_, ok, err = cache.Lookup(ctx, "redis:key")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Close(ctx))
}

func TestRedisCacheStoreRejectsMissingExpiry(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	cache, err := NewRedis(RedisConfig{Address: server.Addr()})
	require.NoError(t, err)
	ctx := context.Background()

	err = cache.Store(ctx, "redis:key", Entry{Permission: "allow"})
	require.Error(t, err)
}

func TestRedisCacheSize(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	cache, err := NewRedis(RedisConfig{Address: server.Addr()})
	require.NoError(t, err)
	ctx := context.Background()

	size, err := cache.Size(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, size)

	now := time.Now().UTC()
	require.NoError(t, cache.Store(ctx, "k", Entry{Permission: "allow", StoredAt: now, ExpiresAt: now.Add(time.Minute)}))

	size, err = cache.Size(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, size)
}

func TestNewRedisRequiresAddress(t *testing.T) {
	_, err := NewRedis(RedisConfig{})
	require.Error(t, err)
}
