package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestDocumentCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewDocumentCache(client, time.Minute)
	ctx := context.Background()

	_, ok := cache.Get(ctx, "doc:pr:1")
	require.False(t, ok)

	cache.Set(ctx, "doc:pr:1", []byte(`{"total":"100"}`))
	data, ok := cache.Get(ctx, "doc:pr:1")
	require.True(t, ok)
	require.JSONEq(t, `{"total":"100"}`, string(data))

	cache.Invalidate(ctx, "doc:pr:1")
	_, ok = cache.Get(ctx, "doc:pr:1")
	require.False(t, ok)
}

func TestDocumentCacheNilIsNoop(t *testing.T) {
	var cache *DocumentCache
	ctx := context.Background()

	cache.Set(ctx, "k", []byte("v"))
	_, ok := cache.Get(ctx, "k")
	require.False(t, ok)
}
