// Package cache wraps the Redis client used for short-lived read caches.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a new Redis client.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// DocumentCache stores assembled report documents by key with a TTL.
// A nil cache is a no-op, so callers can run without Redis.
type DocumentCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDocumentCache constructs a DocumentCache.
func NewDocumentCache(client *redis.Client, ttl time.Duration) *DocumentCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DocumentCache{client: client, ttl: ttl}
}

// Get returns the cached payload and whether it was present.
func (c *DocumentCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set stores the payload under key.
func (c *DocumentCache) Set(ctx context.Context, key string, payload []byte) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, key, payload, c.ttl).Err()
}

// Invalidate drops the cached payload for key.
func (c *DocumentCache) Invalidate(ctx context.Context, key string) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, key).Err()
}
