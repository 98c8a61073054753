package recommend

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores generated recommendations keyed by label and features, so
// repeated identical requests skip the backend chain.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	value, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return "", false
	}
	return value, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string) {
	// Cache misses are recoverable; cache write failures are ignored.
	_ = c.client.Set(ctx, key, value, c.ttl).Err()
}
