package querycache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache invalidates a key family by bumping its version counter and
// deleting the cached entries under the family prefix. Readers that key their
// lookups by version see a miss immediately; the prefix sweep reclaims memory.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisCache(client *redis.Client, logger *zap.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

func (c *RedisCache) Invalidate(ctx context.Context, family string) error {
	if err := c.client.Incr(ctx, c.versionKey(family)).Err(); err != nil {
		return fmt.Errorf("failed to bump cache version for %s: %w", family, err)
	}

	pattern := fmt.Sprintf("cache:%s:*", family)
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.logger.Warn("failed to delete cache entry",
				zap.String("key", iter.Val()),
				zap.Error(err),
			)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to sweep cache family %s: %w", family, err)
	}

	return nil
}

// Version returns the current version counter for a family. Readers embed it
// in their cache keys so a bump orphans every prior entry.
func (c *RedisCache) Version(ctx context.Context, family string) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(family)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

func (c *RedisCache) versionKey(family string) string {
	return fmt.Sprintf("cache:ver:%s", family)
}
