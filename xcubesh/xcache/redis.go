package xcache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dcs4cop/xcube-sh/xcubesh"
)

// RedisCache wraps a KeyValueStore with a Redis-backed chunk cache, for
// sharing fetched chunks across multiple store processes.
type RedisCache struct {
	inner  xcubesh.KeyValueStore
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *log.Logger
}

// NewRedisCache wraps inner with the Redis instance at addr. Entries
// expire after ttl; a zero ttl means no expiry.
func NewRedisCache(inner xcubesh.KeyValueStore, addr, prefix string, ttl time.Duration, logger *log.Logger) *RedisCache {
	return &RedisCache{
		inner:  inner,
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// Close releases the Redis client.
func (c *RedisCache) Close() error { return c.client.Close() }

func (c *RedisCache) redisKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// ListKeys delegates to the wrapped store.
func (c *RedisCache) ListKeys() []string { return c.inner.ListKeys() }

// Contains delegates to the wrapped store.
func (c *RedisCache) Contains(key string) bool { return c.inner.Contains(key) }

// Get returns Redis-cached bytes when present, otherwise fetches through
// the wrapped store and writes the result back. A write-back failure is
// logged and the fetched bytes are still returned.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	bytes, err := c.client.Get(ctx, c.redisKey(key)).Bytes()
	if err == nil {
		return bytes, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis cache read %s: %w", key, err)
	}

	bytes, err = c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := c.client.Set(ctx, c.redisKey(key), bytes, c.ttl).Err(); err != nil {
		c.logger.Printf("redis cache write %s failed: %v", key, err)
	}
	return bytes, nil
}

var _ xcubesh.KeyValueStore = (*RedisCache)(nil)
