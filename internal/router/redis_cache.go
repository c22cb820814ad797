package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces the cache keys in a shared Redis
const DefaultRedisPrefix = "smartcoach:route:"

// RedisCache is a ResponseCache shared between processes. Entries are stored
// with SET EX and their keys are tracked in a Redis list so that the oldest
// are evicted first once the list exceeds maxEntries.
type RedisCache struct {
	client     *redis.Client
	prefix     string
	ttl        time.Duration
	maxEntries int
}

// NewRedisCache creates a Redis-backed response cache
func NewRedisCache(client *redis.Client, ttl time.Duration, maxEntries int) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	return &RedisCache{
		client:     client,
		prefix:     DefaultRedisPrefix,
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

func (c *RedisCache) entryKey(key string) string {
	return c.prefix + "entry:" + key
}

func (c *RedisCache) indexKey() string {
	return c.prefix + "index"
}

// Get implements ResponseCache
func (c *RedisCache) Get(ctx context.Context, key string) (*CachedResponse, bool, error) {
	raw, err := c.client.Get(ctx, c.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis cache get: %w", err)
	}
	var entry CachedResponse
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("redis cache decode: %w", err)
	}
	return &entry, true, nil
}

// Set implements ResponseCache
func (c *RedisCache) Set(ctx context.Context, key string, entry *CachedResponse) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis cache encode: %w", err)
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.entryKey(key), data, c.ttl)
		pipe.LRem(ctx, c.indexKey(), 0, key)
		pipe.RPush(ctx, c.indexKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis cache set: %w", err)
	}
	return c.evictOverflow(ctx)
}

func (c *RedisCache) evictOverflow(ctx context.Context) error {
	n, err := c.client.LLen(ctx, c.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("redis cache len: %w", err)
	}
	overflow := int(n) - c.maxEntries
	if overflow <= 0 {
		return nil
	}
	evicted, err := c.client.LPopCount(ctx, c.indexKey(), overflow).Result()
	if err != nil {
		return fmt.Errorf("redis cache evict: %w", err)
	}
	if len(evicted) == 0 {
		return nil
	}
	return c.client.Del(ctx, c.entryKeys(evicted)...).Err()
}

func (c *RedisCache) entryKeys(keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = c.entryKey(k)
	}
	return out
}

// Delete implements ResponseCache
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.entryKey(key))
		pipe.LRem(ctx, c.indexKey(), 0, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis cache delete: %w", err)
	}
	return nil
}

// Len implements ResponseCache. Expired entries count until they are evicted.
func (c *RedisCache) Len(ctx context.Context) (int, error) {
	n, err := c.client.LLen(ctx, c.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis cache len: %w", err)
	}
	return int(n), nil
}
