package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"bookswap/internal/observability"
)

// Cache is a Redis-backed store of serialized projections. It is never
// authoritative: every entry is reconstructible from the database, so
// callers treat faults as misses and carry on.
type Cache struct {
	client *redis.Client
}

// New creates a cache over an existing Redis client
func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get returns the raw value for key. The boolean reports a hit.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key with the given TTL
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Invalidate deletes the given keys
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

// InvalidatePattern deletes every key matching a glob pattern. SCAN-based,
// so it stays off the Redis event loop for large keyspaces.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan %s: %w", pattern, err)
	}
	return c.Invalidate(ctx, keys...)
}

// FlushAll wipes the cache. Administrative escape hatch, never on a hot path.
func (c *Cache) FlushAll(ctx context.Context) error {
	if err := c.client.FlushAll(ctx).Err(); err != nil {
		return fmt.Errorf("cache flush: %w", err)
	}
	return nil
}

// Ping verifies connectivity for readiness checks
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Fetch is the single cached-read path: return the cached value under key,
// or run loader, cache its result, and return it. Cache faults degrade to a
// direct load and never fail the read.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, loader func(ctx context.Context) (T, error)) (T, error) {
	raw, hit, err := c.Get(ctx, key)
	if err != nil {
		observability.CacheErrors.WithLabelValues("get").Inc()
		slog.Warn("cache read failed, falling back to store",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
	if hit {
		var cached T
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			observability.CacheHits.WithLabelValues(keyspace(key)).Inc()
			return cached, nil
		}
		// Corrupt entry, treat as a miss and overwrite below.
	}
	observability.CacheMisses.WithLabelValues(keyspace(key)).Inc()

	value, err := loader(ctx)
	if err != nil {
		return value, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		slog.Warn("cache encode failed", slog.String("key", key), slog.String("error", err.Error()))
		return value, nil
	}
	if err := c.Set(ctx, key, string(encoded), ttl); err != nil {
		observability.CacheErrors.WithLabelValues("set").Inc()
		slog.Warn("cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return value, nil
}

// keyspace reduces a key to its metric label, e.g. chat:unread:buyer:7 -> chat:unread
func keyspace(key string) string {
	seen := 0
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			seen++
			if seen == 2 {
				return key[:i]
			}
		}
	}
	return key
}
