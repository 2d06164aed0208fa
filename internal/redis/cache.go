package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache is a generic JSON-backed Redis cache for projections. Entries expire
// after ttl. The cache is best-effort: every failure path degrades to a miss
// so callers fall back to the authoritative store.
type Cache[T any] struct {
	client *goredis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewCache[T any](client *goredis.Client, ttl time.Duration, log zerolog.Logger) *Cache[T] {
	return &Cache[T]{client: client, ttl: ttl, log: log}
}

// Get retrieves and unmarshals a value. Returns (nil, false) on a miss,
// a redis error, or undecodable data.
func (c *Cache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache entry undecodable")
		return nil, false
	}
	return &v, true
}

// Set stores value under key with the cache TTL. Write failures are logged,
// not returned.
func (c *Cache[T]) Set(ctx context.Context, key string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache marshal failed")
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Delete removes key. Failures are logged, not returned.
func (c *Cache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache delete failed")
	}
}
