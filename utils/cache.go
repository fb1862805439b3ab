package utils

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = time.Hour

// Cache is a best-effort JSON cache on Redis. A nil client turns every call into a miss/no-op.
type Cache struct {
	rc  *redis.Client
	ttl time.Duration
}

// NewCache wraps rc; ttl <= 0 selects one hour.
func NewCache(rc *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{rc: rc, ttl: ttl}
}

// GetJSON decodes the cached value into out and reports whether it was found.
func (c *Cache) GetJSON(ctx context.Context, key string, out interface{}) bool {
	if c == nil || c.rc == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	b, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			Sugar.Debugf("cache get failed key=%s err=%v", key, err)
		}
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		Sugar.Warnf("cache decode failed key=%s err=%v", key, err)
		return false
	}
	return true
}

// SetJSON marshals v and stores it with the cache TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v interface{}) {
	if c == nil || c.rc == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.rc.Set(ctx, key, b, c.ttl).Err(); err != nil {
		Sugar.Warnf("cache set failed key=%s err=%v", key, err)
	}
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func (c *Cache) InvalidateByPrefix(ctx context.Context, prefix string) {
	if c == nil || c.rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < 10; i++ { // limit rounds to avoid long loops
		keys, cur, err := c.rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			Sugar.Warnf("cache scan failed prefix=%s err=%v", prefix, err)
			return
		}
		cursor = cur
		if len(keys) > 0 {
			if err := c.rc.Del(ctx, keys...).Err(); err != nil {
				Sugar.Warnf("cache delete failed prefix=%s err=%v", prefix, err)
			}
		}
		if cursor == 0 {
			return
		}
	}
}

// Generation returns the current value of a counter key, 0 when unset or unreachable.
// Embedding it in cache keys makes entries written before the next Bump unreachable.
func (c *Cache) Generation(ctx context.Context, key string) int64 {
	if c == nil || c.rc == nil {
		return 0
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	n, err := c.rc.Get(ctx, key).Int64()
	if err != nil {
		if err != redis.Nil {
			Sugar.Debugf("cache generation read failed key=%s err=%v", key, err)
		}
		return 0
	}
	return n
}

// Bump advances a generation counter.
func (c *Cache) Bump(ctx context.Context, key string) {
	if c == nil || c.rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.rc.Incr(ctx, key).Err(); err != nil {
		Sugar.Warnf("cache generation bump failed key=%s err=%v", key, err)
	}
}
