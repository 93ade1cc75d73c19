package cache

import (
	"context"
	"time"
)

// LayeredOption configures LayeredCache.
type LayeredOption func(*LayeredConfig)

// LayeredConfig holds layered cache configuration.
type LayeredConfig struct {
	MemoryMaxSize int
	MemoryTTL     time.Duration
}

// WithLayeredMemorySize sets the L1 capacity.
func WithLayeredMemorySize(size int) LayeredOption {
	return func(c *LayeredConfig) {
		if size > 0 {
			c.MemoryMaxSize = size
		}
	}
}

// WithLayeredMemoryTTL caps how long L1 keeps entries when Redis is present.
func WithLayeredMemoryTTL(ttl time.Duration) LayeredOption {
	return func(c *LayeredConfig) {
		if ttl > 0 {
			c.MemoryTTL = ttl
		}
	}
}

// LayeredCache puts a process-local LRU (L1) in front of Redis (L2). With a
// nil Redis layer it degrades to the LRU alone.
type LayeredCache struct {
	mem   *MemoryCache
	redis *RedisCache
	l1TTL time.Duration
}

func NewLayeredCache(redisCache *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		MemoryTTL:     time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		mem:   NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		redis: redisCache,
		l1TTL: cfg.MemoryTTL,
	}
}

// HasRedis reports whether an L2 layer is configured.
func (lc *LayeredCache) HasRedis() bool { return lc.redis != nil }

// Set writes through: Redis first, then memory.
func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	if lc.redis != nil {
		if err := lc.redis.setRaw(ctx, key, data, expiration); err != nil {
			return err
		}
	}
	lc.mem.setRaw(key, data, lc.memTTL(expiration))
	return nil
}

// Get reads L1, then L2. An L2 hit is copied into L1 for l1TTL.
func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if data, ok := lc.mem.getRaw(key); ok {
		return decode(data, dest)
	}
	if lc.redis == nil {
		return ErrCacheMiss
	}

	data, err := lc.redis.getRaw(ctx, key)
	if err != nil {
		return err
	}
	lc.mem.setRaw(key, data, lc.l1TTL)
	return decode(data, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	if lc.redis == nil {
		return nil
	}
	return lc.redis.Delete(ctx, keys...)
}

// Health pings the Redis layer when present.
func (lc *LayeredCache) Health(ctx context.Context) error {
	if lc.redis == nil {
		return nil
	}
	return lc.redis.Ping(ctx)
}

// Close closes both layers.
func (lc *LayeredCache) Close() error {
	_ = lc.mem.Close()
	if lc.redis == nil {
		return nil
	}
	return lc.redis.Close()
}

func (lc *LayeredCache) memTTL(expiration time.Duration) time.Duration {
	if lc.redis == nil || (expiration > 0 && expiration < lc.l1TTL) {
		return expiration
	}
	return lc.l1TTL
}

var _ Service = (*LayeredCache)(nil)
