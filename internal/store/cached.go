package store

import (
	"context"
	"time"

	"github.com/ding113/asset-cache-buster/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// CachedStore 在主存储前加一层 Redis 读缓存
// 缓存故障只记录日志，读写都回退到主存储
type CachedStore struct {
	primary Store
	cache   *RedisStore
	ttl     time.Duration
}

var _ Store = (*CachedStore)(nil)

// NewCached 创建带读缓存的存储
func NewCached(primary Store, client *redis.Client, prefix string, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		cache:   NewRedis(client, prefix+"cache:"),
		ttl:     ttl,
	}
}

// Get 先查缓存，未命中时读主存储并回填
func (c *CachedStore) Get(ctx context.Context, key string) (string, bool, error) {
	if v, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		return v, true, nil
	} else if err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Settings cache read failed")
	}

	v, ok, err := c.primary.Get(ctx, key)
	if err != nil || !ok {
		return v, ok, err
	}

	if err := c.cache.setWithTTL(ctx, key, v, c.ttl); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Settings cache fill failed")
	}
	return v, true, nil
}

// Set 写主存储后失效缓存
func (c *CachedStore) Set(ctx context.Context, key, value string) error {
	if err := c.primary.Set(ctx, key, value); err != nil {
		return err
	}
	if err := c.cache.del(ctx, key); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("Settings cache invalidation failed")
	}
	return nil
}

// Ping 探活主存储
func (c *CachedStore) Ping(ctx context.Context) error {
	if p, ok := c.primary.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
