package store

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/ding113/asset-cache-buster/internal/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore 以 Redis 字符串键保存设置
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedis 创建 Redis 存储
func NewRedis(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Get 读取键值，redis.Nil 视为不存在
func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.NewRedisError(err)
	}
	return val, true, nil
}

// Set 写入键值，不过期
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return apperrors.NewRedisError(err)
	}
	return nil
}

// Ping 探活
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// setWithTTL 供缓存层使用
func (r *RedisStore) setWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return apperrors.NewRedisError(err)
	}
	return nil
}

func (r *RedisStore) del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return apperrors.NewRedisError(err)
	}
	return nil
}
