package nonce

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/ding113/asset-cache-buster/internal/pkg/errors"
	"github.com/ding113/asset-cache-buster/internal/pkg/utils"
	"github.com/redis/go-redis/v9"
)

// RedisManager 基于 Redis 的验证令牌管理器，多实例部署共享
type RedisManager struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Manager = (*RedisManager)(nil)

// NewRedisManager 创建 Redis 令牌管理器
func NewRedisManager(client *redis.Client, prefix string, ttl time.Duration) *RedisManager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisManager{client: client, prefix: prefix, ttl: ttl}
}

// Issue 签发令牌
func (m *RedisManager) Issue(ctx context.Context, action string) (string, error) {
	token, err := utils.GenerateNonce()
	if err != nil {
		return "", apperrors.NewInternalError("failed to generate verification token").WithError(err)
	}

	if err := m.client.Set(ctx, m.prefix+storageKey(action, token), "1", m.ttl).Err(); err != nil {
		return "", apperrors.NewRedisError(err)
	}
	return token, nil
}

// Verify 校验并消费令牌，GETDEL 保证只能成功一次
func (m *RedisManager) Verify(ctx context.Context, action, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	err := m.client.GetDel(ctx, m.prefix+storageKey(action, token)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewRedisError(err)
	}
	return true, nil
}

// TTL 令牌有效期
func (m *RedisManager) TTL() time.Duration {
	return m.ttl
}
