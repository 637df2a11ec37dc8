package database

import (
	"context"
	"fmt"

	"github.com/ding113/asset-cache-buster/internal/config"
	"github.com/ding113/asset-cache-buster/internal/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisOptions 根据配置构建客户端参数，URL 优先于 Host:Port
func RedisOptions(cfg config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// NewRedis 创建 Redis 客户端
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := RedisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info().
		Str("addr", opts.Addr).
		Int("db", opts.DB).
		Msg("Redis connected")

	return client, nil
}

// CloseRedis 关闭 Redis 连接
func CloseRedis(client *redis.Client) error {
	if client != nil {
		logger.Info().Msg("Closing Redis connection")
		return client.Close()
	}
	return nil
}
