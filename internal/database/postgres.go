package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ding113/asset-cache-buster/internal/config"
	"github.com/ding113/asset-cache-buster/internal/pkg/logger"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// DSN 返回连接字符串，优先使用配置的 DSN
func DSN(cfg config.DatabaseConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DBName,
		cfg.SSLMode,
	)
}

// NewPostgres 创建 PostgreSQL 数据库连接
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, error) {
	opts := []pgdriver.Option{pgdriver.WithDSN(DSN(cfg))}
	if cfg.ConnectTimeout > 0 {
		opts = append(opts, pgdriver.WithDialTimeout(cfg.ConnectTimeout))
	}

	sqlDB := sql.OpenDB(pgdriver.NewConnector(opts...))

	// 设置连接池参数
	if cfg.PoolMax > 0 {
		sqlDB.SetMaxOpenConns(cfg.PoolMax)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	db := bun.NewDB(sqlDB, pgdialect.New())

	// 测试连接
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.DBName).
		Bool("dsn", cfg.DSN != "").
		Msg("PostgreSQL connected")

	return db, nil
}

// ClosePostgres 关闭数据库连接
func ClosePostgres(db *bun.DB) error {
	if db != nil {
		logger.Info().Msg("Closing PostgreSQL connection")
		return db.Close()
	}
	return nil
}
