package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ding113/asset-cache-buster/internal/cachebuster"
	"github.com/ding113/asset-cache-buster/internal/config"
	"github.com/ding113/asset-cache-buster/internal/database"
	"github.com/ding113/asset-cache-buster/internal/handler"
	"github.com/ding113/asset-cache-buster/internal/nonce"
	"github.com/ding113/asset-cache-buster/internal/pkg/logger"
	"github.com/ding113/asset-cache-buster/internal/repository"
	"github.com/ding113/asset-cache-buster/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	logger.Info().
		Str("env", cfg.Env).
		Str("store", cfg.Store.Backend).
		Msg("Starting asset cache buster...")

	ctx := context.Background()

	// 连接 Redis（可选）
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer database.CloseRedis(rdb)
	}

	// 连接数据库（仅 postgres 后端）
	var db *bun.DB
	if cfg.Store.Backend == config.StoreBackendPostgres {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer database.ClosePostgres(db)
	}

	settingsStore, err := buildStore(ctx, cfg, db, rdb)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize settings store")
	}

	var nonces nonce.Manager
	if rdb != nil {
		nonces = nonce.NewRedisManager(rdb, cfg.Store.KeyPrefix, cfg.CacheBuster.NonceTTL)
	} else {
		nonces = nonce.NewMemoryManager(cfg.CacheBuster.NonceTTL)
		logger.Warn().Msg("Redis disabled, verification tokens are kept in process memory")
	}

	svc := cachebuster.NewService(settingsStore, nil)
	if err := svc.Bootstrap(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to bootstrap cache buster")
	}

	if cfg.Auth.AdminToken == "" {
		logger.Warn().Msg("ADMIN_TOKEN is not set, admin API will reject all requests")
	}

	// 创建 Gin 引擎
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.Deps{
		Service: svc,
		Nonces:  nonces,
		Store:   settingsStore,
		Config:  cfg,
	})

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		logger.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Server listening")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}

// buildStore 按 store.backend 组装设置存储
func buildStore(ctx context.Context, cfg *config.Config, db *bun.DB, rdb *redis.Client) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		logger.Warn().Msg("Using in-memory settings store, state is lost on restart")
		return store.NewMemory(), nil

	case config.StoreBackendRedis:
		return store.NewRedis(rdb, cfg.Store.KeyPrefix), nil

	default:
		repos := repository.NewFactory(db)
		if cfg.AutoMigrate {
			if err := repos.Option().EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("ensure options table: %w", err)
			}
		}

		var s store.Store = store.NewDatabase(repos.Option())
		if rdb != nil && cfg.Store.CacheTTL > 0 {
			s = store.NewCached(s, rdb, cfg.Store.KeyPrefix, cfg.Store.CacheTTL)
			logger.Info().Dur("ttl", cfg.Store.CacheTTL).Msg("Settings read cache enabled")
		}
		return s, nil
	}
}
