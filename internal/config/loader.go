package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load 加载配置
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith 使用给定的 viper 实例加载配置
func LoadWith(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/asset-cache-buster")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVariables(v)

	// 读取配置文件（可选）
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验配置组合
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBackendPostgres, StoreBackendMemory:
	case StoreBackendRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("store.backend=redis requires redis.enabled=true")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if c.CacheBuster.QueryKey == "" {
		return fmt.Errorf("cache_buster.query_key must not be empty")
	}
	if c.CacheBuster.RefreshParam == "" {
		return fmt.Errorf("cache_buster.refresh_param must not be empty")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "asset_cache_buster")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.pool_max", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.connect_timeout", 5*time.Second)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.enabled", false)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Auth defaults
	v.SetDefault("auth.admin_token", "")

	// Store defaults
	v.SetDefault("store.backend", StoreBackendPostgres)
	v.SetDefault("store.cache_ttl", 0)
	v.SetDefault("store.key_prefix", "acb:")

	// Cache buster defaults
	v.SetDefault("cache_buster.query_key", "time")
	v.SetDefault("cache_buster.cookie_name", "asset_cache_time")
	v.SetDefault("cache_buster.cookie_secure", false)
	v.SetDefault("cache_buster.refresh_param", "update_css_js")
	v.SetDefault("cache_buster.nonce_ttl", 12*time.Hour)

	v.SetDefault("auto_migrate", true)
}

// bindEnvVariables 绑定环境变量
func bindEnvVariables(v *viper.Viper) {
	_ = v.BindEnv("env", "APP_ENV")

	// Server
	_ = v.BindEnv("server.port", "SERVER_PORT")
	_ = v.BindEnv("server.host", "SERVER_HOST")
	_ = v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	_ = v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	_ = v.BindEnv("server.shutdown_timeout", "SERVER_SHUTDOWN_TIMEOUT")

	// Database
	_ = v.BindEnv("database.dsn", "DSN", "DATABASE_URL")
	_ = v.BindEnv("database.host", "DATABASE_HOST")
	_ = v.BindEnv("database.port", "DATABASE_PORT")
	_ = v.BindEnv("database.user", "DATABASE_USER")
	_ = v.BindEnv("database.password", "DATABASE_PASSWORD")
	_ = v.BindEnv("database.dbname", "DATABASE_NAME")
	_ = v.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	_ = v.BindEnv("database.pool_max", "DB_POOL_MAX")

	// Redis
	_ = v.BindEnv("redis.url", "REDIS_URL")
	_ = v.BindEnv("redis.host", "REDIS_HOST")
	_ = v.BindEnv("redis.port", "REDIS_PORT")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "REDIS_DB")
	_ = v.BindEnv("redis.enabled", "REDIS_ENABLED")

	// Log
	_ = v.BindEnv("log.level", "LOG_LEVEL")
	_ = v.BindEnv("log.format", "LOG_FORMAT")

	// Auth
	_ = v.BindEnv("auth.admin_token", "ADMIN_TOKEN")

	// Store
	_ = v.BindEnv("store.backend", "STORE_BACKEND")
	_ = v.BindEnv("store.cache_ttl", "STORE_CACHE_TTL")

	// Cache buster
	_ = v.BindEnv("cache_buster.query_key", "CACHE_BUSTER_QUERY_KEY")
	_ = v.BindEnv("cache_buster.cookie_name", "CACHE_BUSTER_COOKIE_NAME")
	_ = v.BindEnv("cache_buster.cookie_secure", "CACHE_BUSTER_COOKIE_SECURE")
	_ = v.BindEnv("cache_buster.refresh_param", "CACHE_BUSTER_REFRESH_PARAM")
	_ = v.BindEnv("cache_buster.nonce_ttl", "CACHE_BUSTER_NONCE_TTL")
}
