// Package store 提供键值设置存储的抽象与实现
//
// 核心逻辑只依赖 Store 接口，不关心底层介质（Postgres、Redis 或进程内存）。
package store

import "context"

// 设置存储中使用的键
const (
	KeyOptions        = "cache_buster_options"
	KeyClearCacheTime = "cache_buster_clear_time"
)

// Store 键值设置存储
type Store interface {
	// Get 读取键值，不存在时返回 ok=false
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set 写入键值，覆盖旧值
	Set(ctx context.Context, key, value string) error
}

// Pinger 可探活的存储
type Pinger interface {
	Ping(ctx context.Context) error
}
