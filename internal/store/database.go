package store

import (
	"context"

	"github.com/ding113/asset-cache-buster/internal/repository"
)

// DatabaseStore 基于 options 表的设置存储
type DatabaseStore struct {
	repo repository.OptionRepository
}

var _ Store = (*DatabaseStore)(nil)

// NewDatabase 创建数据库存储
func NewDatabase(repo repository.OptionRepository) *DatabaseStore {
	return &DatabaseStore{repo: repo}
}

// Get 读取键值
func (d *DatabaseStore) Get(ctx context.Context, key string) (string, bool, error) {
	opt, err := d.repo.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if opt == nil {
		return "", false, nil
	}
	return opt.Value, true, nil
}

// Set 写入键值
func (d *DatabaseStore) Set(ctx context.Context, key, value string) error {
	return d.repo.Upsert(ctx, key, value)
}

// Ping 探活
func (d *DatabaseStore) Ping(ctx context.Context) error {
	return d.repo.DB().PingContext(ctx)
}
