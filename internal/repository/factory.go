package repository

import (
	"sync"

	"github.com/uptrace/bun"
)

// Factory Repository 工厂（依赖注入容器）
// 使用 sync.Once 保证并发安全的懒加载
type Factory struct {
	db *bun.DB

	optionRepo OptionRepository
	optionOnce sync.Once
}

// NewFactory 创建 Repository 工厂
func NewFactory(db *bun.DB) *Factory {
	return &Factory{db: db}
}

// Option 获取 Option Repository（并发安全）
func (f *Factory) Option() OptionRepository {
	f.optionOnce.Do(func() {
		f.optionRepo = NewOptionRepository(f.db)
	})
	return f.optionRepo
}

// DB 获取数据库实例
func (f *Factory) DB() *bun.DB {
	return f.db
}
