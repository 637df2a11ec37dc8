package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ding113/asset-cache-buster/internal/model"
	apperrors "github.com/ding113/asset-cache-buster/internal/pkg/errors"
	"github.com/uptrace/bun"
)

// OptionRepository 键值设置数据访问接口
type OptionRepository interface {
	Repository

	// Get 根据名称获取设置，不存在时返回 nil, nil
	Get(ctx context.Context, name string) (*model.Option, error)

	// Upsert 写入设置，已存在时覆盖
	Upsert(ctx context.Context, name, value string) error

	// EnsureSchema 创建 options 表（幂等）
	EnsureSchema(ctx context.Context) error
}

// optionRepository OptionRepository 实现
type optionRepository struct {
	*BaseRepository
}

// NewOptionRepository 创建 OptionRepository
func NewOptionRepository(db *bun.DB) OptionRepository {
	return &optionRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Get 根据名称获取设置
func (r *optionRepository) Get(ctx context.Context, name string) (*model.Option, error) {
	opt := new(model.Option)
	err := r.db.NewSelect().
		Model(opt).
		Where("name = ?", name).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseError(err)
	}

	return opt, nil
}

// Upsert 写入设置
// 单个标量覆盖，并发写入时后写者胜出
func (r *optionRepository) Upsert(ctx context.Context, name, value string) error {
	now := time.Now()
	opt := &model.Option{
		Name:      name,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.NewInsert().
		Model(opt).
		On("CONFLICT (name) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	if err != nil {
		return apperrors.NewDatabaseError(err)
	}
	return nil
}

// EnsureSchema 创建 options 表
func (r *optionRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*model.Option)(nil)).
		IfNotExists().
		Exec(ctx)

	if err != nil {
		return apperrors.NewDatabaseError(err)
	}
	return nil
}
