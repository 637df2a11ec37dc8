package model

import (
	"time"

	"github.com/uptrace/bun"
)

// Option 键值设置记录
// 版本号策略配置与手动刷新时间都以一行一个键的方式保存
type Option struct {
	bun.BaseModel `bun:"table:options,alias:o"`

	Name  string `bun:"name,pk" json:"name"`
	Value string `bun:"value,notnull,default:''" json:"value"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}
