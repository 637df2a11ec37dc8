// Package nonce 签发与校验一次性的、绑定动作名的验证令牌
//
// 令牌只以 SHA256 哈希形式存储；校验即消费，同一令牌不能使用两次，
// 为某个动作签发的令牌不能用于其他动作。
package nonce

import (
	"context"
	"time"

	"github.com/ding113/asset-cache-buster/internal/pkg/utils"
)

// 已知动作
const (
	// ActionClearCacheTime 管理 API 手动刷新
	ActionClearCacheTime = "clear_cache_time"
	// ActionUpdateCSSJS 页面级刷新链接
	ActionUpdateCSSJS = "update_css_js"
)

// Actions 所有可签发令牌的动作
var Actions = []string{ActionClearCacheTime, ActionUpdateCSSJS}

// DefaultTTL 默认有效期
const DefaultTTL = 12 * time.Hour

// Manager 验证令牌管理器
type Manager interface {
	// Issue 为动作签发新令牌
	Issue(ctx context.Context, action string) (string, error)

	// Verify 校验并消费令牌，无效、过期或已使用时返回 false
	Verify(ctx context.Context, action, token string) (bool, error)

	// TTL 令牌有效期
	TTL() time.Duration
}

// storageKey 令牌存储键：nonce:<action>:<sha256(token)>
func storageKey(action, token string) string {
	return "nonce:" + action + ":" + utils.HashToken(token)
}
