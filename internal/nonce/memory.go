package nonce

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/ding113/asset-cache-buster/internal/pkg/errors"
	"github.com/ding113/asset-cache-buster/internal/pkg/utils"
)

// MemoryManager 进程内验证令牌管理器，仅适用于单实例
type MemoryManager struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

var _ Manager = (*MemoryManager)(nil)

// NewMemoryManager 创建内存令牌管理器
func NewMemoryManager(ttl time.Duration) *MemoryManager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryManager{
		entries: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Issue 签发令牌，顺带清理过期条目
func (m *MemoryManager) Issue(_ context.Context, action string) (string, error) {
	token, err := utils.GenerateNonce()
	if err != nil {
		return "", apperrors.NewInternalError("failed to generate verification token").WithError(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, exp := range m.entries {
		if !now.Before(exp) {
			delete(m.entries, k)
		}
	}
	m.entries[storageKey(action, token)] = now.Add(m.ttl)

	return token, nil
}

// Verify 校验并消费令牌
func (m *MemoryManager) Verify(_ context.Context, action, token string) (bool, error) {
	if token == "" {
		return false, nil
	}

	key := storageKey(action, token)

	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	delete(m.entries, key)

	return m.now().Before(exp), nil
}

// TTL 令牌有效期
func (m *MemoryManager) TTL() time.Duration {
	return m.ttl
}
