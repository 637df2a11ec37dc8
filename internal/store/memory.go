package store

import (
	"context"
	"sync"
)

// MemoryStore 进程内存储，适用于单实例部署与测试
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemory 创建内存存储
func NewMemory() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

// Get 读取键值
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set 写入键值
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Ping 内存存储始终可用
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
