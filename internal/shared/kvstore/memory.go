// Package kvstore 内存实现（用于测试和无持久化运行）
package kvstore

import (
	"context"
	"sync"
)

// ============================================================================
// MemoryStore - 进程内 Store 实现（用于测试）
// ============================================================================

// MemoryStore 进程内键值快照存储
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore 创建 MemoryStore 实例
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Load 读取快照
func (s *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	return cp, nil
}

// Save 写入快照
func (s *MemoryStore) Save(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	return nil
}

// Delete 删除快照
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Close 关闭存储
func (s *MemoryStore) Close() error {
	return nil
}

// 确保 MemoryStore 实现了 Store 接口
var _ Store = (*MemoryStore)(nil)
