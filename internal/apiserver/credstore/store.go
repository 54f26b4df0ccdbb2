// Package credstore 用户凭据存储
//
// 用户集合以整体 JSON 快照存放在 kvstore 的 users 键下，
// 每次变更重写完整快照。内存中保留一份有序副本供查询。
package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"parking-admin/internal/shared/kvstore"
	"parking-admin/internal/shared/model"
	"parking-admin/pkg/logging"
)

// Store 用户凭据存储
type Store struct {
	mu     sync.RWMutex
	kv     kvstore.Store
	users  []model.User
	logger *logging.Logger
}

// NewStore 创建凭据存储
//
// 首次运行（users 键缺失）时用两个固定账户播种并立即写回快照。
func NewStore(ctx context.Context, kv kvstore.Store, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.Default("credstore")
	}
	s := &Store{kv: kv, logger: logger}

	data, err := kv.Load(ctx, kvstore.KeyUsers)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		s.users = SeedUsers()
		if err := s.persist(ctx); err != nil {
			return nil, fmt.Errorf("failed to seed users: %w", err)
		}
		logger.Info("Seeded initial user accounts", "count", len(s.users))
	case err != nil:
		return nil, fmt.Errorf("failed to load users snapshot: %w", err)
	default:
		if err := json.Unmarshal(data, &s.users); err != nil {
			return nil, fmt.Errorf("failed to unmarshal users snapshot: %w", err)
		}
	}

	return s, nil
}

// FindByUsername 按用户名查找（大小写不敏感），不存在时返回 nil
func (s *Store) FindByUsername(ctx context.Context, username string) *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.users {
		if s.users[i].UsernameEquals(username) {
			u := s.users[i]
			return &u
		}
	}
	return nil
}

// UsernameExists 用户名是否已占用（大小写不敏感）
func (s *Store) UsernameExists(ctx context.Context, username string) bool {
	return s.FindByUsername(ctx, username) != nil
}

// EmailExists 邮箱是否已占用（大小写不敏感）
func (s *Store) EmailExists(ctx context.Context, email string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.users {
		if s.users[i].EmailEquals(email) {
			return true
		}
	}
	return false
}

// Add 追加用户并重写完整快照
func (s *Store) Add(ctx context.Context, user model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.users {
		if s.users[i].ID == user.ID {
			return fmt.Errorf("duplicate user id %s", user.ID)
		}
	}
	s.users = append(s.users, user)

	if err := s.persist(ctx); err != nil {
		// 回滚内存副本，保证失败不留下半更新状态
		s.users = s.users[:len(s.users)-1]
		return err
	}
	return nil
}

// List 返回全部用户的副本（插入顺序）
func (s *Store) List(ctx context.Context) []model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.User, len(s.users))
	copy(out, s.users)
	return out
}

// persist 重写完整快照，调用方需持有写锁（或在构造期独占）
func (s *Store) persist(ctx context.Context) error {
	data, err := json.Marshal(s.users)
	if err != nil {
		return fmt.Errorf("failed to marshal users snapshot: %w", err)
	}
	if err := s.kv.Save(ctx, kvstore.KeyUsers, data); err != nil {
		s.logger.SnapshotLog("save", kvstore.KeyUsers, err)
		return err
	}
	s.logger.SnapshotLog("save", kvstore.KeyUsers, nil)
	return nil
}
