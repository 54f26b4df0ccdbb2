// Package sqlstore 数据库无关的快照存储层
//
// 通过 dbutil.Dialect 接口屏蔽不同数据库的 SQL 差异，
// 所有 SQL 以 PostgreSQL 风格编写，运行时由 Dialect.Rebind() 转换。
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"parking-admin/internal/shared/kvstore"
	"parking-admin/internal/shared/kvstore/dbutil"
)

// Store 通用快照存储实现
// 实现了 kvstore.Store 接口
type Store struct {
	db      *sql.DB
	dialect dbutil.Dialect
}

// NewStore 创建通用快照存储，并执行自动迁移
func NewStore(db *sql.DB, dialect dbutil.Dialect) (*Store, error) {
	if err := dialect.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate kv_snapshots: %w", err)
	}
	return &Store{db: db, dialect: dialect}, nil
}

// Load 读取快照
func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	query := s.rebind(`SELECT value FROM kv_snapshots WHERE key = $1`)

	var value []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", key, err)
	}
	return value, nil
}

// Save 写入快照（UPSERT，整体覆盖）
func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	query := s.rebind(fmt.Sprintf(
		`INSERT INTO kv_snapshots (key, value, updated_at) VALUES ($1, $2, %s) %s`,
		s.dialect.CurrentTimestamp(),
		s.dialect.UpsertConflict("key", []string{
			"value = EXCLUDED.value",
			"updated_at = EXCLUDED.updated_at",
		}),
	))

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", key, err)
	}
	return nil
}

// Delete 删除快照
func (s *Store) Delete(ctx context.Context, key string) error {
	query := s.rebind(`DELETE FROM kv_snapshots WHERE key = $1`)

	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete snapshot %s: %w", key, err)
	}
	return nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// DB 返回底层数据库连接（仅用于测试）
func (s *Store) DB() *sql.DB {
	return s.db
}

// rebind 快捷方法：将 PG 风格 SQL 转换为当前方言
func (s *Store) rebind(query string) string {
	return s.dialect.Rebind(query)
}

// 确保 Store 实现了 kvstore.Store 接口
var _ kvstore.Store = (*Store)(nil)
