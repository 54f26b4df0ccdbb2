// Package kvstore 持久化键值快照存储抽象接口
//
// 会话和用户集合以整体 JSON 快照的形式落地，
// 每次变更重写完整快照。当前由 Redis / SQLite / PostgreSQL 实现。
package kvstore

import (
	"context"
	"errors"
)

// 固定快照键
const (
	KeyCurrentUser = "currentUser" // 当前会话快照（缺失 ⇒ 未登录）
	KeyUsers       = "users"       // 用户集合快照（缺失 ⇒ 首次运行，需要播种）
)

// ErrNotFound 键不存在
var ErrNotFound = errors.New("kvstore: key not found")

// Store 键值快照存储接口
type Store interface {
	// Load 读取键对应的快照，键不存在时返回 ErrNotFound
	Load(ctx context.Context, key string) ([]byte, error)
	// Save 写入（覆盖）键对应的快照
	Save(ctx context.Context, key string, value []byte) error
	// Delete 删除键，键不存在时为空操作
	Delete(ctx context.Context, key string) error
	Close() error
}
