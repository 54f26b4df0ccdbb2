// Package relay 车位变更事件中继抽象接口
//
// 把详情视图发起的"编辑/删除"动作与注册表持有者解耦：
// 发布方不持有注册表引用，只向固定主题发布事件。
// 当前由 Redis Pub/Sub 实现，进程内实现用于测试和无 Redis 运行。
package relay

import (
	"context"

	"parking-admin/internal/shared/model"
)

// 中继主题
const (
	TopicEditSpot   = "edit-spot"   // 负载：完整 ParkingSpot JSON
	TopicDeleteSpot = "delete-spot" // 负载：车场 ID 字符串
)

// Event 中继事件
type Event struct {
	Topic  string             `json:"topic"`
	Spot   *model.ParkingSpot `json:"spot,omitempty"`   // edit-spot 负载
	SpotID string             `json:"spotId,omitempty"` // delete-spot 负载
}

// Relay 事件中继接口
//
// 所有活跃订阅者都会收到事件；没有订阅者时事件被丢弃
// （与 Redis Pub/Sub 语义一致）。
type Relay interface {
	// PublishEdit 发布整条替换记录
	PublishEdit(ctx context.Context, spot model.ParkingSpot) error
	// PublishDelete 只发布标识符
	PublishDelete(ctx context.Context, spotID string) error
	// Subscribe 订阅两个主题的事件流，ctx 取消后通道关闭
	Subscribe(ctx context.Context) (<-chan Event, error)
	Close() error
}
