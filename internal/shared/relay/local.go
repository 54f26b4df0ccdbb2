// Package relay 进程内实现
package relay

import (
	"context"
	"sync"

	"parking-admin/internal/shared/model"
)

// ============================================================================
// Local - 进程内 Relay 实现（用于测试和无 Redis 运行）
// ============================================================================

// Local 进程内事件中继
type Local struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	closed bool
}

// NewLocal 创建 Local 实例
func NewLocal() *Local {
	return &Local{subs: make(map[chan Event]struct{})}
}

// PublishEdit 发布整条替换记录
func (l *Local) PublishEdit(ctx context.Context, spot model.ParkingSpot) error {
	return l.publish(Event{Topic: TopicEditSpot, Spot: &spot})
}

// PublishDelete 只发布标识符
func (l *Local) PublishDelete(ctx context.Context, spotID string) error {
	return l.publish(Event{Topic: TopicDeleteSpot, SpotID: spotID})
}

func (l *Local) publish(event Event) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil
	}
	for ch := range l.subs {
		// 订阅通道带缓冲；消费者积压时丢弃，与 Redis Pub/Sub 语义一致
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe 订阅事件流
func (l *Local) Subscribe(ctx context.Context) (<-chan Event, error) {
	ch := make(chan Event, 64)

	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		if _, ok := l.subs[ch]; ok {
			delete(l.subs, ch)
			close(ch)
		}
		l.mu.Unlock()
	}()

	return ch, nil
}

// SubscriberCount 当前活跃订阅数（测试用同步点）
func (l *Local) SubscriberCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

// Close 关闭中继，释放所有订阅通道
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	for ch := range l.subs {
		delete(l.subs, ch)
		close(ch)
	}
	return nil
}

// 确保 Local 实现了 Relay 接口
var _ Relay = (*Local)(nil)
