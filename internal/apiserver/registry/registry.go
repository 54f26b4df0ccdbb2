// Package registry 车位注册表
//
// 车位记录的唯一事实来源：有序内存集合（插入顺序），
// 管理员编辑、可用数模拟器和事件中继都通过它修改数据。
// 每次变更对观察者原子可见；注册表不跨重启持久化，
// 全新启动时重置为固定种子数据。
package registry

import (
	"context"
	"sync"

	"parking-admin/internal/shared/model"
	"parking-admin/internal/shared/relay"
	"parking-admin/pkg/logging"
)

// ChangeType 变更类型
type ChangeType string

const (
	ChangeUpsert ChangeType = "upsert"
	ChangeRemove ChangeType = "remove"
)

// Change 注册表变更事件（推送给观察者）
type Change struct {
	Type   ChangeType         `json:"type"`
	Spot   *model.ParkingSpot `json:"spot,omitempty"`   // upsert 携带整条记录
	SpotID string             `json:"spotId,omitempty"` // remove 只携带标识符
}

// Registry 车位注册表
type Registry struct {
	mu       sync.RWMutex
	spots    []model.ParkingSpot
	watchers map[chan Change]struct{}
	logger   *logging.Logger
}

// New 创建注册表并播种固定车场数据
func New(logger *logging.Logger) *Registry {
	return NewWithSpots(SeedSpots(), logger)
}

// NewWithSpots 用给定初始数据创建注册表
func NewWithSpots(spots []model.ParkingSpot, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default("registry")
	}
	r := &Registry{
		spots:    make([]model.ParkingSpot, len(spots)),
		watchers: make(map[chan Change]struct{}),
		logger:   logger,
	}
	copy(r.spots, spots)
	return r
}

// List 返回全部车场的副本（插入顺序）
func (r *Registry) List() []model.ParkingSpot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.ParkingSpot, len(r.spots))
	copy(out, r.spots)
	return out
}

// Get 按 ID 查找，不存在时返回 nil
func (r *Registry) Get(id string) *model.ParkingSpot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := range r.spots {
		if r.spots[i].ID == id {
			s := r.spots[i]
			return &s
		}
	}
	return nil
}

// Upsert 插入或整条替换
//
// 已存在时原位替换（保持位置），否则追加到末尾。
func (r *Registry) Upsert(spot model.ParkingSpot) {
	r.mu.Lock()
	replaced := false
	for i := range r.spots {
		if r.spots[i].ID == spot.ID {
			r.spots[i] = spot
			replaced = true
			break
		}
	}
	if !replaced {
		r.spots = append(r.spots, spot)
	}
	r.notifyLocked(Change{Type: ChangeUpsert, Spot: &spot})
	r.mu.Unlock()

	r.logger.WithSpotID(spot.ID).Debug("Spot upserted", "replaced", replaced)
}

// Remove 按 ID 删除，不存在时为空操作
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	removed := false
	for i := range r.spots {
		if r.spots[i].ID == id {
			r.spots = append(r.spots[:i], r.spots[i+1:]...)
			removed = true
			break
		}
	}
	if removed {
		r.notifyLocked(Change{Type: ChangeRemove, SpotID: id})
	}
	r.mu.Unlock()

	if removed {
		r.logger.WithSpotID(id).Debug("Spot removed")
	}
}

// AdjustAvailable 在写锁内给可用数加上增量并钳制到 [0, Total]
//
// 读-改-写发生在同一临界区内，不会覆盖其他字段的并发修改。
// 返回调整后的可用数；车场不存在时第二个返回值为 false。
func (r *Registry) AdjustAvailable(id string, delta int) (int, bool) {
	r.mu.Lock()
	for i := range r.spots {
		if r.spots[i].ID == id {
			r.spots[i].Available += delta
			r.spots[i].ClampAvailable()
			spot := r.spots[i]
			r.notifyLocked(Change{Type: ChangeUpsert, Spot: &spot})
			r.mu.Unlock()

			r.logger.WithSpotID(id).Debug("Availability adjusted", "delta", delta, "available", spot.Available)
			return spot.Available, true
		}
	}
	r.mu.Unlock()
	return 0, false
}

// Len 当前车场数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.spots)
}

// Watch 订阅变更事件流，ctx 取消后通道关闭
func (r *Registry) Watch(ctx context.Context) <-chan Change {
	ch := make(chan Change, 64)

	r.mu.Lock()
	r.watchers[ch] = struct{}{}
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		if _, ok := r.watchers[ch]; ok {
			delete(r.watchers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}()

	return ch
}

// notifyLocked 向所有观察者推送变更，调用方需持有写锁
// 观察者积压时丢弃事件（WebSocket 网关会用全量快照兜底）
func (r *Registry) notifyLocked(change Change) {
	for ch := range r.watchers {
		select {
		case ch <- change:
		default:
		}
	}
}

// ConsumeRelay 消费事件中继：edit-spot → Upsert，delete-spot → Remove
//
// 阻塞直到 ctx 取消或中继关闭，应在独立 goroutine 中运行。
func (r *Registry) ConsumeRelay(ctx context.Context, rel relay.Relay) error {
	events, err := rel.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return nil
			}
			switch event.Topic {
			case relay.TopicEditSpot:
				if event.Spot == nil {
					continue
				}
				// 中继是开放的入口，非法记录在这里兜底拦截
				if err := event.Spot.Validate(); err != nil {
					r.logger.WithError(err).WithSpotID(event.Spot.ID).Warn("Dropping invalid relay edit")
					continue
				}
				r.Upsert(*event.Spot)
			case relay.TopicDeleteSpot:
				if event.SpotID != "" {
					r.Remove(event.SpotID)
				}
			}
		}
	}
}
