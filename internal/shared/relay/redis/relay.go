// Package redis Redis Pub/Sub 事件中继实现
//
// 线上格式：
//   - edit-spot 通道承载完整 ParkingSpot JSON
//   - delete-spot 通道承载车场 ID 字符串
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"parking-admin/internal/shared/model"
	"parking-admin/internal/shared/relay"
)

// Relay Redis 事件中继
type Relay struct {
	client *redis.Client
}

// NewRelay 基于已有客户端创建中继（与快照存储复用同一连接配置）
func NewRelay(client *redis.Client) *Relay {
	return &Relay{client: client}
}

// NewRelayFromURL 从 URL 创建中继
func NewRelayFromURL(redisURL string) (*Relay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return &Relay{client: redis.NewClient(opts)}, nil
}

// Ping 验证 Redis 连通性
func (r *Relay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// PublishEdit 发布整条替换记录
func (r *Relay) PublishEdit(ctx context.Context, spot model.ParkingSpot) error {
	payload, err := json.Marshal(spot)
	if err != nil {
		return fmt.Errorf("failed to marshal spot: %w", err)
	}
	if err := r.client.Publish(ctx, relay.TopicEditSpot, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish edit-spot: %w", err)
	}
	return nil
}

// PublishDelete 只发布标识符
func (r *Relay) PublishDelete(ctx context.Context, spotID string) error {
	if err := r.client.Publish(ctx, relay.TopicDeleteSpot, spotID).Err(); err != nil {
		return fmt.Errorf("failed to publish delete-spot: %w", err)
	}
	return nil
}

// Subscribe 订阅两个主题的事件流
func (r *Relay) Subscribe(ctx context.Context) (<-chan relay.Event, error) {
	pubsub := r.client.Subscribe(ctx, relay.TopicEditSpot, relay.TopicDeleteSpot)

	// 确认订阅建立，避免发布先于订阅
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe relay topics: %w", err)
	}

	ch := make(chan relay.Event, 64)

	go func() {
		defer close(ch)
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				event, err := decodeMessage(msg)
				if err != nil {
					log.Printf("[Redis/Relay] Dropping malformed message on %s: %v", msg.Channel, err)
					continue
				}
				select {
				case ch <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

// decodeMessage 按主题解码线上负载
func decodeMessage(msg *redis.Message) (relay.Event, error) {
	switch msg.Channel {
	case relay.TopicEditSpot:
		var spot model.ParkingSpot
		if err := json.Unmarshal([]byte(msg.Payload), &spot); err != nil {
			return relay.Event{}, fmt.Errorf("failed to unmarshal spot payload: %w", err)
		}
		return relay.Event{Topic: relay.TopicEditSpot, Spot: &spot}, nil
	case relay.TopicDeleteSpot:
		return relay.Event{Topic: relay.TopicDeleteSpot, SpotID: msg.Payload}, nil
	default:
		return relay.Event{}, fmt.Errorf("unknown relay topic %q", msg.Channel)
	}
}

// Close 关闭中继
func (r *Relay) Close() error {
	return r.client.Close()
}

// 确保 Relay 实现了 relay.Relay 接口
var _ relay.Relay = (*Relay)(nil)
