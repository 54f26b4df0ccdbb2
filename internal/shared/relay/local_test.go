// Package relay 进程内中继测试
package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-admin/internal/shared/model"
)

// recvEvent 带超时地从事件流里取一条
func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "event channel closed unexpectedly")
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for relay event")
		return Event{}
	}
}

func TestLocal_PublishEdit(t *testing.T) {
	l := NewLocal()
	defer l.Close()

	ch, err := l.Subscribe(context.Background())
	require.NoError(t, err)

	spot := model.ParkingSpot{ID: "1", Name: "Downtown Parking Garage", Total: 150, Available: 42}
	require.NoError(t, l.PublishEdit(context.Background(), spot))

	event := recvEvent(t, ch)
	assert.Equal(t, TopicEditSpot, event.Topic)
	require.NotNil(t, event.Spot)
	assert.Equal(t, spot, *event.Spot)
	assert.Empty(t, event.SpotID)
}

func TestLocal_PublishDelete(t *testing.T) {
	l := NewLocal()
	defer l.Close()

	ch, err := l.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, l.PublishDelete(context.Background(), "3"))

	event := recvEvent(t, ch)
	assert.Equal(t, TopicDeleteSpot, event.Topic)
	assert.Equal(t, "3", event.SpotID)
	assert.Nil(t, event.Spot)
}

// TestLocal_FanOut 所有活跃订阅者都收到同一事件
func TestLocal_FanOut(t *testing.T) {
	l := NewLocal()
	defer l.Close()

	ch1, err := l.Subscribe(context.Background())
	require.NoError(t, err)
	ch2, err := l.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, l.PublishDelete(context.Background(), "5"))
	assert.Equal(t, "5", recvEvent(t, ch1).SpotID)
	assert.Equal(t, "5", recvEvent(t, ch2).SpotID)
}

// TestLocal_NoSubscribers 没有订阅者时发布直接丢弃，不报错
func TestLocal_NoSubscribers(t *testing.T) {
	l := NewLocal()
	defer l.Close()
	assert.NoError(t, l.PublishDelete(context.Background(), "1"))
}

// TestLocal_SubscribeCancel ctx 取消后通道关闭
func TestLocal_SubscribeCancel(t *testing.T) {
	l := NewLocal()
	defer l.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := l.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancel")
	}
}

// TestLocal_Close 关闭中继后订阅通道关闭、发布变为空操作
func TestLocal_Close(t *testing.T) {
	l := NewLocal()

	ch, err := l.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, l.Close())

	_, ok := <-ch
	assert.False(t, ok)

	assert.NoError(t, l.PublishDelete(context.Background(), "1"))
	assert.NoError(t, l.Close())
}
