// Package credstore 用户凭据存储测试
package credstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-admin/internal/shared/kvstore"
	"parking-admin/internal/shared/model"
)

func newTestStore(t *testing.T, kv kvstore.Store) *Store {
	t.Helper()
	s, err := NewStore(context.Background(), kv, nil)
	require.NoError(t, err)
	return s
}

// TestNewStore_SeedsOnFirstRun users 键缺失时播种两个固定账户并立即落地
func TestNewStore_SeedsOnFirstRun(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	s := newTestStore(t, kv)

	users := s.List(context.Background())
	require.Len(t, users, 2)
	assert.Equal(t, "vehicleowner", users[0].Username)
	assert.Equal(t, model.UserRoleVehicleOwner, users[0].Role)
	assert.Equal(t, "hashed_12345", users[0].PasswordHash)
	assert.Equal(t, "admin", users[1].Username)
	assert.Equal(t, model.UserRoleAdmin, users[1].Role)
	assert.Equal(t, "hashed_1234567", users[1].PasswordHash)

	// 快照已经写回
	data, err := kv.Load(context.Background(), kvstore.KeyUsers)
	require.NoError(t, err)
	var persisted []model.User
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Len(t, persisted, 2)
}

// TestNewStore_LoadsExistingSnapshot 已有快照时不重新播种
func TestNewStore_LoadsExistingSnapshot(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	existing := []model.User{{ID: "42", Username: "carol", Email: "carol@email.com", Role: model.UserRoleAdmin}}
	data, err := json.Marshal(existing)
	require.NoError(t, err)
	require.NoError(t, kv.Save(context.Background(), kvstore.KeyUsers, data))

	s := newTestStore(t, kv)
	users := s.List(context.Background())
	require.Len(t, users, 1)
	assert.Equal(t, "carol", users[0].Username)
}

func TestFindByUsername_CaseInsensitive(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())
	ctx := context.Background()

	user := s.FindByUsername(ctx, "VehicleOwner")
	require.NotNil(t, user)
	assert.Equal(t, "1", user.ID)

	assert.Nil(t, s.FindByUsername(ctx, "nobody"))
	assert.True(t, s.UsernameExists(ctx, "ADMIN"))
	assert.False(t, s.UsernameExists(ctx, "nobody"))
}

func TestEmailExists_CaseInsensitive(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())
	ctx := context.Background()

	assert.True(t, s.EmailExists(ctx, "Admin@Email.com"))
	assert.False(t, s.EmailExists(ctx, "nobody@email.com"))
}

// TestAdd_PersistsSnapshot 追加用户后重建 Store 仍能看到
func TestAdd_PersistsSnapshot(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	s := newTestStore(t, kv)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, model.User{
		ID: "100", Username: "carol", Email: "carol@email.com", Role: model.UserRoleVehicleOwner,
	}))

	reloaded := newTestStore(t, kv)
	users := reloaded.List(ctx)
	require.Len(t, users, 3)
	assert.Equal(t, "carol", users[2].Username)
}

func TestAdd_DuplicateID(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())
	err := s.Add(context.Background(), model.User{ID: "1", Username: "dup"})
	assert.Error(t, err)
	assert.Len(t, s.List(context.Background()), 2)
}

// TestList_ReturnsCopy 修改返回值不应污染内部状态
func TestList_ReturnsCopy(t *testing.T) {
	s := newTestStore(t, kvstore.NewMemoryStore())
	ctx := context.Background()

	users := s.List(ctx)
	users[0].Username = "mutated"

	again := s.List(ctx)
	assert.Equal(t, "vehicleowner", again[0].Username)
}
