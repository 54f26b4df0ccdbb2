// Package server HTTP API 测试
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parking-admin/internal/apiserver/auth"
	"parking-admin/internal/apiserver/credstore"
	"parking-admin/internal/apiserver/registry"
	"parking-admin/internal/apiserver/session"
	"parking-admin/internal/apiserver/simulator"
	"parking-admin/internal/config"
	"parking-admin/internal/shared/kvstore"
	"parking-admin/internal/shared/model"
	"parking-admin/internal/shared/relay"
)

// testEnv 一套完整的被测组件
type testEnv struct {
	handler  *Handler
	registry *registry.Registry
	relay    *relay.Local
	sessions *session.Manager
	authCfg  auth.Config
}

// newTestEnv 构建被测 Handler；secret 为空表示无认证模式
func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()
	ctx := context.Background()

	kv := kvstore.NewMemoryStore()
	creds, err := credstore.NewStore(ctx, kv, nil)
	require.NoError(t, err)
	sessions, err := session.NewManager(ctx, creds, kv, session.LegacyHasher{}, nil)
	require.NoError(t, err)

	reg := registry.New(nil)
	rel := relay.NewLocal()
	t.Cleanup(func() { rel.Close() })

	simCfg := config.SimulatorConfig{
		HeartbeatInterval: time.Hour,
		UpdateInterval:    time.Hour,
		UpdateProbability: 0,
	}
	sim := simulator.New(reg, simCfg, nil, nil, nil)

	authCfg := auth.Config{JWTSecret: secret, AccessTokenTTL: time.Hour}
	h := NewHandler(reg, sessions, sim, rel, authCfg, nil)

	return &testEnv{handler: h, registry: reg, relay: rel, sessions: sessions, authCfg: authCfg}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	token, err := auth.GenerateAccessToken(e.authCfg, "2", "admin", "admin")
	require.NoError(t, err)
	return token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

// ============================================================================
// 健康检查与状态
// ============================================================================

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, "GET", "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(5), body["spots"])
}

func TestStatus(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, "GET", "/api/v1/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	decodeBody(t, rec, &body)
	assert.False(t, body["connected"])
}

// ============================================================================
// 车位读取
// ============================================================================

func TestListSpots(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, "GET", "/api/v1/spots", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Spots     []model.ParkingSpot `json:"spots"`
		Connected bool                `json:"connected"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Spots, 5)
	assert.Equal(t, "Downtown Parking Garage", body.Spots[0].Name)
	assert.False(t, body.Connected)
}

func TestGetSpot(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, "GET", "/api/v1/spots/3", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var spot model.ParkingSpot
	decodeBody(t, rec, &spot)
	assert.Equal(t, "Riverside Parking Lot", spot.Name)

	rec = env.do(t, "GET", "/api/v1/spots/999", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ============================================================================
// 车位写入（无认证模式）
// ============================================================================

func TestCreateSpot(t *testing.T) {
	env := newTestEnv(t, "")

	spot := model.ParkingSpot{Name: "New Lot", Address: "1 New St", Total: 30, Available: 30, HourlyRate: 5}
	rec := env.do(t, "POST", "/api/v1/spots", spot, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.ParkingSpot
	decodeBody(t, rec, &created)
	assert.NotEmpty(t, created.ID, "server should assign an id")
	assert.Equal(t, "New Lot", created.Name)
	assert.Equal(t, 6, env.registry.Len())
}

func TestCreateSpot_ClientProvidedID(t *testing.T) {
	env := newTestEnv(t, "")

	spot := model.ParkingSpot{ID: "custom-1", Name: "Lot", Total: 10, Available: 0}
	rec := env.do(t, "POST", "/api/v1/spots", spot, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotNil(t, env.registry.Get("custom-1"))

	// 重复 ID 冲突
	rec = env.do(t, "POST", "/api/v1/spots", spot, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateSpot_Invalid(t *testing.T) {
	env := newTestEnv(t, "")

	tests := []struct {
		name string
		spot model.ParkingSpot
	}{
		{"缺少名称", model.ParkingSpot{Total: 10}},
		{"容量为零", model.ParkingSpot{Name: "x", Total: 0}},
		{"可用数超过容量", model.ParkingSpot{Name: "x", Total: 5, Available: 6}},
		{"费率为负", model.ParkingSpot{Name: "x", Total: 5, HourlyRate: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/api/v1/spots", tt.spot, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

// TestCreateSpot_PublishedToRelay 新建车场广播到中继，跨实例订阅者可见
func TestCreateSpot_PublishedToRelay(t *testing.T) {
	env := newTestEnv(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := env.relay.Subscribe(ctx)
	require.NoError(t, err)

	spot := model.ParkingSpot{ID: "custom-9", Name: "Lot", Total: 10, Available: 5}
	rec := env.do(t, "POST", "/api/v1/spots", spot, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	select {
	case ev := <-events:
		assert.Equal(t, relay.TopicEditSpot, ev.Topic)
		require.NotNil(t, ev.Spot)
		assert.Equal(t, "custom-9", ev.Spot.ID)
	case <-time.After(time.Second):
		t.Fatal("no relay event after create")
	}
}

func TestUpdateSpot(t *testing.T) {
	env := newTestEnv(t, "")

	updated := *env.registry.Get("2")
	updated.Available = 60
	rec := env.do(t, "PUT", "/api/v1/spots/2", updated, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 60, env.registry.Get("2").Available)

	// 路径 ID 优先于 body 里的 ID
	renamed := *env.registry.Get("4")
	renamed.ID = "other"
	renamed.Name = "Renamed"
	rec = env.do(t, "PUT", "/api/v1/spots/4", renamed, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Renamed", env.registry.Get("4").Name)
	assert.Nil(t, env.registry.Get("other"))
}

func TestDeleteSpot(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, "DELETE", "/api/v1/spots/1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, env.registry.Get("1"))
	assert.Equal(t, 4, env.registry.Len())

	// 不存在时也是成功的空操作
	rec = env.do(t, "DELETE", "/api/v1/spots/1", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, env.registry.Len())
}

// ============================================================================
// 认证与权限
// ============================================================================

// TestSpotMutations_RequireAdmin 启用认证后写操作需要管理员令牌
func TestSpotMutations_RequireAdmin(t *testing.T) {
	env := newTestEnv(t, "test-secret")
	spot := model.ParkingSpot{Name: "Lot", Total: 10}

	// 无令牌
	rec := env.do(t, "POST", "/api/v1/spots", spot, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// 普通用户令牌
	ownerToken, err := auth.GenerateAccessToken(env.authCfg, "1", "vehicleowner", "vehicle-owner")
	require.NoError(t, err)
	rec = env.do(t, "DELETE", "/api/v1/spots/1", nil, ownerToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotNil(t, env.registry.Get("1"))

	// 管理员令牌
	rec = env.do(t, "POST", "/api/v1/spots", spot, env.adminToken(t))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

// TestSpotReads_Public 读取接口无需令牌
func TestSpotReads_Public(t *testing.T) {
	env := newTestEnv(t, "test-secret")

	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/api/v1/spots", nil, "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/api/v1/spots/1", nil, "").Code)
	assert.Equal(t, http.StatusOK, env.do(t, "GET", "/health", nil, "").Code)
}

// ============================================================================
// 认证接口（经由完整路由）
// ============================================================================

func TestAuthLogin(t *testing.T) {
	env := newTestEnv(t, "test-secret")

	rec := env.do(t, "POST", "/api/v1/auth/login", map[string]string{
		"username": "admin", "password": "1234567",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		User        model.User `json:"user"`
		AccessToken string     `json:"access_token"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "admin", body.User.Username)
	assert.Empty(t, body.User.PasswordHash, "password hash must not leak")
	require.NotEmpty(t, body.AccessToken)

	// 返回的令牌可用于写操作
	spot := model.ParkingSpot{Name: "Lot", Total: 10}
	rec = env.do(t, "POST", "/api/v1/spots", spot, body.AccessToken)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

// TestAuthLogin_ConcurrentSessions 并发登录各自拿到与自己凭证一致的令牌
func TestAuthLogin_ConcurrentSessions(t *testing.T) {
	env := newTestEnv(t, "test-secret")

	type outcome struct {
		username string
		rec      *httptest.ResponseRecorder
	}
	const rounds = 10
	results := make(chan outcome, rounds*2)

	var wg sync.WaitGroup
	for _, cred := range []struct{ username, password string }{
		{"admin", "1234567"},
		{"vehicleowner", "12345"},
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				rec := env.do(t, "POST", "/api/v1/auth/login", map[string]string{
					"username": cred.username, "password": cred.password,
				}, "")
				results <- outcome{username: cred.username, rec: rec}
			}
		}()
	}
	wg.Wait()
	close(results)

	for out := range results {
		require.Equal(t, http.StatusOK, out.rec.Code)
		var body struct {
			User        model.User `json:"user"`
			AccessToken string     `json:"access_token"`
		}
		decodeBody(t, out.rec, &body)
		assert.Equal(t, out.username, body.User.Username)

		claims, err := auth.ParseToken(env.authCfg, body.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, out.username, claims.Username, "token must carry the identity that logged in")
	}
}

func TestAuthLogin_Failures(t *testing.T) {
	env := newTestEnv(t, "test-secret")

	rec := env.do(t, "POST", "/api/v1/auth/login", map[string]string{
		"username": "nobody", "password": "x",
	}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "User not found", body["error"])

	rec = env.do(t, "POST", "/api/v1/auth/login", map[string]string{
		"username": "admin", "password": "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	decodeBody(t, rec, &body)
	assert.Equal(t, "Invalid password", body["error"])

	// 缺字段
	rec = env.do(t, "POST", "/api/v1/auth/login", map[string]string{"username": "admin"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthSignup(t *testing.T) {
	env := newTestEnv(t, "test-secret")

	rec := env.do(t, "POST", "/api/v1/auth/signup", map[string]string{
		"username": "carol",
		"email":    "carol@email.com",
		"role":     "vehicle-owner",
		"password": "secret",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		User        model.User `json:"user"`
		AccessToken string     `json:"access_token"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "carol", body.User.Username)
	assert.NotEmpty(t, body.User.ID)
	assert.NotEmpty(t, body.AccessToken)
}

func TestAuthSignup_Failures(t *testing.T) {
	env := newTestEnv(t, "test-secret")

	// 用户名冲突
	rec := env.do(t, "POST", "/api/v1/auth/signup", map[string]string{
		"username": "admin", "email": "x@email.com", "role": "admin", "password": "pw",
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "Username already exists", body["error"])

	// 邮箱冲突
	rec = env.do(t, "POST", "/api/v1/auth/signup", map[string]string{
		"username": "fresh", "email": "admin@email.com", "role": "admin", "password": "pw",
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	decodeBody(t, rec, &body)
	assert.Equal(t, "Email already exists", body["error"])

	// 非法角色
	rec = env.do(t, "POST", "/api/v1/auth/signup", map[string]string{
		"username": "fresh2", "email": "fresh2@email.com", "role": "superuser", "password": "pw",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 非法邮箱
	rec = env.do(t, "POST", "/api/v1/auth/signup", map[string]string{
		"username": "fresh3", "email": "not-an-email", "role": "admin", "password": "pw",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthMeAndLogout(t *testing.T) {
	env := newTestEnv(t, "")

	// 未登录
	rec := env.do(t, "GET", "/api/v1/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, "POST", "/api/v1/auth/login", map[string]string{
		"username": "vehicleowner", "password": "12345",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, "GET", "/api/v1/auth/me", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var user model.User
	decodeBody(t, rec, &user)
	assert.Equal(t, "vehicleowner", user.Username)

	rec = env.do(t, "POST", "/api/v1/auth/logout", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, "GET", "/api/v1/auth/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ============================================================================
// 指标端点
// ============================================================================

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, "GET", "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "parking_")
}
