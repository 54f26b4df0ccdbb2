// Package server 停车场 HTTP API
//
// 路由规则：
//
// 健康检查:
//   - GET /health - 服务健康检查
//   - GET /api/v1/status - 模拟连接状态
//
// 认证 (Auth):
//   - POST /api/v1/auth/login  - 登录
//   - POST /api/v1/auth/signup - 注册
//   - POST /api/v1/auth/logout - 登出
//   - GET  /api/v1/auth/me     - 当前会话用户
//
// 车位管理 (Spot):
//   - GET    /api/v1/spots      - 列出车场（公开）
//   - GET    /api/v1/spots/{id} - 获取车场详情（公开）
//   - POST   /api/v1/spots      - 创建车场（管理员）
//   - PUT    /api/v1/spots/{id} - 整条替换（管理员）
//   - DELETE /api/v1/spots/{id} - 删除车场（管理员）
//
// WebSocket:
//   - GET /ws/spots - 实时车位推送 + 详情视图编辑/删除动作入口
package server

import (
	"encoding/json"
	"net/http"

	"parking-admin/internal/apiserver/auth"
	"parking-admin/internal/apiserver/registry"
	"parking-admin/internal/apiserver/session"
	"parking-admin/internal/apiserver/simulator"
	"parking-admin/internal/shared/relay"
	"parking-admin/pkg/logging"
)

// Handler API 处理器
//
// 所有 HTTP API 的入口，持有注册表、会话管理器、模拟器和事件中继。
type Handler struct {
	registry *registry.Registry
	sessions *session.Manager
	sim      *simulator.Simulator
	relay    relay.Relay
	authCfg  auth.Config
	logger   *logging.Logger
	metrics  *Metrics
	gateway  *SpotGateway
}

// NewHandler 创建 API 处理器
func NewHandler(reg *registry.Registry, sessions *session.Manager, sim *simulator.Simulator, rel relay.Relay, authCfg auth.Config, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default("server")
	}
	h := &Handler{
		registry: reg,
		sessions: sessions,
		sim:      sim,
		relay:    rel,
		authCfg:  authCfg,
		logger:   logger,
		metrics:  SharedMetrics(),
	}
	h.gateway = NewSpotGateway(reg, sim, rel, authCfg, h.metrics, logger)
	h.metrics.SpotsTotal.Set(float64(reg.Len()))
	return h
}

// Router 返回配置好的 HTTP 路由
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /api/v1/status", h.Status)

	// Prometheus 指标端点
	mux.Handle("GET /metrics", MetricsHandler())

	// 认证接口
	authHandler := auth.NewHandler(h.sessions, h.authCfg, h.metrics, h.logger)
	authHandler.RegisterRoutes(mux)

	// 车位接口：读公开，写只限管理员
	mux.HandleFunc("GET /api/v1/spots", h.ListSpots)
	mux.HandleFunc("GET /api/v1/spots/{id}", h.GetSpot)
	mux.HandleFunc("POST /api/v1/spots", auth.AdminOnly(h.authCfg, h.CreateSpot))
	mux.HandleFunc("PUT /api/v1/spots/{id}", auth.AdminOnly(h.authCfg, h.UpdateSpot))
	mux.HandleFunc("DELETE /api/v1/spots/{id}", auth.AdminOnly(h.authCfg, h.DeleteSpot))

	// 中间件：指标 → JWT 认证
	var apiHandler http.Handler = mux
	apiHandler = auth.Middleware(h.authCfg)(apiHandler)
	apiHandler = h.metricsMiddleware(apiHandler)

	// 顶层路由：WebSocket 绕过 metrics 中间件（避免 http.Hijacker 问题），
	// 访问令牌由网关自行解析
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /ws/spots", h.gateway.HandleWebSocket)
	topMux.Handle("/", apiHandler)
	return topMux
}

// Health 健康检查
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"spots":  h.registry.Len(),
	})
}

// Status 模拟连接状态（装饰性心跳的观测口）
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connected": h.sim.Connected(),
	})
}

// ============================================================================
// 工具函数
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
