// Package server WebSocket 车位网关
//
// 网关向客户端提供实时车位流，并把详情视图发起的编辑/删除动作
// 转发给事件中继（客户端不直接持有注册表引用）。
//
// 推送消息格式：
//
//	快照：  {"type": "snapshot", "spots": [...], "connected": true}
//	增量：  {"type": "update", "change": {"type": "upsert", "spot": {...}}}
//	心跳：  {"type": "connectivity", "connected": true}
//
// 客户端消息：
//
//	心跳：  {"type": "ping"} -> 响应 {"type": "pong"}
//	编辑：  {"type": "edit-spot", "spot": {...}}（仅管理员连接）
//	删除：  {"type": "delete-spot", "spotId": "..."}（仅管理员连接）
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"parking-admin/internal/apiserver/auth"
	"parking-admin/internal/apiserver/registry"
	"parking-admin/internal/apiserver/simulator"
	"parking-admin/internal/shared/model"
	"parking-admin/internal/shared/relay"
	"parking-admin/pkg/logging"
)

// upgrader WebSocket 升级器配置
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// connectivityPushInterval 连接状态推送周期（与模拟器心跳同步）
const connectivityPushInterval = 5 * time.Second

// SpotGateway WebSocket 车位网关
type SpotGateway struct {
	registry *registry.Registry
	sim      *simulator.Simulator
	relay    relay.Relay
	authCfg  auth.Config
	metrics  *Metrics
	logger   *logging.Logger
}

// NewSpotGateway 创建车位网关
func NewSpotGateway(reg *registry.Registry, sim *simulator.Simulator, rel relay.Relay, authCfg auth.Config, metrics *Metrics, logger *logging.Logger) *SpotGateway {
	if logger == nil {
		logger = logging.Default("spot-gateway")
	}
	return &SpotGateway{
		registry: reg,
		sim:      sim,
		relay:    rel,
		authCfg:  authCfg,
		metrics:  metrics,
		logger:   logger,
	}
}

// wsMessage 双向消息信封
type wsMessage struct {
	Type      string              `json:"type"`
	Spots     []model.ParkingSpot `json:"spots,omitempty"`
	Change    *registry.Change    `json:"change,omitempty"`
	Spot      *model.ParkingSpot  `json:"spot,omitempty"`
	SpotID    string              `json:"spotId,omitempty"`
	Connected *bool               `json:"connected,omitempty"`
}

// HandleWebSocket 处理 WebSocket 连接请求
//
// 路由: GET /ws/spots
func (g *SpotGateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// 升级前判定连接身份：推送对所有人开放，编辑/删除动作只限管理员
	admin := g.isAdmin(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	g.metrics.WSConnectionsActive.Inc()
	defer g.metrics.WSConnectionsActive.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	changes := g.registry.Watch(ctx)

	// 出站消息统一走单通道，避免并发写同一连接
	outbound := make(chan wsMessage, 64)

	go g.readLoop(ctx, cancel, conn, outbound, admin)

	// 初始全量快照
	connected := g.sim.Connected()
	if err := g.send(conn, wsMessage{Type: "snapshot", Spots: g.registry.List(), Connected: &connected}); err != nil {
		return
	}

	ticker := time.NewTicker(connectivityPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-outbound:
			if err := g.send(conn, msg); err != nil {
				return
			}
		case change, ok := <-changes:
			if !ok {
				return
			}
			if err := g.send(conn, wsMessage{Type: "update", Change: &change}); err != nil {
				return
			}
		case <-ticker.C:
			connected := g.sim.Connected()
			if err := g.send(conn, wsMessage{Type: "connectivity", Connected: &connected}); err != nil {
				return
			}
		}
	}
}

// isAdmin 解析连接携带的访问令牌并判定管理员身份
//
// 浏览器 WebSocket 无法自定义请求头，令牌也可经 token 查询参数传入。
// 认证关闭时不做角色检查，与 REST 侧的 AdminOnly 保持一致。
func (g *SpotGateway) isAdmin(r *http.Request) bool {
	if !g.authCfg.Enabled() {
		return true
	}

	token := r.URL.Query().Get("token")
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			token = parts[1]
		}
	}
	if token == "" {
		return false
	}

	claims, err := auth.ParseToken(g.authCfg, token)
	if err != nil || claims.Type != "access" {
		return false
	}
	return claims.Role == string(model.UserRoleAdmin)
}

// readLoop 处理客户端消息：心跳应答 + 编辑/删除动作转发到中继
//
// 非管理员连接的编辑/删除动作直接丢弃，不会进入中继。
func (g *SpotGateway) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, outbound chan<- wsMessage, admin bool) {
	defer cancel()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			g.logger.WithError(err).Debug("Dropping malformed WebSocket message")
			continue
		}
		g.metrics.WSMessagesTotal.WithLabelValues("in", msg.Type).Inc()

		switch msg.Type {
		case "ping":
			select {
			case outbound <- wsMessage{Type: "pong"}:
			case <-ctx.Done():
				return
			}
		case "edit-spot":
			if msg.Spot == nil {
				continue
			}
			if !admin {
				g.logger.WithSpotID(msg.Spot.ID).Warn("Dropping edit-spot from non-admin connection")
				continue
			}
			spot := *msg.Spot
			spot.ClampAvailable()
			if err := spot.Validate(); err != nil {
				g.logger.WithError(err).WithSpotID(spot.ID).Warn("Dropping invalid edit-spot")
				continue
			}
			if err := g.relay.PublishEdit(ctx, spot); err != nil {
				g.logger.WithError(err).WithSpotID(spot.ID).Warn("Failed to publish edit-spot")
			}
		case "delete-spot":
			if msg.SpotID == "" {
				continue
			}
			if !admin {
				g.logger.WithSpotID(msg.SpotID).Warn("Dropping delete-spot from non-admin connection")
				continue
			}
			if err := g.relay.PublishDelete(ctx, msg.SpotID); err != nil {
				g.logger.WithError(err).WithSpotID(msg.SpotID).Warn("Failed to publish delete-spot")
			}
		}
	}
}

// send 序列化并写出一条消息
func (g *SpotGateway) send(conn *websocket.Conn, msg wsMessage) error {
	g.metrics.WSMessagesTotal.WithLabelValues("out", msg.Type).Inc()
	return conn.WriteJSON(msg)
}
