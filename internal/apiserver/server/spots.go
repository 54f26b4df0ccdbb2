// Package server 车位 CRUD 接口
package server

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"parking-admin/internal/shared/model"
)

// ListSpots 列出全部车场（插入顺序）
//
// 路由: GET /api/v1/spots
func (h *Handler) ListSpots(w http.ResponseWriter, r *http.Request) {
	spots := h.registry.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"spots":     spots,
		"connected": h.sim.Connected(),
	})
}

// GetSpot 获取车场详情
//
// 路由: GET /api/v1/spots/{id}
func (h *Handler) GetSpot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	spot := h.registry.Get(id)
	if spot == nil {
		writeError(w, http.StatusNotFound, "spot not found")
		return
	}
	writeJSON(w, http.StatusOK, spot)
}

// CreateSpot 创建车场（管理员）
//
// 路由: POST /api/v1/spots
// 客户端可自带标识符；缺省时由服务端分配 UUID。
func (h *Handler) CreateSpot(w http.ResponseWriter, r *http.Request) {
	var spot model.ParkingSpot
	if err := json.NewDecoder(r.Body).Decode(&spot); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if spot.ID == "" {
		spot.ID = uuid.NewString()
	}
	if err := spot.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.registry.Get(spot.ID) != nil {
		writeError(w, http.StatusConflict, "spot id already exists")
		return
	}

	h.registry.Upsert(spot)
	h.metrics.SpotMutationsTotal.WithLabelValues("create").Inc()
	h.metrics.SpotsTotal.Set(float64(h.registry.Len()))

	// 新建同样广播到中继，跨实例订阅者才能看到新车场
	if err := h.relay.PublishEdit(r.Context(), spot); err != nil {
		h.logger.WithError(err).WithSpotID(spot.ID).Warn("Failed to publish edit-spot")
	}

	h.logger.WithSpotID(spot.ID).Info("Spot created", "name", spot.Name)
	writeJSON(w, http.StatusCreated, spot)
}

// UpdateSpot 整条替换车场（管理员）
//
// 路由: PUT /api/v1/spots/{id}
// Upsert 语义：存在则原位替换，不存在则追加。
func (h *Handler) UpdateSpot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var spot model.ParkingSpot
	if err := json.NewDecoder(r.Body).Decode(&spot); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	spot.ID = id
	if err := spot.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.registry.Upsert(spot)
	h.metrics.SpotMutationsTotal.WithLabelValues("update").Inc()

	// 同步写入注册表后再广播到中继，跨实例订阅者由此看到变更；
	// 本实例的中继消费者会重放同值 Upsert，幂等
	if err := h.relay.PublishEdit(r.Context(), spot); err != nil {
		h.logger.WithError(err).WithSpotID(id).Warn("Failed to publish edit-spot")
	}

	h.logger.WithSpotID(id).Info("Spot updated")
	writeJSON(w, http.StatusOK, spot)
}

// DeleteSpot 删除车场（管理员）
//
// 路由: DELETE /api/v1/spots/{id}
// 与注册表语义一致：不存在时也是成功的空操作。
func (h *Handler) DeleteSpot(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	h.registry.Remove(id)
	h.metrics.SpotMutationsTotal.WithLabelValues("delete").Inc()
	h.metrics.SpotsTotal.Set(float64(h.registry.Len()))

	if err := h.relay.PublishDelete(r.Context(), id); err != nil {
		h.logger.WithError(err).WithSpotID(id).Warn("Failed to publish delete-spot")
	}

	h.logger.WithSpotID(id).Info("Spot deleted")
	writeJSON(w, http.StatusOK, map[string]string{"message": "spot deleted"})
}
