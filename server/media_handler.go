package server

import (
	"context"
	"encoding/json"
	"net/http"

	"mediabridge/core/media"
	"mediabridge/logger"
	"mediabridge/model"

	"github.com/gorilla/websocket"
)

// MediaService HTTP 层使用的媒体桥接接口
type MediaService interface {
	Poll(ctx context.Context) ([]model.PlaybackSnapshot, error)
	SendAction(playerID string, action media.Action, positionMs *uint64) error
	Subscribe() (<-chan struct{}, func())
}

// SnapshotStore 与其他进程共享轮询结果和变更事件
type SnapshotStore interface {
	SaveSnapshots(ctx context.Context, snapshots []model.PlaybackSnapshot) error
	PublishUpdated(ctx context.Context) error
}

// ActionRequest 播放控制请求
type ActionRequest struct {
	PlayerID string  `json:"player_id"`
	Action   string  `json:"action"`
	Position *uint64 `json:"position,omitempty"`
}

// MediaHandler 媒体会话 API
type MediaHandler struct {
	service  MediaService
	store    SnapshotStore
	hub      *Hub
	upgrader websocket.Upgrader
}

// NewMediaHandler 创建处理器，store 可以为 nil
func NewMediaHandler(service MediaService, store SnapshotStore, hub *Hub) *MediaHandler {
	return &MediaHandler{
		service: service,
		store:   store,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 小组件可能来自任意本地 origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// GetMediaHandler 轮询一次所有会话
func (h *MediaHandler) GetMediaHandler(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.service.Poll(r.Context())
	if err != nil {
		logger.Error("media poll failed", logger.ErrorField(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	if h.store != nil {
		if err := h.store.SaveSnapshots(r.Context(), snapshots); err != nil {
			logger.Debug("failed to cache snapshots", logger.ErrorField(err))
		}
	}

	writeJSON(w, http.StatusOK, snapshots)
}

// ActionHandler 发送播放控制指令，指令在后台执行，总是返回成功
func (h *MediaHandler) ActionHandler(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.SendAction(req.PlayerID, media.Action(req.Action), req.Position); err != nil {
		logger.Warn("media action rejected",
			logger.String("playerId", req.PlayerID), logger.ErrorField(err))
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// WebSocketHandler 推送 media_updated 事件
func (h *MediaHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade WebSocket", logger.ErrorField(err))
		return
	}

	client := NewClient(h.hub, conn)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// HealthHandler 健康检查
func (h *MediaHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"clients": h.hub.ClientCount(),
	})
}

// Forward 将媒体变更信号转发给 WebSocket 客户端，直到 ctx 结束
// 配置了 store 时，每次变更先轮询并保存快照，再发布事件
func (h *MediaHandler) Forward(ctx context.Context) {
	changes, cancel := h.service.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := h.hub.Broadcast(&WSMessage{Type: MsgTypeMediaUpdated}); err != nil {
				logger.Warn("failed to broadcast media update", logger.ErrorField(err))
			}
			if h.store != nil {
				h.share(ctx)
			}
		}
	}
}

func (h *MediaHandler) share(ctx context.Context) {
	snapshots, err := h.service.Poll(ctx)
	if err != nil {
		logger.Warn("media poll for shared snapshots failed", logger.ErrorField(err))
		return
	}
	if err := h.store.SaveSnapshots(ctx, snapshots); err != nil {
		logger.Debug("failed to cache snapshots", logger.ErrorField(err))
		return
	}
	if err := h.store.PublishUpdated(ctx); err != nil {
		logger.Debug("failed to publish media update", logger.ErrorField(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}
