package hub_handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	app_error "github.com/retouchlab/support-chat/internal/errors"
	"github.com/retouchlab/support-chat/internal/handlers"
	"github.com/retouchlab/support-chat/internal/middleware"
	"github.com/retouchlab/support-chat/internal/websocket"
	"github.com/retouchlab/support-chat/internal/worker"
)

type HubHandler struct {
	Hub  *websocket.Hub
	Pool *worker.WorkerPool
}

func NewHubHandler(hub *websocket.Hub, pool *worker.WorkerPool) *HubHandler {
	return &HubHandler{
		Hub:  hub,
		Pool: pool,
	}
}

func (h *HubHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "support-chat",
	})
}

func (h *HubHandler) HandleGetStats(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	stats := h.Hub.GetHubStats()
	reqID, ok := r.Context().Value(middleware.RequestIdKey).(string)
	if !ok {
		reqID = "unknown"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(handlers.CreateResponse("get websocket stats", stats, reqID))
	return nil
}

func (h *HubHandler) HandleGetRoomStats(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	roomID := chi.URLParam(r, "roomId")
	stats := h.Hub.GetRoomStats(roomID)
	reqID, ok := r.Context().Value(middleware.RequestIdKey).(string)
	if !ok {
		reqID = "unknown"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(handlers.CreateResponse("get websocket room stats", stats, reqID))

	return nil
}

func (h *HubHandler) HandleGetRoomClients(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	roomID := chi.URLParam(r, "roomId")

	type clientInfo struct {
		ClientID string `json:"client_id"`
		UserID   string `json:"user_id"`
		IsAdmin  bool   `json:"is_admin"`
	}

	clients := h.Hub.GetRoomClients(roomID)
	infos := make([]clientInfo, 0, len(clients))
	for _, c := range clients {
		infos = append(infos, clientInfo{ClientID: c.ID, UserID: c.UserID, IsAdmin: c.IsAdmin})
	}

	reqID, ok := r.Context().Value(middleware.RequestIdKey).(string)
	if !ok {
		reqID = "unknown"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(handlers.CreateResponse("get room clients", infos, reqID))

	return nil
}

// HandleGetUserStatus reports whether a user currently holds any live
// sessions; `?room=<id>` narrows the check to one room.
func (h *HubHandler) HandleGetUserStatus(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	userID := chi.URLParam(r, "userId")

	clients := h.Hub.GetUserClients(userID)
	status := map[string]any{
		"user_id":     userID,
		"online":      len(clients) > 0,
		"connections": len(clients),
	}
	if room := r.URL.Query().Get("room"); room != "" {
		status["in_room"] = h.Hub.IsUserOnlineInRoom(room, userID)
	}

	reqID, ok := r.Context().Value(middleware.RequestIdKey).(string)
	if !ok {
		reqID = "unknown"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(handlers.CreateResponse("get user presence", status, reqID))

	return nil
}

func (h *HubHandler) HandleGetDLQStats(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	stats, err := h.Pool.GetDLQStats(r.Context())
	if err != nil {
		return app_error.NewAppError(http.StatusInternalServerError, err.Error(), "dlq")
	}

	reqID, ok := r.Context().Value(middleware.RequestIdKey).(string)
	if !ok {
		reqID = "unknown"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(handlers.CreateResponse("get notification DLQ stats", stats, reqID))

	return nil
}
