package routers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/retouchlab/support-chat/internal/middleware"
	"github.com/retouchlab/support-chat/internal/websocket"
	"github.com/retouchlab/support-chat/internal/worker"
	"github.com/retouchlab/support-chat/state"
)

func NewRouter(state *state.AppState, hub *websocket.Hub, wsHandler *websocket.WebSocketHandler, pool *worker.WorkerPool) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.WithRequestId)
	r.Use(middleware.GetDeviceFingerprint)
	UserRouter(r, state)
	ChatRouter(r, state)
	HubRouter(r, state, hub, wsHandler, pool)
	return r
}
