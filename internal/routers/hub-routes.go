package routers

import (
	"github.com/go-chi/chi/v5"
	"github.com/retouchlab/support-chat/internal/handlers"
	hub_handler "github.com/retouchlab/support-chat/internal/handlers/hub-handler"
	"github.com/retouchlab/support-chat/internal/middleware"
	"github.com/retouchlab/support-chat/internal/websocket"
	"github.com/retouchlab/support-chat/internal/worker"
	"github.com/retouchlab/support-chat/state"
)

func HubRouter(r chi.Router, state *state.AppState, hub *websocket.Hub, wsHandler *websocket.WebSocketHandler, pool *worker.WorkerPool) {
	hubHandler := hub_handler.NewHubHandler(hub, pool)

	// realtime endpoint; JWT is checked during the handshake itself
	r.Get("/ws", wsHandler.ServeWS)

	r.Route("/api/v1", func(r chi.Router) {
		// Health stats
		r.Get("/health", hubHandler.HandleHealth)

		// Ops surface, admin only
		r.Group(func(admin chi.Router) {
			admin.Use(middleware.JWTAuth(state.JwtSecret.Public, state.Redis))
			admin.Use(middleware.RequireAdmin)
			admin.Get("/stats", handlers.WrapHandler(hubHandler.HandleGetStats))
			admin.Get("/rooms/{roomId}/stats", handlers.WrapHandler(hubHandler.HandleGetRoomStats))
			admin.Get("/rooms/{roomId}/clients", handlers.WrapHandler(hubHandler.HandleGetRoomClients))
			admin.Get("/users/{userId}/status", handlers.WrapHandler(hubHandler.HandleGetUserStatus))
			admin.Get("/notifications/dlq/stats", handlers.WrapHandler(hubHandler.HandleGetDLQStats))
		})
	})
}
