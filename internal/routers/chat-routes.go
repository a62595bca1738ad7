package routers

import (
	"github.com/go-chi/chi/v5"
	"github.com/retouchlab/support-chat/internal/handlers"
	chat_handler "github.com/retouchlab/support-chat/internal/handlers/chat-handler"
	"github.com/retouchlab/support-chat/internal/middleware"
	"github.com/retouchlab/support-chat/state"
)

func ChatRouter(r chi.Router, state *state.AppState) {
	chatHandler := chat_handler.NewChatHandler(state)

	r.Group(func(protected chi.Router) {
		protected.Use(middleware.JWTAuth(state.JwtSecret.Public, state.Redis))
		protected.Get("/api/v1/chat/conversation", handlers.WrapHandler(chatHandler.GetOrCreateConversation))
		protected.Get("/api/v1/chat/conversations/{conversationId}/messages", handlers.WrapHandler(chatHandler.GetMessages))
		protected.Post("/api/v1/chat/conversations/{conversationId}/read", handlers.WrapHandler(chatHandler.MarkRead))
	})

	r.Group(func(admin chi.Router) {
		admin.Use(middleware.JWTAuth(state.JwtSecret.Public, state.Redis))
		admin.Use(middleware.RequireAdmin)
		admin.Get("/api/v1/admin/chat/conversations", handlers.WrapHandler(chatHandler.ListConversations))
		admin.Post("/api/v1/admin/chat/conversations/{conversationId}/assign", handlers.WrapHandler(chatHandler.AssignAdmin))
	})
}
