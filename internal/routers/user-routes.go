package routers

import (
	"github.com/go-chi/chi/v5"
	"github.com/retouchlab/support-chat/internal/handlers"
	user_handler "github.com/retouchlab/support-chat/internal/handlers/user-handler"
	"github.com/retouchlab/support-chat/state"
)

func UserRouter(r chi.Router, state *state.AppState) {
	userHandler := user_handler.NewUserHandler(state)

	r.Post("/api/v1/users", handlers.WrapHandler(userHandler.CreateUser))
	r.Post("/api/v1/users/login", handlers.WrapHandler(userHandler.LoginUser))
}
