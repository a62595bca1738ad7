package user_service

import (
	"context"

	"github.com/retouchlab/support-chat/internal/dtos/user_dto"
	app_error "github.com/retouchlab/support-chat/internal/errors"
)

type UserServiceContract interface {
	Register(ctx context.Context, req user_dto.CreateUserRequest) (*user_dto.UserResponse, *app_error.AppError)
	Login(ctx context.Context, req user_dto.LoginRequest, fingerprint string) (*user_dto.UserResponse, *app_error.AppError)
}
