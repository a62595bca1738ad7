package user_service

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/retouchlab/support-chat/internal/dtos/user_dto"
	"github.com/retouchlab/support-chat/internal/entity"
	app_error "github.com/retouchlab/support-chat/internal/errors"
	user_repo "github.com/retouchlab/support-chat/internal/repo/user"
	"github.com/retouchlab/support-chat/internal/utils"
	"github.com/retouchlab/support-chat/internal/utils/types"
	"github.com/retouchlab/support-chat/state"
)

const sessionTTL = 24 * time.Hour

type UserService struct {
	AppState *state.AppState
	UserRepo user_repo.UserRepoContract
}

func NewUserService(appState *state.AppState) UserServiceContract {
	return &UserService{
		AppState: appState,
		UserRepo: user_repo.NewUserRepo(appState),
	}
}

func (u *UserService) Register(ctx context.Context, req user_dto.CreateUserRequest) (*user_dto.UserResponse, *app_error.AppError) {
	filter := &entity.UserFilter{
		Email:    &req.Email,
		Username: &req.Username,
	}
	count, err := u.UserRepo.CountUser(ctx, *filter)
	if err != nil {
		return nil, err
	}

	if count > 0 {
		return nil, app_error.NewAppError(http.StatusConflict, "username or email already registered", "credential-registered")
	}

	hashed, hashErr := utils.GenerateHash(req.Password)
	if hashErr != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, hashErr.Error(), "password")
	}

	user := &entity.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hashed,
		Role:         entity.RoleUser,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	err = u.UserRepo.SaveUser(ctx, *user)
	if err != nil {
		return nil, err
	}

	return &user_dto.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}, nil
}

func (u *UserService) Login(ctx context.Context, req user_dto.LoginRequest, fingerprint string) (*user_dto.UserResponse, *app_error.AppError) {
	user, err := u.UserRepo.FindUserByCredential(ctx, req.Username)
	if err != nil {
		if err.Code == http.StatusNotFound {
			return nil, app_error.NewAppError(http.StatusUnauthorized, "invalid username or password", "credential")
		}
		return nil, err
	}

	ok, verifyErr := utils.VerifyHash(user.PasswordHash, req.Password)
	if verifyErr != nil || !ok {
		return nil, app_error.NewAppError(http.StatusUnauthorized, "invalid username or password", "credential")
	}

	if !user.IsActive {
		return nil, app_error.NewAppError(http.StatusUnauthorized, "account is deactivated", "credential")
	}

	token, signErr := utils.IssueToken(user.ID, user.Username, user.Role, u.AppState.JwtSecret.Private)
	if signErr != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, "failed to issue token", "token")
	}

	issueAt := time.Now().Unix()
	session := types.Session{
		UserId:      user.ID,
		Fingerprint: fingerprint,
		Role:        user.Role,
		IssueAt:     issueAt,
		ExpireAt:    issueAt + int64(sessionTTL.Seconds()),
		Status:      "valid",
	}

	sessionKey := fmt.Sprintf("session:%s:%s", user.ID, fingerprint)
	if err := utils.SetCacheData(ctx, u.AppState.Redis, sessionKey, &session, sessionTTL); err != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, "failed to persist session", "redis")
	}

	return &user_dto.UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Role:      user.Role,
		Token:     &token,
		CreatedAt: user.CreatedAt,
	}, nil
}
