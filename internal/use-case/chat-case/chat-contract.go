package chat_service

import (
	"context"

	"github.com/retouchlab/support-chat/internal/dtos/chat_dto"
	app_error "github.com/retouchlab/support-chat/internal/errors"
)

type ChatServiceContract interface {
	// GetOrCreateConversation returns the caller's single active conversation,
	// creating it (with a welcome message when an admin pool exists) on first
	// contact. The bool reports whether this call created it.
	GetOrCreateConversation(ctx context.Context, userID string) (*chat_dto.ConversationResponse, bool, *app_error.AppError)
	ListMessages(ctx context.Context, convID, callerID string, callerIsAdmin bool) ([]chat_dto.MessageResponse, *app_error.AppError)
	ListConversationsForAdmin(ctx context.Context) ([]chat_dto.ConversationResponse, *app_error.AppError)
	AssignAdmin(ctx context.Context, convID, adminID string) (*chat_dto.ConversationResponse, *app_error.AppError)
	MarkRead(ctx context.Context, convID, callerID string, callerIsAdmin bool) (int64, *app_error.AppError)
}
