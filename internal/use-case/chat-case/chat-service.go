package chat_service

import (
	"context"
	"net/http"

	"github.com/retouchlab/support-chat/internal/dtos/chat_dto"
	"github.com/retouchlab/support-chat/internal/entity"
	app_error "github.com/retouchlab/support-chat/internal/errors"
	chat_repo "github.com/retouchlab/support-chat/internal/repo/chat"
	user_repo "github.com/retouchlab/support-chat/internal/repo/user"
	"github.com/retouchlab/support-chat/state"
	"github.com/rs/zerolog/log"
)

const welcomeBody = "Welcome to Retouchlab support! Tell us about your order and an editor will be right with you."

type ChatService struct {
	AppState *state.AppState
	ChatRepo chat_repo.ChatRepoContract
	UserRepo user_repo.UserRepoContract
}

func NewChatService(appState *state.AppState) ChatServiceContract {
	return &ChatService{
		AppState: appState,
		ChatRepo: chat_repo.NewChatRepo(appState),
		UserRepo: user_repo.NewUserRepo(appState),
	}
}

func (c *ChatService) GetOrCreateConversation(ctx context.Context, userID string) (*chat_dto.ConversationResponse, bool, *app_error.AppError) {
	existing, err := c.ChatRepo.FindActiveConversationByUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		resp := chat_dto.NewConversationResponse(existing)
		return &resp, false, nil
	}

	conv, inserted, err := c.ChatRepo.CreateConversation(ctx, &entity.Conversation{UserID: userID})
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		// lost the create race; the winner's conversation already carries its
		// welcome, so seeding again would double it
		resp := chat_dto.NewConversationResponse(conv)
		return &resp, false, nil
	}

	// first contact opens with a welcome authored by any active admin; no
	// admin pool means the conversation starts empty
	admins, err := c.UserRepo.FindActiveAdmins(ctx)
	if err != nil {
		return nil, false, err
	}

	if len(admins) > 0 {
		greeter := admins[0]
		_, updated, err := c.ChatRepo.AppendMessage(ctx, conv.ID.Hex(), greeter.ID, welcomeBody, true)
		if err != nil {
			return nil, false, err
		}
		conv = updated
		log.Info().Str("conversationID", conv.ID.Hex()).Str("adminID", greeter.ID).Msg("welcome message seeded")
	}

	resp := chat_dto.NewConversationResponse(conv)
	return &resp, true, nil
}

func (c *ChatService) ListMessages(ctx context.Context, convID, callerID string, callerIsAdmin bool) ([]chat_dto.MessageResponse, *app_error.AppError) {
	conv, err := c.ChatRepo.FindConversationByID(ctx, convID)
	if err != nil {
		return nil, err
	}

	// any privileged caller may read regardless of assignment; an end-user
	// only their own conversation
	if !callerIsAdmin && conv.UserID != callerID {
		return nil, app_error.NewAppError(http.StatusForbidden, "not a participant of this conversation", "authorization")
	}

	messages, err := c.ChatRepo.ListMessages(ctx, convID)
	if err != nil {
		return nil, err
	}

	resp := make([]chat_dto.MessageResponse, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, chat_dto.NewMessageResponse(msg))
	}

	return resp, nil
}

func (c *ChatService) ListConversationsForAdmin(ctx context.Context) ([]chat_dto.ConversationResponse, *app_error.AppError) {
	conversations, err := c.ChatRepo.ListActiveConversations(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]chat_dto.ConversationResponse, 0, len(conversations))
	for _, conv := range conversations {
		resp = append(resp, chat_dto.NewConversationResponse(conv))
	}

	return resp, nil
}

func (c *ChatService) AssignAdmin(ctx context.Context, convID, adminID string) (*chat_dto.ConversationResponse, *app_error.AppError) {
	admin, err := c.UserRepo.FindUserByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if !admin.IsAdmin() {
		return nil, app_error.NewAppError(http.StatusBadRequest, "assignee is not an admin", "admin-id")
	}

	if err := c.ChatRepo.AssignAdmin(ctx, convID, adminID); err != nil {
		return nil, err
	}

	conv, err := c.ChatRepo.FindConversationByID(ctx, convID)
	if err != nil {
		return nil, err
	}

	resp := chat_dto.NewConversationResponse(conv)
	return &resp, nil
}

func (c *ChatService) MarkRead(ctx context.Context, convID, callerID string, callerIsAdmin bool) (int64, *app_error.AppError) {
	conv, err := c.ChatRepo.FindConversationByID(ctx, convID)
	if err != nil {
		return 0, err
	}

	if !callerIsAdmin && conv.UserID != callerID {
		return 0, app_error.NewAppError(http.StatusForbidden, "not a participant of this conversation", "authorization")
	}

	return c.ChatRepo.MarkMessagesRead(ctx, convID, callerID, callerIsAdmin)
}
