package chat_repo

import (
	"context"

	"github.com/retouchlab/support-chat/internal/entity"
	app_error "github.com/retouchlab/support-chat/internal/errors"
)

// ChatRepoContract is the chat store: conversations with their unread
// counters and the append-only message log. Counter updates are store-level
// atomic operations, never read-modify-write in application code.
type ChatRepoContract interface {
	EnsureIndexes(ctx context.Context) error

	// FindActiveConversationByUser returns (nil, nil) when the user has no
	// active conversation yet.
	FindActiveConversationByUser(ctx context.Context, userID string) (*entity.Conversation, *app_error.AppError)
	FindConversationByID(ctx context.Context, convID string) (*entity.Conversation, *app_error.AppError)

	// CreateConversation resolves the get-or-create race via the partial
	// unique index on (user_id, is_active): a duplicate-key insert re-fetches
	// the winner instead of erroring. The bool reports whether this call
	// actually inserted; a raced re-fetch returns false so the caller does
	// not treat the winner's conversation as fresh.
	CreateConversation(ctx context.Context, conv *entity.Conversation) (*entity.Conversation, bool, *app_error.AppError)
	ListActiveConversations(ctx context.Context) ([]*entity.Conversation, *app_error.AppError)
	AssignAdmin(ctx context.Context, convID, adminID string) *app_error.AppError

	ListMessages(ctx context.Context, convID string) ([]*entity.Message, *app_error.AppError)

	// AppendMessage persists the message (server-assigned sent_at), then in a
	// single atomic update bumps the recipient side's counter and refreshes
	// the last-message summary. Returns the persisted message and the
	// conversation as it stands after the update.
	AppendMessage(ctx context.Context, convID, senderID, body string, fromAdmin bool) (*entity.Message, *entity.Conversation, *app_error.AppError)

	// MarkMessagesRead flips every unread message from the opposing party to
	// read, then stores the exact recount for the reader's side. Returns the
	// remaining unread count (zero unless a concurrent send slipped in).
	MarkMessagesRead(ctx context.Context, convID, readerID string, readerIsAdmin bool) (int64, *app_error.AppError)
}
