package chat_repo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/retouchlab/support-chat/config"
	"github.com/retouchlab/support-chat/internal/entity"
	app_error "github.com/retouchlab/support-chat/internal/errors"
	"github.com/retouchlab/support-chat/state"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

type ChatRepo struct {
	AppState *state.AppState
}

func NewChatRepo(appState *state.AppState) ChatRepoContract {
	return &ChatRepo{
		AppState: appState,
	}
}

func (r *ChatRepo) database() *mongo.Database {
	return r.AppState.Mongo.Database(config.Conf.DATABASE.Mongo.Database)
}

func (r *ChatRepo) conversations() *mongo.Collection {
	return r.database().Collection(conversationsCollection)
}

func (r *ChatRepo) messages() *mongo.Collection {
	return r.database().Collection(messagesCollection)
}

// EnsureIndexes installs the partial unique index that closes the
// get-or-create race (one active conversation per user) and the message
// listing index.
func (r *ChatRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.conversations().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"is_active": true}),
	})
	if err != nil {
		return fmt.Errorf("failed to create conversation index: %w", err)
	}

	_, err = r.messages().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "sent_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message index: %w", err)
	}

	return nil
}

func (r *ChatRepo) FindActiveConversationByUser(ctx context.Context, userID string) (*entity.Conversation, *app_error.AppError) {
	var conv entity.Conversation
	err := r.conversations().FindOne(ctx, bson.M{"user_id": userID, "is_active": true}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to fetch conversation: %v", err), "mongo")
	}
	return &conv, nil
}

func (r *ChatRepo) FindConversationByID(ctx context.Context, convID string) (*entity.Conversation, *app_error.AppError) {
	objID, err := bson.ObjectIDFromHex(convID)
	if err != nil {
		return nil, app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("invalid conversation ID: %v", err), "invalid-id")
	}

	var conv entity.Conversation
	if err := r.conversations().FindOne(ctx, bson.M{"_id": objID, "is_active": true}).Decode(&conv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, app_error.NewAppError(http.StatusNotFound, "conversation not found", "not-found")
		}
		return nil, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to fetch conversation: %v", err), "mongo")
	}

	return &conv, nil
}

func (r *ChatRepo) CreateConversation(ctx context.Context, conv *entity.Conversation) (*entity.Conversation, bool, *app_error.AppError) {
	if conv.ID.IsZero() {
		conv.ID = bson.NewObjectID()
	}
	conv.IsActive = true
	conv.CreatedAt = time.Now().UTC()

	_, err := r.conversations().InsertOne(ctx, conv)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// another session won the create; use theirs, and report that
			// nothing was inserted so the winner's conversation is not
			// re-seeded
			log.Warn().Str("userID", conv.UserID).Msg("conversation create raced, re-fetching winner")
			existing, appErr := r.FindActiveConversationByUser(ctx, conv.UserID)
			if appErr != nil {
				return nil, false, appErr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to create conversation: %v", err), "mongo")
	}

	return conv, true, nil
}

func (r *ChatRepo) ListActiveConversations(ctx context.Context) ([]*entity.Conversation, *app_error.AppError) {
	cur, err := r.conversations().Find(ctx,
		bson.M{"is_active": true},
		options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}}))
	if err != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to fetch conversations: %v", err), "mongo")
	}
	defer cur.Close(ctx)

	var conversations []*entity.Conversation
	if err := cur.All(ctx, &conversations); err != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to decode conversations: %v", err), "mongo")
	}

	return conversations, nil
}

func (r *ChatRepo) AssignAdmin(ctx context.Context, convID, adminID string) *app_error.AppError {
	objID, err := bson.ObjectIDFromHex(convID)
	if err != nil {
		return app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("invalid conversation ID: %v", err), "invalid-id")
	}

	result, err := r.conversations().UpdateOne(ctx,
		bson.M{"_id": objID, "is_active": true},
		bson.M{"$set": bson.M{"admin_id": adminID}})
	if err != nil {
		return app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to assign admin: %v", err), "mongo")
	}
	if result.MatchedCount == 0 {
		return app_error.NewAppError(http.StatusNotFound, "conversation not found", "not-found")
	}

	return nil
}

func (r *ChatRepo) ListMessages(ctx context.Context, convID string) ([]*entity.Message, *app_error.AppError) {
	cur, err := r.messages().Find(ctx,
		bson.M{"conversation_id": convID},
		options.Find().SetSort(bson.D{{Key: "sent_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to fetch messages: %v", err), "mongo")
	}
	defer cur.Close(ctx)

	var messages []*entity.Message
	if err := cur.All(ctx, &messages); err != nil {
		return nil, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to decode messages: %v", err), "mongo")
	}

	return messages, nil
}

func (r *ChatRepo) AppendMessage(ctx context.Context, convID, senderID, body string, fromAdmin bool) (*entity.Message, *entity.Conversation, *app_error.AppError) {
	objID, err := bson.ObjectIDFromHex(convID)
	if err != nil {
		return nil, nil, app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("invalid conversation ID: %v", err), "invalid-id")
	}

	// cheap existence gate; the authoritative check is the FindOneAndUpdate
	// filter below
	if err := r.conversations().FindOne(ctx,
		bson.M{"_id": objID, "is_active": true},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, app_error.NewAppError(http.StatusNotFound, "conversation not found", "not-found")
		}
		return nil, nil, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to fetch conversation: %v", err), "mongo")
	}

	msg := &entity.Message{
		ID:             bson.NewObjectID(),
		ConversationID: convID,
		SenderID:       senderID,
		FromAdmin:      fromAdmin,
		Body:           body,
		SentAt:         time.Now().UTC(),
		IsRead:         false,
	}

	// durability point: nothing is broadcast unless this insert succeeds
	if _, err := r.messages().InsertOne(ctx, msg); err != nil {
		return nil, nil, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to create message: %v", err), "mongo")
	}

	recipientCounter := "user_unread"
	if !fromAdmin {
		recipientCounter = "admin_unread"
	}

	// single atomic update: $inc the recipient counter, refresh the summary
	update := bson.M{
		"$set": bson.M{
			"last_message":    msg.Body,
			"last_message_at": msg.SentAt,
		},
		"$inc": bson.M{recipientCounter: 1},
	}

	var conv entity.Conversation
	err = r.conversations().FindOneAndUpdate(ctx,
		bson.M{"_id": objID, "is_active": true},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&conv)
	if err != nil {
		// the conversation vanished (or was closed) between the insert and
		// the counter update: take the orphan message back out so the error
		// branch leaves no partial state
		if _, delErr := r.messages().DeleteOne(ctx, bson.M{"_id": msg.ID}); delErr != nil {
			log.Error().Err(delErr).Str("messageID", msg.ID.Hex()).Msg("failed to remove orphan message")
		}
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil, app_error.NewAppError(http.StatusNotFound, "conversation not found", "not-found")
		}
		return nil, nil, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to update conversation metadata: %v", err), "mongo")
	}

	return msg, &conv, nil
}

func (r *ChatRepo) MarkMessagesRead(ctx context.Context, convID, readerID string, readerIsAdmin bool) (int64, *app_error.AppError) {
	objID, err := bson.ObjectIDFromHex(convID)
	if err != nil {
		return 0, app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("invalid conversation ID: %v", err), "invalid-id")
	}

	now := time.Now().UTC()
	filter := bson.M{
		"conversation_id": convID,
		"from_admin":      !readerIsAdmin, // messages authored by the other party
		"is_read":         false,
	}

	if _, err := r.messages().UpdateMany(ctx, filter,
		bson.M{"$set": bson.M{"is_read": true, "read_at": now}}); err != nil {
		return 0, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to mark messages read: %v", err), "mongo")
	}

	// full recount rather than a blind zero, so counter drift from missed
	// updates cannot survive a mark-read
	remaining, err := r.messages().CountDocuments(ctx, filter)
	if err != nil {
		return 0, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to recount unread messages: %v", err), "mongo")
	}

	readerCounter := "user_unread"
	if readerIsAdmin {
		readerCounter = "admin_unread"
	}

	if _, err := r.conversations().UpdateOne(ctx,
		bson.M{"_id": objID},
		bson.M{"$set": bson.M{readerCounter: remaining}}); err != nil {
		return 0, app_error.NewAppError(http.StatusInternalServerError, fmt.Sprintf("failed to store unread recount: %v", err), "mongo")
	}

	return remaining, nil
}
