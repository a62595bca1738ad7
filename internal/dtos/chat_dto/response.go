package chat_dto

import (
	"time"

	"github.com/retouchlab/support-chat/internal/entity"
)

type ConversationResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	AdminID       string    `json:"admin_id,omitempty"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `json:"last_message_at"`
	UserUnread    int64     `json:"user_unread"`
	AdminUnread   int64     `json:"admin_unread"`
	CreatedAt     time.Time `json:"created_at"`
}

type GetOrCreateConversationResponse struct {
	Conversation ConversationResponse `json:"conversation"`
	Created      bool                 `json:"created"`
}

type MessageResponse struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	FromAdmin      bool       `json:"from_admin"`
	Body           string     `json:"body"`
	SentAt         time.Time  `json:"sent_at"`
	IsRead         bool       `json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

type MarkReadResponse struct {
	ConversationID string `json:"conversation_id"`
	UnreadCount    int64  `json:"unread_count"`
}

func NewConversationResponse(conv *entity.Conversation) ConversationResponse {
	return ConversationResponse{
		ID:            conv.ID.Hex(),
		UserID:        conv.UserID,
		AdminID:       conv.AdminID,
		LastMessage:   conv.LastMessage,
		LastMessageAt: conv.LastMessageAt,
		UserUnread:    conv.UserUnread,
		AdminUnread:   conv.AdminUnread,
		CreatedAt:     conv.CreatedAt,
	}
}

func NewMessageResponse(msg *entity.Message) MessageResponse {
	return MessageResponse{
		ID:             msg.ID.Hex(),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		FromAdmin:      msg.FromAdmin,
		Body:           msg.Body,
		SentAt:         msg.SentAt,
		IsRead:         msg.IsRead,
		ReadAt:         msg.ReadAt,
	}
}
