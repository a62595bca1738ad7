package websocket

import (
	"encoding/json"

	"github.com/retouchlab/support-chat/internal/dtos/chat_dto"
)

// Inbound event types (client -> gateway).
const (
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventSendMessage       = "send_message"
	EventTyping            = "typing"
	EventAckRead           = "ack_read"
)

// Outbound event types (gateway -> clients).
const (
	EventNewMessage              = "new_message"
	EventNewConversationActivity = "new_conversation_activity"
	EventUnreadCountChanged      = "unread_count_changed"
	EventUserTyping              = "user_typing"
	EventError                   = "error"
)

// Well-known rooms. Conversation rooms are keyed by the conversation's hex id.
const AdminRoom = "admins"

func PersonalRoom(userID string) string {
	return "user:" + userID
}

type IncomingEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	Body           string `json:"body,omitempty"`
	IsTyping       bool   `json:"is_typing,omitempty"`
}

type OutgoingEvent struct {
	Event          string                    `json:"event"`
	ConversationID string                    `json:"conversation_id,omitempty"`
	Message        *chat_dto.MessageResponse `json:"message,omitempty"`
	SenderID       string                    `json:"sender_id,omitempty"`
	UserID         string                    `json:"user_id,omitempty"`
	IsTyping       bool                      `json:"is_typing,omitempty"`
	Role           string                    `json:"role,omitempty"`
	// Count is always emitted on unread_count_changed; zero is meaningful
	// there (it is how a mark-read propagates).
	Count          int64                     `json:"count"`
	ErrorMessage   string                    `json:"error_message,omitempty"`
	Timestamp      int64                     `json:"timestamp"`
}

func (e OutgoingEvent) encode() ([]byte, error) {
	return json.Marshal(e)
}
