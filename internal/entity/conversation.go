package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Conversation is the unit of contention in the chat store: one active
// conversation per end-user, serviced by the shared admin pool. Conversations
// are soft-closed via IsActive, never deleted.
type Conversation struct {
	ID            bson.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        string        `bson:"user_id" json:"user_id"`
	AdminID       string        `bson:"admin_id,omitempty" json:"admin_id,omitempty"`
	IsActive      bool          `bson:"is_active" json:"is_active"`
	LastMessage   string        `bson:"last_message" json:"last_message"`
	LastMessageAt time.Time     `bson:"last_message_at" json:"last_message_at"`
	UserUnread    int64         `bson:"user_unread" json:"user_unread"`
	AdminUnread   int64         `bson:"admin_unread" json:"admin_unread"`
	CreatedAt     time.Time     `bson:"created_at" json:"created_at"`
}

// UnreadFor returns the counter for the reader's side: messages sent by the
// opposing party that this side has not acknowledged yet.
func (c *Conversation) UnreadFor(isAdmin bool) int64 {
	if isAdmin {
		return c.AdminUnread
	}
	return c.UserUnread
}
