package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Message is immutable once persisted except for the monotonic
// unread -> read transition (IsRead/ReadAt). SentAt is assigned by the
// server at persistence time so insertion order is the authoritative order.
type Message struct {
	ID             bson.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID string        `bson:"conversation_id" json:"conversation_id"`
	SenderID       string        `bson:"sender_id" json:"sender_id"`
	FromAdmin      bool          `bson:"from_admin" json:"from_admin"`
	Body           string        `bson:"body" json:"body"`
	SentAt         time.Time     `bson:"sent_at" json:"sent_at"`
	IsRead         bool          `bson:"is_read" json:"is_read"`
	ReadAt         *time.Time    `bson:"read_at,omitempty" json:"read_at,omitempty"`
}
