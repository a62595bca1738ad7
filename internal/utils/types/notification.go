package types

import "time"

// MessageNotificationPayload is the job body for the best-effort email side
// channel. Recipients are resolved at send time (query-time fan-out over the
// admin pool when no admin is assigned yet).
type MessageNotificationPayload struct {
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	SenderName     string    `json:"sender_name"`
	Preview        string    `json:"preview"`
	Recipients     []string  `json:"recipients"`
	SentAt         time.Time `json:"sent_at"`
}
