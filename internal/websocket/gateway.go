package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/retouchlab/support-chat/internal/dtos/chat_dto"
	"github.com/retouchlab/support-chat/internal/entity"
	"github.com/retouchlab/support-chat/internal/queue"
	chat_repo "github.com/retouchlab/support-chat/internal/repo/chat"
	user_repo "github.com/retouchlab/support-chat/internal/repo/user"
	"github.com/retouchlab/support-chat/internal/utils/types"
	"github.com/rs/zerolog/log"
)

// Gateway is the only path by which messages and unread counters change
// after conversation creation. It keeps the chat store and every connected
// observer in agreement: persist first, then fan out, with per-conversation
// serialization so broadcast order always equals persist order.
type Gateway struct {
	Hub      *Hub
	ChatRepo chat_repo.ChatRepoContract
	UserRepo user_repo.UserRepoContract
	Producer queue.Producer

	locksMu   sync.Mutex
	convLocks map[string]*convLock
}

type convLock struct {
	mu   sync.Mutex
	refs int
}

func NewGateway(hub *Hub, chatRepo chat_repo.ChatRepoContract, userRepo user_repo.UserRepoContract, producer queue.Producer) *Gateway {
	return &Gateway{
		Hub:       hub,
		ChatRepo:  chatRepo,
		UserRepo:  userRepo,
		Producer:  producer,
		convLocks: make(map[string]*convLock),
	}
}

func (g *Gateway) lockConversation(convID string) *convLock {
	g.locksMu.Lock()
	l, ok := g.convLocks[convID]
	if !ok {
		l = &convLock{}
		g.convLocks[convID] = l
	}
	l.refs++
	g.locksMu.Unlock()

	l.mu.Lock()
	return l
}

func (g *Gateway) unlockConversation(convID string, l *convLock) {
	l.mu.Unlock()

	g.locksMu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(g.convLocks, convID)
	}
	g.locksMu.Unlock()
}

// Dispatch routes one inbound event from a session. Room joins are
// deliberately coarse: any valid session may join any conversation room;
// real access control is enforced at the REST read/write surface.
func (g *Gateway) Dispatch(ctx context.Context, c *Client, event IncomingEvent) {
	switch event.Type {
	case EventJoinConversation:
		if event.ConversationID == "" {
			g.sendError(c, "conversation_id is required")
			return
		}
		g.Hub.Join(event.ConversationID, c)

	case EventLeaveConversation:
		if event.ConversationID == "" {
			g.sendError(c, "conversation_id is required")
			return
		}
		g.Hub.Leave(event.ConversationID, c)

	case EventSendMessage:
		g.handleSendMessage(ctx, c, event.ConversationID, event.Body)

	case EventTyping:
		g.handleTyping(c, event.ConversationID, event.IsTyping)

	case EventAckRead:
		g.handleAckRead(ctx, c, event.ConversationID)

	default:
		g.sendError(c, "unknown event type: "+event.Type)
	}
}

func (g *Gateway) handleSendMessage(ctx context.Context, c *Client, convID, body string) {
	if convID == "" || body == "" {
		g.sendError(c, "conversation_id and body are required")
		return
	}

	// serialize sends per conversation: broadcast order must equal persist
	// order, so the fan-out below completes before the next send proceeds
	l := g.lockConversation(convID)
	defer g.unlockConversation(convID, l)

	msg, conv, appErr := g.ChatRepo.AppendMessage(ctx, convID, c.UserID, body, c.IsAdmin)
	if appErr != nil {
		// the originating session alone observes the failure; nothing was
		// persisted so nothing is broadcast
		log.Error().Str("conversationID", convID).Str("senderID", c.UserID).Str("error", appErr.Message).Msg("ws: send failed at persistence")
		g.sendError(c, appErr.Message)
		return
	}

	// best-effort email side channel; never blocks or fails the send path
	go g.dispatchNotification(conv, msg, c.Username)

	msgResp := chat_dto.NewMessageResponse(msg)

	g.Hub.BroadcastToRoom(convID, OutgoingEvent{
		Event:          EventNewMessage,
		ConversationID: convID,
		Message:        &msgResp,
	})

	if !c.IsAdmin {
		// admins not joined to this conversation still need the update for
		// their list views
		g.Hub.BroadcastToRoom(AdminRoom, OutgoingEvent{
			Event:          EventNewConversationActivity,
			ConversationID: convID,
			Message:        &msgResp,
			SenderID:       c.UserID,
		})
		g.Hub.BroadcastToRoom(AdminRoom, OutgoingEvent{
			Event:          EventUnreadCountChanged,
			ConversationID: convID,
			Role:           entity.RoleAdmin,
			Count:          conv.AdminUnread,
		})
	} else {
		g.Hub.BroadcastToRoom(PersonalRoom(conv.UserID), OutgoingEvent{
			Event:          EventUnreadCountChanged,
			ConversationID: convID,
			Role:           entity.RoleUser,
			Count:          conv.UserUnread,
		})
	}
}

// handleTyping relays the advisory typing signal to everyone else in the
// room. No persistence, no delivery guarantee.
func (g *Gateway) handleTyping(c *Client, convID string, isTyping bool) {
	if convID == "" {
		return
	}

	g.Hub.BroadcastToRoomExcept(convID, OutgoingEvent{
		Event:          EventUserTyping,
		ConversationID: convID,
		UserID:         c.UserID,
		IsTyping:       isTyping,
	}, c)
}

// handleAckRead pushes the freshly-recomputed counters to observers that
// did not perform the mark-read themselves (other admin sessions, other
// tabs). The caller already knows its own count from the REST response.
func (g *Gateway) handleAckRead(ctx context.Context, c *Client, convID string) {
	if convID == "" {
		g.sendError(c, "conversation_id is required")
		return
	}

	conv, appErr := g.ChatRepo.FindConversationByID(ctx, convID)
	if appErr != nil {
		g.sendError(c, appErr.Message)
		return
	}

	g.Hub.BroadcastToRoom(AdminRoom, OutgoingEvent{
		Event:          EventUnreadCountChanged,
		ConversationID: convID,
		Role:           entity.RoleAdmin,
		Count:          conv.AdminUnread,
	})
	g.Hub.BroadcastToRoom(PersonalRoom(conv.UserID), OutgoingEvent{
		Event:          EventUnreadCountChanged,
		ConversationID: convID,
		Role:           entity.RoleUser,
		Count:          conv.UserUnread,
	})
}

// dispatchNotification resolves recipients at send time (assigned admin,
// else the whole active admin pool, or the user participant for admin
// senders) and enqueues the email job. Every failure is logged and
// swallowed.
func (g *Gateway) dispatchNotification(conv *entity.Conversation, msg *entity.Message, senderName string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var recipients []string

	if msg.FromAdmin {
		user, appErr := g.UserRepo.FindUserByID(ctx, conv.UserID)
		if appErr != nil {
			log.Error().Str("userID", conv.UserID).Str("error", appErr.Message).Msg("notify: failed to resolve user participant")
			return
		}
		recipients = []string{user.Email}
	} else if conv.AdminID != "" {
		admin, appErr := g.UserRepo.FindUserByID(ctx, conv.AdminID)
		if appErr != nil {
			log.Error().Str("adminID", conv.AdminID).Str("error", appErr.Message).Msg("notify: failed to resolve assigned admin")
			return
		}
		recipients = []string{admin.Email}
	} else {
		admins, appErr := g.UserRepo.FindActiveAdmins(ctx)
		if appErr != nil {
			log.Error().Str("error", appErr.Message).Msg("notify: failed to resolve admin pool")
			return
		}
		for _, admin := range admins {
			recipients = append(recipients, admin.Email)
		}
	}

	if len(recipients) == 0 {
		return
	}

	payload := types.MessageNotificationPayload{
		ConversationID: conv.ID.Hex(),
		MessageID:      msg.ID.Hex(),
		SenderName:     senderName,
		Preview:        msg.Body,
		Recipients:     recipients,
		SentAt:         msg.SentAt,
	}

	job := queue.Job{
		ID:        uuid.New().String(),
		Type:      queue.JobTypeMessageNotification,
		Payload:   queue.MustMarshal(payload),
		Priority:  2,
		Retry:     0,
		MaxRetry:  3,
		CreatedAt: time.Now().Unix(),
		ExpireAt:  time.Now().Add(5 * time.Minute).Unix(),
	}

	if err := g.Producer.Enqueue(ctx, job); err != nil {
		log.Error().Err(err).Str("conversationID", conv.ID.Hex()).Msg("notify: failed to enqueue notification job")
		return
	}

	log.Info().Str("job_id", job.ID).Str("message_id", msg.ID.Hex()).Int("recipients", len(recipients)).Msg("notification job enqueued")
}

func (g *Gateway) sendError(c *Client, message string) {
	g.Hub.SendToClient(c, OutgoingEvent{
		Event:        EventError,
		ErrorMessage: message,
	})
}
