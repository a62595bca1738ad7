package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/retouchlab/support-chat/internal/entity"
	app_error "github.com/retouchlab/support-chat/internal/errors"
	"github.com/retouchlab/support-chat/internal/queue"
	"github.com/retouchlab/support-chat/internal/utils/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type stubChatRepo struct {
	mu            sync.Mutex
	conversations map[string]*entity.Conversation
	messages      map[string][]*entity.Message

	failAppend bool
}

func newStubChatRepo() *stubChatRepo {
	return &stubChatRepo{
		conversations: make(map[string]*entity.Conversation),
		messages:      make(map[string][]*entity.Message),
	}
}

func (s *stubChatRepo) addConversation(userID, adminID string) *entity.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := &entity.Conversation{
		ID:       bson.NewObjectID(),
		UserID:   userID,
		AdminID:  adminID,
		IsActive: true,
	}
	s.conversations[conv.ID.Hex()] = conv
	return conv
}

func (s *stubChatRepo) EnsureIndexes(ctx context.Context) error { return nil }

func (s *stubChatRepo) FindActiveConversationByUser(ctx context.Context, userID string) (*entity.Conversation, *app_error.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conv := range s.conversations {
		if conv.UserID == userID && conv.IsActive {
			copied := *conv
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *stubChatRepo) FindConversationByID(ctx context.Context, convID string) (*entity.Conversation, *app_error.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[convID]
	if !ok {
		return nil, app_error.NewAppError(http.StatusNotFound, "conversation not found", "conversationId")
	}
	copied := *conv
	return &copied, nil
}

func (s *stubChatRepo) CreateConversation(ctx context.Context, conv *entity.Conversation) (*entity.Conversation, bool, *app_error.AppError) {
	return nil, false, app_error.NewAppError(http.StatusNotImplemented, "not used", "")
}

func (s *stubChatRepo) ListActiveConversations(ctx context.Context) ([]*entity.Conversation, *app_error.AppError) {
	return nil, nil
}

func (s *stubChatRepo) AssignAdmin(ctx context.Context, convID, adminID string) *app_error.AppError {
	return nil
}

func (s *stubChatRepo) ListMessages(ctx context.Context, convID string) ([]*entity.Message, *app_error.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*entity.Message(nil), s.messages[convID]...), nil
}

func (s *stubChatRepo) AppendMessage(ctx context.Context, convID, senderID, body string, fromAdmin bool) (*entity.Message, *entity.Conversation, *app_error.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAppend {
		return nil, nil, app_error.NewAppError(http.StatusInternalServerError, "storage unavailable", "mongo")
	}

	conv, ok := s.conversations[convID]
	if !ok {
		return nil, nil, app_error.NewAppError(http.StatusNotFound, "conversation not found", "conversationId")
	}

	msg := &entity.Message{
		ID:             bson.NewObjectID(),
		ConversationID: convID,
		SenderID:       senderID,
		FromAdmin:      fromAdmin,
		Body:           body,
		SentAt:         time.Now(),
	}
	s.messages[convID] = append(s.messages[convID], msg)

	conv.LastMessage = body
	conv.LastMessageAt = msg.SentAt
	if fromAdmin {
		conv.UserUnread++
	} else {
		conv.AdminUnread++
	}

	msgCopy := *msg
	convCopy := *conv
	return &msgCopy, &convCopy, nil
}

func (s *stubChatRepo) MarkMessagesRead(ctx context.Context, convID, readerID string, readerIsAdmin bool) (int64, *app_error.AppError) {
	return 0, nil
}

type stubUserRepo struct {
	users map[string]*entity.User
}

func newStubUserRepo(users ...*entity.User) *stubUserRepo {
	repo := &stubUserRepo{users: make(map[string]*entity.User)}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (s *stubUserRepo) CountUser(ctx context.Context, filter entity.UserFilter) (int64, *app_error.AppError) {
	return 0, nil
}

func (s *stubUserRepo) SaveUser(ctx context.Context, model entity.User) *app_error.AppError {
	return nil
}

func (s *stubUserRepo) FindUserByID(ctx context.Context, userId string) (*entity.User, *app_error.AppError) {
	user, ok := s.users[userId]
	if !ok {
		return nil, app_error.NewAppError(http.StatusNotFound, "user not found", "userId")
	}
	return user, nil
}

func (s *stubUserRepo) FindUserByCredential(ctx context.Context, username string) (*entity.User, *app_error.AppError) {
	return nil, app_error.NewAppError(http.StatusNotFound, "user not found", "username")
}

func (s *stubUserRepo) FindActiveAdmins(ctx context.Context) ([]*entity.User, *app_error.AppError) {
	var admins []*entity.User
	for _, user := range s.users {
		if user.Role == entity.RoleAdmin && user.IsActive {
			admins = append(admins, user)
		}
	}
	return admins, nil
}

// capturingProducer records enqueued jobs on a channel so the async
// notification dispatch can be observed.
type capturingProducer struct {
	jobs chan queue.Job
}

func newCapturingProducer() *capturingProducer {
	return &capturingProducer{jobs: make(chan queue.Job, 16)}
}

func (p *capturingProducer) Enqueue(ctx context.Context, job queue.Job) error {
	p.jobs <- job
	return nil
}

func (p *capturingProducer) waitForJob(t *testing.T) queue.Job {
	t.Helper()
	select {
	case job := <-p.jobs:
		return job
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification job")
		return queue.Job{}
	}
}

func payloadUnmarshal(raw json.RawMessage, v any) error {
	return json.Unmarshal(raw, v)
}

func testAdmin(id string) *entity.User {
	return &entity.User{ID: id, Username: "admin-" + id, Email: id + "@retouchlab.test", Role: entity.RoleAdmin, IsActive: true}
}

func testUser(id string) *entity.User {
	return &entity.User{ID: id, Username: "user-" + id, Email: id + "@retouchlab.test", Role: entity.RoleUser, IsActive: true}
}

func TestGateway_SendMessagePersistsThenBroadcasts(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	chatRepo := newStubChatRepo()
	userRepo := newStubUserRepo(testAdmin("a1"), testUser("u1"))
	producer := newCapturingProducer()
	gateway := NewGateway(hub, chatRepo, userRepo, producer)

	conv := chatRepo.addConversation("u1", "")
	convID := conv.ID.Hex()

	sender := newTestClient(hub, "u1", false)
	hub.Join(convID, sender)

	gateway.Dispatch(context.Background(), sender, IncomingEvent{
		Type:           EventSendMessage,
		ConversationID: convID,
		Body:           "the skin tone looks wrong",
	})

	event := receiveEvent(t, sender)
	assert.Equal(t, EventNewMessage, event.Event)
	require.NotNil(t, event.Message)
	assert.Equal(t, "the skin tone looks wrong", event.Message.Body)
	assert.Equal(t, "u1", event.Message.SenderID)
	assert.False(t, event.Message.FromAdmin)
	assert.NotEmpty(t, event.Message.ID, "broadcast carries the persisted message id")

	messages, err := chatRepo.ListMessages(context.Background(), convID)
	require.Nil(t, err)
	require.Len(t, messages, 1, "message was persisted before broadcast")
}

func TestGateway_BroadcastOrderMatchesPersistOrder(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	chatRepo := newStubChatRepo()
	userRepo := newStubUserRepo(testAdmin("a1"))
	gateway := NewGateway(hub, chatRepo, userRepo, newCapturingProducer())

	conv := chatRepo.addConversation("u1", "")
	convID := conv.ID.Hex()

	sender := newTestClient(hub, "u1", false)
	observer := newTestClient(hub, "u9", true)
	hub.Join(convID, sender)
	hub.Join(convID, observer)

	gateway.Dispatch(context.Background(), sender, IncomingEvent{Type: EventSendMessage, ConversationID: convID, Body: "first"})
	gateway.Dispatch(context.Background(), sender, IncomingEvent{Type: EventSendMessage, ConversationID: convID, Body: "second"})

	first := receiveEvent(t, observer)
	second := receiveEvent(t, observer)
	require.NotNil(t, first.Message)
	require.NotNil(t, second.Message)
	assert.Equal(t, "first", first.Message.Body)
	assert.Equal(t, "second", second.Message.Body)

	messages, err := chatRepo.ListMessages(context.Background(), convID)
	require.Nil(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Body)
	assert.Equal(t, "second", messages[1].Body)
}

func TestGateway_FailedSendErrorsSenderOnly(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	chatRepo := newStubChatRepo()
	chatRepo.failAppend = true
	gateway := NewGateway(hub, chatRepo, newStubUserRepo(), newCapturingProducer())

	conv := chatRepo.addConversation("u1", "")
	convID := conv.ID.Hex()

	sender := newTestClient(hub, "u1", false)
	other := newTestClient(hub, "u2", true)
	admin := newTestClient(hub, "a1", true)
	hub.Join(convID, sender)
	hub.Join(convID, other)
	hub.Join(AdminRoom, admin)

	gateway.Dispatch(context.Background(), sender, IncomingEvent{Type: EventSendMessage, ConversationID: convID, Body: "lost"})

	event := receiveEvent(t, sender)
	assert.Equal(t, EventError, event.Event)
	assert.Equal(t, "storage unavailable", event.ErrorMessage)

	// nothing was persisted, so nobody else hears anything
	assertNoEvent(t, other)
	assertNoEvent(t, admin)

	messages, err := chatRepo.ListMessages(context.Background(), convID)
	require.Nil(t, err)
	assert.Empty(t, messages)
}

func TestGateway_SendToUnknownConversationLeavesNoMessage(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	chatRepo := newStubChatRepo()
	gateway := NewGateway(hub, chatRepo, newStubUserRepo(), newCapturingProducer())

	// well-formed ID, but no conversation behind it
	ghostID := bson.NewObjectID().Hex()

	sender := newTestClient(hub, "u1", false)
	admin := newTestClient(hub, "a1", true)
	hub.Join(ghostID, sender)
	hub.Join(AdminRoom, admin)

	gateway.Dispatch(context.Background(), sender, IncomingEvent{Type: EventSendMessage, ConversationID: ghostID, Body: "into the void"})

	event := receiveEvent(t, sender)
	assert.Equal(t, EventError, event.Event)
	assert.Equal(t, "conversation not found", event.ErrorMessage)

	assertNoEvent(t, admin)

	messages, err := chatRepo.ListMessages(context.Background(), ghostID)
	require.Nil(t, err)
	assert.Empty(t, messages, "nothing may be stored for a conversation that does not exist")
}

func TestGateway_UserSendNotifiesAdminRoom(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	chatRepo := newStubChatRepo()
	userRepo := newStubUserRepo(testAdmin("a1"))
	gateway := NewGateway(hub, chatRepo, userRepo, newCapturingProducer())

	conv := chatRepo.addConversation("u1", "")
	convID := conv.ID.Hex()

	sender := newTestClient(hub, "u1", false)
	admin := newTestClient(hub, "a1", true)
	hub.Join(convID, sender)
	hub.Join(AdminRoom, admin)

	gateway.Dispatch(context.Background(), sender, IncomingEvent{Type: EventSendMessage, ConversationID: convID, Body: "help"})

	activity := receiveEvent(t, admin)
	assert.Equal(t, EventNewConversationActivity, activity.Event)
	assert.Equal(t, convID, activity.ConversationID)
	assert.Equal(t, "u1", activity.SenderID)

	unread := receiveEvent(t, admin)
	assert.Equal(t, EventUnreadCountChanged, unread.Event)
	assert.Equal(t, entity.RoleAdmin, unread.Role)
	assert.Equal(t, int64(1), unread.Count)
}

func TestGateway_AdminSendPushesUserUnread(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	chatRepo := newStubChatRepo()
	userRepo := newStubUserRepo(testAdmin("a1"), testUser("u1"))
	producer := newCapturingProducer()
	gateway := NewGateway(hub, chatRepo, userRepo, producer)

	conv := chatRepo.addConversation("u1", "a1")
	convID := conv.ID.Hex()

	adminSender := newTestClient(hub, "a1", true)
	userTab := newTestClient(hub, "u1", false)
	hub.Join(convID, adminSender)
	hub.Join(PersonalRoom("u1"), userTab)

	gateway.Dispatch(context.Background(), adminSender, IncomingEvent{Type: EventSendMessage, ConversationID: convID, Body: "your edit is ready"})

	unread := receiveEvent(t, userTab)
	assert.Equal(t, EventUnreadCountChanged, unread.Event)
	assert.Equal(t, entity.RoleUser, unread.Role)
	assert.Equal(t, int64(1), unread.Count)

	// the email side channel targets the user participant
	job := producer.waitForJob(t)
	assert.Equal(t, queue.JobTypeMessageNotification, job.Type)

	var payload types.MessageNotificationPayload
	require.NoError(t, payloadUnmarshal(job.Payload, &payload))
	assert.Equal(t, []string{"u1@retouchlab.test"}, payload.Recipients)
	assert.Equal(t, "your edit is ready", payload.Preview)
}

func TestGateway_NotificationTargetsAssignedAdmin(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	chatRepo := newStubChatRepo()
	userRepo := newStubUserRepo(testAdmin("a1"), testAdmin("a2"), testUser("u1"))
	producer := newCapturingProducer()
	gateway := NewGateway(hub, chatRepo, userRepo, producer)

	conv := chatRepo.addConversation("u1", "a2")
	convID := conv.ID.Hex()

	sender := newTestClient(hub, "u1", false)
	hub.Join(convID, sender)

	gateway.Dispatch(context.Background(), sender, IncomingEvent{Type: EventSendMessage, ConversationID: convID, Body: "ping"})

	job := producer.waitForJob(t)
	var payload types.MessageNotificationPayload
	require.NoError(t, payloadUnmarshal(job.Payload, &payload))
	assert.Equal(t, []string{"a2@retouchlab.test"}, payload.Recipients, "assigned admin alone is notified")
}

func TestGateway_NotificationFansOutToAdminPoolWhenUnassigned(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	chatRepo := newStubChatRepo()
	userRepo := newStubUserRepo(testAdmin("a1"), testAdmin("a2"), testUser("u1"))
	producer := newCapturingProducer()
	gateway := NewGateway(hub, chatRepo, userRepo, producer)

	conv := chatRepo.addConversation("u1", "")
	convID := conv.ID.Hex()

	sender := newTestClient(hub, "u1", false)
	hub.Join(convID, sender)

	gateway.Dispatch(context.Background(), sender, IncomingEvent{Type: EventSendMessage, ConversationID: convID, Body: "anyone there?"})

	job := producer.waitForJob(t)
	var payload types.MessageNotificationPayload
	require.NoError(t, payloadUnmarshal(job.Payload, &payload))
	assert.ElementsMatch(t, []string{"a1@retouchlab.test", "a2@retouchlab.test"}, payload.Recipients)
}

func TestGateway_ConcurrentSendsAllCounted(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	chatRepo := newStubChatRepo()
	gateway := NewGateway(hub, chatRepo, newStubUserRepo(testAdmin("a1")), newCapturingProducer())

	conv := chatRepo.addConversation("u1", "")
	convID := conv.ID.Hex()

	tabA := newTestClient(hub, "u1", false)
	tabB := newTestClient(hub, "u1", false)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		gateway.Dispatch(context.Background(), tabA, IncomingEvent{Type: EventSendMessage, ConversationID: convID, Body: "from tab A"})
	}()
	go func() {
		defer wg.Done()
		gateway.Dispatch(context.Background(), tabB, IncomingEvent{Type: EventSendMessage, ConversationID: convID, Body: "from tab B"})
	}()
	wg.Wait()

	current, err := chatRepo.FindConversationByID(context.Background(), convID)
	require.Nil(t, err)
	assert.Equal(t, int64(2), current.AdminUnread, "both concurrent sends must be counted")

	messages, err := chatRepo.ListMessages(context.Background(), convID)
	require.Nil(t, err)
	assert.Len(t, messages, 2)
}

func TestGateway_AckReadPushesBothCounters(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	chatRepo := newStubChatRepo()
	gateway := NewGateway(hub, chatRepo, newStubUserRepo(), newCapturingProducer())

	conv := chatRepo.addConversation("u1", "")
	conv.UserUnread = 0
	conv.AdminUnread = 3
	convID := conv.ID.Hex()

	reader := newTestClient(hub, "a1", true)
	otherAdmin := newTestClient(hub, "a2", true)
	userTab := newTestClient(hub, "u1", false)
	hub.Join(AdminRoom, otherAdmin)
	hub.Join(PersonalRoom("u1"), userTab)

	gateway.Dispatch(context.Background(), reader, IncomingEvent{Type: EventAckRead, ConversationID: convID})

	adminEvent := receiveEvent(t, otherAdmin)
	assert.Equal(t, EventUnreadCountChanged, adminEvent.Event)
	assert.Equal(t, entity.RoleAdmin, adminEvent.Role)
	assert.Equal(t, int64(3), adminEvent.Count)

	userEvent := receiveEvent(t, userTab)
	assert.Equal(t, EventUnreadCountChanged, userEvent.Event)
	assert.Equal(t, entity.RoleUser, userEvent.Role)
	assert.Equal(t, int64(0), userEvent.Count)
}

func TestGateway_TypingRelayedToOthersOnly(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	chatRepo := newStubChatRepo()
	gateway := NewGateway(hub, chatRepo, newStubUserRepo(), newCapturingProducer())

	conv := chatRepo.addConversation("u1", "")
	convID := conv.ID.Hex()

	typist := newTestClient(hub, "u1", false)
	watcher := newTestClient(hub, "a1", true)
	hub.Join(convID, typist)
	hub.Join(convID, watcher)

	gateway.Dispatch(context.Background(), typist, IncomingEvent{Type: EventTyping, ConversationID: convID, IsTyping: true})

	event := receiveEvent(t, watcher)
	assert.Equal(t, EventUserTyping, event.Event)
	assert.Equal(t, "u1", event.UserID)
	assert.True(t, event.IsTyping)

	assertNoEvent(t, typist)
}

func TestGateway_UserAdminExchange(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	chatRepo := newStubChatRepo()
	userRepo := newStubUserRepo(testAdmin("a1"), testUser("u1"))
	gateway := NewGateway(hub, chatRepo, userRepo, newCapturingProducer())

	conv := chatRepo.addConversation("u1", "a1")
	convID := conv.ID.Hex()

	user := newTestClient(hub, "u1", false)
	admin := newTestClient(hub, "a1", true)
	hub.Join(convID, user)
	hub.Join(convID, admin)
	hub.Join(AdminRoom, admin)
	hub.Join(PersonalRoom("u1"), user)

	gateway.Dispatch(context.Background(), user, IncomingEvent{Type: EventSendMessage, ConversationID: convID, Body: "the background is too dark"})
	gateway.Dispatch(context.Background(), admin, IncomingEvent{Type: EventSendMessage, ConversationID: convID, Body: "brightened it, take a look"})

	// both participants observe both messages in send order
	for _, c := range []*Client{user, admin} {
		var bodies []string
		for {
			event := receiveEvent(t, c)
			if event.Event != EventNewMessage {
				continue
			}
			bodies = append(bodies, event.Message.Body)
			if len(bodies) == 2 {
				break
			}
		}
		assert.Equal(t, []string{"the background is too dark", "brightened it, take a look"}, bodies)
	}

	current, err := chatRepo.FindConversationByID(context.Background(), convID)
	require.Nil(t, err)
	assert.Equal(t, int64(1), current.AdminUnread)
	assert.Equal(t, int64(1), current.UserUnread)
	assert.Equal(t, "brightened it, take a look", current.LastMessage)
}

func TestGateway_UnknownEventErrorsSender(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	gateway := NewGateway(hub, newStubChatRepo(), newStubUserRepo(), newCapturingProducer())
	client := newTestClient(hub, "u1", false)

	gateway.Dispatch(context.Background(), client, IncomingEvent{Type: "bogus"})

	event := receiveEvent(t, client)
	assert.Equal(t, EventError, event.Event)
	assert.Contains(t, event.ErrorMessage, "unknown event type")
}
