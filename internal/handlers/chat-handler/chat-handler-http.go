package chat_handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/retouchlab/support-chat/internal/dtos/chat_dto"
	app_error "github.com/retouchlab/support-chat/internal/errors"
	"github.com/retouchlab/support-chat/internal/handlers"
	"github.com/retouchlab/support-chat/internal/middleware"
	chat_service "github.com/retouchlab/support-chat/internal/use-case/chat-case"
	"github.com/retouchlab/support-chat/state"
)

type ChatHandler struct {
	State    *state.AppState
	Validate *validator.Validate
	Service  chat_service.ChatServiceContract
}

func NewChatHandler(state *state.AppState) *ChatHandler {
	validate := validator.New()
	_ = validate.RegisterValidation("objectid", chat_dto.ObjectIDValidator)
	return &ChatHandler{
		State:    state,
		Validate: validate,
		Service:  chat_service.NewChatService(state),
	}
}

func requestID(r *http.Request) string {
	reqID, ok := r.Context().Value(middleware.RequestIdKey).(string)
	if !ok {
		return "unknown"
	}
	return reqID
}

// GetOrCreateConversation resolves the caller's active support conversation,
// opening a fresh one on first contact.
func (h *ChatHandler) GetOrCreateConversation(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return app_error.NewAppError(http.StatusUnauthorized, "Missing credentials", "auth")
	}

	conv, created, err := h.Service.GetOrCreateConversation(r.Context(), claims.Sub)
	if err != nil {
		return err
	}

	resp := chat_dto.GetOrCreateConversationResponse{
		Conversation: *conv,
		Created:      created,
	}

	w.Header().Set("Content-Type", "application/json")
	if created {
		w.WriteHeader(http.StatusCreated)
	}
	json.NewEncoder(w).Encode(handlers.CreateResponse("conversation resolved", resp, requestID(r)))

	return nil
}

func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return app_error.NewAppError(http.StatusUnauthorized, "Missing credentials", "auth")
	}

	convID := chi.URLParam(r, "conversationId")
	if !chat_dto.IsObjectIDHex(convID) {
		return app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("Invalid conversation id: %s", convID), "conversationId")
	}

	messages, err := h.Service.ListMessages(r.Context(), convID, claims.Sub, claims.Role == "admin")
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(handlers.CreateResponse("messages fetched", messages, requestID(r)))

	return nil
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return app_error.NewAppError(http.StatusUnauthorized, "Missing credentials", "auth")
	}

	convID := chi.URLParam(r, "conversationId")
	if !chat_dto.IsObjectIDHex(convID) {
		return app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("Invalid conversation id: %s", convID), "conversationId")
	}

	unread, err := h.Service.MarkRead(r.Context(), convID, claims.Sub, claims.Role == "admin")
	if err != nil {
		return err
	}

	resp := chat_dto.MarkReadResponse{
		ConversationID: convID,
		UnreadCount:    unread,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(handlers.CreateResponse("messages marked read", resp, requestID(r)))

	return nil
}

// Admin surface

func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	conversations, err := h.Service.ListConversationsForAdmin(r.Context())
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(handlers.CreateResponse("active conversations fetched", conversations, requestID(r)))

	return nil
}

func (h *ChatHandler) AssignAdmin(w http.ResponseWriter, r *http.Request) *app_error.AppError {
	var req chat_dto.AssignAdminRequest
	defer r.Body.Close()

	convID := chi.URLParam(r, "conversationId")
	if !chat_dto.IsObjectIDHex(convID) {
		return app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("Invalid conversation id: %s", convID), "conversationId")
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return app_error.NewAppError(http.StatusBadRequest, "Invalid JSON", "body")
	}

	if err := h.Validate.Struct(req); err != nil {
		return app_error.NewAppError(http.StatusBadRequest, fmt.Sprintf("Invalid fields: %v", err), "validation")
	}

	conv, err := h.Service.AssignAdmin(r.Context(), convID, req.AdminID)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(handlers.CreateResponse("admin assigned", *conv, requestID(r)))

	return nil
}
