package handlers

import (
	"net/http"

	"gnarhub-backend/internal/middleware"
	"gnarhub-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// ConversationHandler handles conversations and their messages
type ConversationHandler struct {
	conversationService *services.ConversationService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversationService *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversationService: conversationService}
}

// SendMessageRequest is the body of POST /conversations/{conversation_id}/messages
type SendMessageRequest struct {
	Text string `json:"text"`
}

// ListConversations handles GET /api/v1/conversations
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.conversationService.ListConversations(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convs)
}

// GetConversation handles GET /api/v1/conversations/{conversation_id}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := h.conversationService.GetConversation(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "conversation_id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

// ListMessages handles GET /api/v1/conversations/{conversation_id}/messages
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	msgs, err := h.conversationService.ListMessages(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "conversation_id"), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}

// SendMessage handles POST /api/v1/conversations/{conversation_id}/messages
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var body SendMessageRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	msg, err := h.conversationService.SendMessage(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "conversation_id"), body.Text)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}
