package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"gnarhub-backend/internal/models"
	"gnarhub-backend/internal/repository"

	"github.com/google/uuid"
)

const defaultMessageLimit = 100

// ConversationService links riders and filmers in per-session chats
type ConversationService struct {
	store repository.Store
}

// NewConversationService creates a new conversation service
func NewConversationService(store repository.Store) *ConversationService {
	return &ConversationService{store: store}
}

// ConversationKey is the identity of a conversation: the session plus the sorted participants
func ConversationKey(sessionID string, participants [2]string) string {
	sorted := []string{participants[0], participants[1]}
	sort.Strings(sorted)
	return sessionID + ":" + strings.Join(sorted, ":")
}

// GetOrCreateConversation returns the conversation for the session and pair of users,
// creating it on first use. Participant order does not matter.
func (s *ConversationService) GetOrCreateConversation(ctx context.Context, sessionID string, participants [2]string) (*models.Conversation, error) {
	if sessionID == "" {
		return nil, models.NewValidationError("session_id", "is required")
	}
	if participants[0] == "" || participants[1] == "" {
		return nil, models.NewValidationError("participants", "must be two user ids")
	}
	if participants[0] == participants[1] {
		return nil, models.NewValidationError("participants", "must be two distinct users")
	}

	sorted := []string{participants[0], participants[1]}
	sort.Strings(sorted)
	now := time.Now().UTC()
	return s.store.Conversations().CreateIfAbsent(ctx, &models.Conversation{
		ID:            uuid.New().String(),
		SessionID:     sessionID,
		Participants:  sorted,
		Key:           ConversationKey(sessionID, participants),
		CreatedAt:     now,
		LastMessageAt: now,
	})
}

// GetConversation retrieves a conversation the actor takes part in
func (s *ConversationService) GetConversation(ctx context.Context, actorID, id string) (*models.Conversation, error) {
	conv, err := s.store.Conversations().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(actorID) {
		return nil, models.NewForbiddenError("not a participant of this conversation")
	}
	return conv, nil
}

// ListConversations returns the user's conversations, most recent activity first
func (s *ConversationService) ListConversations(ctx context.Context, userID string) ([]*models.Conversation, error) {
	return s.store.Conversations().ListByParticipant(ctx, userID)
}

// SendMessage appends a message and bumps the conversation's activity time
func (s *ConversationService) SendMessage(ctx context.Context, senderID, conversationID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, models.NewValidationError("text", "is required")
	}
	if len([]rune(text)) > MessageMax {
		return nil, models.NewValidationError("text", "must be at most %d characters", MessageMax)
	}

	msg := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		conv, err := tx.Conversations().GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		if !conv.HasParticipant(senderID) {
			return models.NewForbiddenError("not a participant of this conversation")
		}
		if err := tx.Conversations().CreateMessage(ctx, msg); err != nil {
			return err
		}
		return tx.Conversations().TouchLastMessage(ctx, conversationID, msg.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns the latest messages of a conversation, oldest first
func (s *ConversationService) ListMessages(ctx context.Context, actorID, conversationID string, limit int) ([]*models.Message, error) {
	if _, err := s.GetConversation(ctx, actorID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > defaultMessageLimit {
		limit = defaultMessageLimit
	}
	return s.store.Conversations().ListMessages(ctx, conversationID, limit)
}
