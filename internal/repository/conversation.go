package repository

import (
	"context"
	"time"

	"gnarhub-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// ConversationRepo handles database operations for conversations and messages
type ConversationRepo struct {
	db querier
}

const conversationColumns = `id, session_id, participants, conversation_key, created_at, last_message_at`

// CreateIfAbsent inserts conv unless its key is taken, then returns the key's owner
func (r *ConversationRepo) CreateIfAbsent(ctx context.Context, conv *models.Conversation) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (` + conversationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (conversation_key) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query,
		conv.ID, conv.SessionID, conv.Participants, conv.Key, conv.CreatedAt, conv.LastMessageAt,
	)
	if err != nil {
		return nil, models.NewDependencyError("create conversation", err)
	}
	return r.GetByKey(ctx, conv.Key)
}

// GetByID retrieves a conversation by ID
func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	conv, err := scanConversation(r.db.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "conversation", id, "get conversation")
	}
	return conv, nil
}

// GetByKey retrieves a conversation by its session/participants key
func (r *ConversationRepo) GetByKey(ctx context.Context, key string) (*models.Conversation, error) {
	conv, err := scanConversation(r.db.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE conversation_key = $1`, key))
	if err != nil {
		return nil, notFoundOr(err, "conversation", key, "get conversation by key")
	}
	return conv, nil
}

// ListByParticipant retrieves a user's conversations, most recent activity first
func (r *ConversationRepo) ListByParticipant(ctx context.Context, userID string) ([]*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE $1 = ANY(participants)
		ORDER BY last_message_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, models.NewDependencyError("list conversations", err)
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, models.NewDependencyError("scan conversation", err)
		}
		convs = append(convs, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewDependencyError("list conversations", err)
	}
	return convs, nil
}

// TouchLastMessage bumps a conversation's last activity timestamp
func (r *ConversationRepo) TouchLastMessage(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.Exec(ctx, `UPDATE conversations SET last_message_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return models.NewDependencyError("update conversation", err)
	}
	if result.RowsAffected() == 0 {
		return models.NewNotFoundError("conversation", id)
	}
	return nil
}

// CreateMessage stores a chat message
func (r *ConversationRepo) CreateMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, conversation_id, sender_id, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, msg.ID, msg.ConversationID, msg.SenderID, msg.Text, msg.CreatedAt)
	if err != nil {
		return models.NewDependencyError("create message", err)
	}
	return nil
}

// ListMessages retrieves the latest messages of a conversation, oldest first
func (r *ConversationRepo) ListMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, text, created_at FROM (
			SELECT id, conversation_id, sender_id, text, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) latest
		ORDER BY created_at ASC
	`
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, models.NewDependencyError("list messages", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, models.NewDependencyError("scan message", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewDependencyError("list messages", err)
	}
	return messages, nil
}

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var conv models.Conversation
	err := row.Scan(&conv.ID, &conv.SessionID, &conv.Participants, &conv.Key, &conv.CreatedAt, &conv.LastMessageAt)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}
