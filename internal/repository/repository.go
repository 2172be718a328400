package repository

import (
	"context"
	"time"

	"gnarhub-backend/internal/models"
)

// Store is the persistence handle injected into the services.
// Everything read or written through the tx passed to RunInTx commits together or not at all.
type Store interface {
	Users() UserRepository
	Sessions() SessionRepository
	Requests() RequestRepository
	Conversations() ConversationRepository
	Reviews() ReviewRepository

	// RunInTx executes fn in a transaction. Calls made on an existing tx reuse it.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// UserRepository handles persistence for users
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetForUpdate(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

// SessionFilter selects sessions. Zero values are ignored.
// TerrainTags is applied after the indexed query (any-intersection).
type SessionFilter struct {
	Status      models.SessionStatus
	FilmerID    string
	MountainID  string
	DateFrom    string
	DateTo      string
	TerrainTags []models.TerrainTag
	Limit       int
}

// SessionRepository handles persistence for sessions
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	GetForUpdate(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error
	// List returns sessions ordered by date then start time
	List(ctx context.Context, filter SessionFilter) ([]*models.Session, error)
}

// RequestFilter selects session requests. Zero values are ignored.
type RequestFilter struct {
	SessionID string
	RiderID   string
	FilmerID  string
	Statuses  []models.RequestStatus
	Limit     int
}

// RequestRepository handles persistence for session requests
type RequestRepository interface {
	Create(ctx context.Context, request *models.SessionRequest) error
	GetByID(ctx context.Context, id string) (*models.SessionRequest, error)
	GetForUpdate(ctx context.Context, id string) (*models.SessionRequest, error)
	Update(ctx context.Context, request *models.SessionRequest) error
	// List returns requests newest first
	List(ctx context.Context, filter RequestFilter) ([]*models.SessionRequest, error)
	ExistsForSession(ctx context.Context, sessionID string) (bool, error)
}

// ConversationRepository handles persistence for conversations and their messages
type ConversationRepository interface {
	// CreateIfAbsent inserts conv unless a conversation with the same key exists,
	// and returns whichever conversation owns the key afterwards.
	CreateIfAbsent(ctx context.Context, conv *models.Conversation) (*models.Conversation, error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	GetByKey(ctx context.Context, key string) (*models.Conversation, error)
	// ListByParticipant returns conversations newest activity first
	ListByParticipant(ctx context.Context, userID string) ([]*models.Conversation, error)
	TouchLastMessage(ctx context.Context, id string, at time.Time) error
	CreateMessage(ctx context.Context, msg *models.Message) error
	// ListMessages returns messages oldest first
	ListMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error)
}

// ReviewRepository handles persistence for reviews
type ReviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	GetByID(ctx context.Context, id string) (*models.Review, error)
	Delete(ctx context.Context, id string) error
	// ListByFilmer returns reviews newest first
	ListByFilmer(ctx context.Context, filmerID string) ([]*models.Review, error)
	ExistsForSessionRider(ctx context.Context, sessionID, riderID string) (bool, error)
}
