// Package memory provides an in-process implementation of repository.Store.
// A single mutex serializes transactions, so RunInTx gives the same all-or-nothing
// guarantee as the Postgres store. It backs local development and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"gnarhub-backend/internal/models"
	"gnarhub-backend/internal/repository"
)

type state struct {
	users         map[string]*models.User
	sessions      map[string]*models.Session
	requests      map[string]*models.SessionRequest
	conversations map[string]*models.Conversation
	convByKey     map[string]string
	messages      map[string][]*models.Message
	reviews       map[string]*models.Review
}

func newState() *state {
	return &state{
		users:         make(map[string]*models.User),
		sessions:      make(map[string]*models.Session),
		requests:      make(map[string]*models.SessionRequest),
		conversations: make(map[string]*models.Conversation),
		convByKey:     make(map[string]string),
		messages:      make(map[string][]*models.Message),
		reviews:       make(map[string]*models.Review),
	}
}

func (st *state) snapshot() *state {
	c := newState()
	for k, v := range st.users {
		c.users[k] = cloneUser(v)
	}
	for k, v := range st.sessions {
		c.sessions[k] = v.Clone()
	}
	for k, v := range st.requests {
		c.requests[k] = v.Clone()
	}
	for k, v := range st.conversations {
		c.conversations[k] = cloneConversation(v)
	}
	for k, v := range st.convByKey {
		c.convByKey[k] = v
	}
	for k, msgs := range st.messages {
		cp := make([]*models.Message, len(msgs))
		for i, m := range msgs {
			mc := *m
			cp[i] = &mc
		}
		c.messages[k] = cp
	}
	for k, v := range st.reviews {
		rc := *v
		c.reviews[k] = &rc
	}
	return c
}

// Store is an in-memory repository.Store
type Store struct {
	mu   *sync.Mutex
	data *state
	tx   bool
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{mu: &sync.Mutex{}, data: newState()}
}

// lock takes the store mutex unless the caller already holds it through RunInTx
func (s *Store) lock() func() {
	if s.tx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Users() repository.UserRepository { return &userRepo{s} }

func (s *Store) Sessions() repository.SessionRepository { return &sessionRepo{s} }

func (s *Store) Requests() repository.RequestRepository { return &requestRepo{s} }

func (s *Store) Conversations() repository.ConversationRepository { return &conversationRepo{s} }

func (s *Store) Reviews() repository.ReviewRepository { return &reviewRepo{s} }

// RunInTx runs fn while holding the store mutex. When fn fails every write it made is discarded.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if s.tx {
		return fn(ctx, s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	saved := s.data.snapshot()
	txStore := &Store{mu: s.mu, data: s.data, tx: true}
	if err := fn(ctx, txStore); err != nil {
		*s.data = *saved
		return err
	}
	return nil
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user *models.User) error {
	defer r.s.lock()()
	if _, ok := r.s.data.users[user.ID]; ok {
		return models.NewConflictError("user already exists")
	}
	r.s.data.users[user.ID] = cloneUser(user)
	return nil
}

func (r *userRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	defer r.s.lock()()
	u, ok := r.s.data.users[id]
	if !ok {
		return nil, models.NewNotFoundError("user", id)
	}
	return cloneUser(u), nil
}

func (r *userRepo) GetForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r *userRepo) Update(_ context.Context, user *models.User) error {
	defer r.s.lock()()
	if _, ok := r.s.data.users[user.ID]; !ok {
		return models.NewNotFoundError("user", user.ID)
	}
	r.s.data.users[user.ID] = cloneUser(user)
	return nil
}

type sessionRepo struct{ s *Store }

func (r *sessionRepo) Create(_ context.Context, session *models.Session) error {
	defer r.s.lock()()
	if _, ok := r.s.data.sessions[session.ID]; ok {
		return models.NewConflictError("session already exists")
	}
	r.s.data.sessions[session.ID] = session.Clone()
	return nil
}

func (r *sessionRepo) GetByID(_ context.Context, id string) (*models.Session, error) {
	defer r.s.lock()()
	sess, ok := r.s.data.sessions[id]
	if !ok {
		return nil, models.NewNotFoundError("session", id)
	}
	return sess.Clone(), nil
}

func (r *sessionRepo) GetForUpdate(ctx context.Context, id string) (*models.Session, error) {
	return r.GetByID(ctx, id)
}

func (r *sessionRepo) Update(_ context.Context, session *models.Session) error {
	defer r.s.lock()()
	if _, ok := r.s.data.sessions[session.ID]; !ok {
		return models.NewNotFoundError("session", session.ID)
	}
	r.s.data.sessions[session.ID] = session.Clone()
	return nil
}

func (r *sessionRepo) Delete(_ context.Context, id string) error {
	defer r.s.lock()()
	if _, ok := r.s.data.sessions[id]; !ok {
		return models.NewNotFoundError("session", id)
	}
	delete(r.s.data.sessions, id)
	return nil
}

func (r *sessionRepo) List(_ context.Context, filter repository.SessionFilter) ([]*models.Session, error) {
	defer r.s.lock()()
	var out []*models.Session
	for _, sess := range r.s.data.sessions {
		if filter.Status != "" && sess.Status != filter.Status {
			continue
		}
		if filter.FilmerID != "" && sess.FilmerID != filter.FilmerID {
			continue
		}
		if filter.MountainID != "" && sess.MountainID != filter.MountainID {
			continue
		}
		if filter.DateFrom != "" && sess.Date < filter.DateFrom {
			continue
		}
		if filter.DateTo != "" && sess.Date > filter.DateTo {
			continue
		}
		if len(filter.TerrainTags) > 0 && !models.IntersectsAny(sess.TerrainTags, filter.TerrainTags) {
			continue
		}
		out = append(out, sess.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.StartTime != b.StartTime {
			return a.StartTime < b.StartTime
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type requestRepo struct{ s *Store }

func (r *requestRepo) Create(_ context.Context, req *models.SessionRequest) error {
	defer r.s.lock()()
	if _, ok := r.s.data.requests[req.ID]; ok {
		return models.NewConflictError("session request already exists")
	}
	r.s.data.requests[req.ID] = req.Clone()
	return nil
}

func (r *requestRepo) GetByID(_ context.Context, id string) (*models.SessionRequest, error) {
	defer r.s.lock()()
	req, ok := r.s.data.requests[id]
	if !ok {
		return nil, models.NewNotFoundError("session request", id)
	}
	return req.Clone(), nil
}

func (r *requestRepo) GetForUpdate(ctx context.Context, id string) (*models.SessionRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *requestRepo) Update(_ context.Context, req *models.SessionRequest) error {
	defer r.s.lock()()
	if _, ok := r.s.data.requests[req.ID]; !ok {
		return models.NewNotFoundError("session request", req.ID)
	}
	r.s.data.requests[req.ID] = req.Clone()
	return nil
}

func (r *requestRepo) List(_ context.Context, filter repository.RequestFilter) ([]*models.SessionRequest, error) {
	defer r.s.lock()()
	var out []*models.SessionRequest
	for _, req := range r.s.data.requests {
		if filter.SessionID != "" && req.SessionID != filter.SessionID {
			continue
		}
		if filter.RiderID != "" && req.RiderID != filter.RiderID {
			continue
		}
		if filter.FilmerID != "" && req.FilmerID != filter.FilmerID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, req.Status) {
			continue
		}
		out = append(out, req.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *requestRepo) ExistsForSession(_ context.Context, sessionID string) (bool, error) {
	defer r.s.lock()()
	for _, req := range r.s.data.requests {
		if req.SessionID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

type conversationRepo struct{ s *Store }

func (r *conversationRepo) CreateIfAbsent(_ context.Context, conv *models.Conversation) (*models.Conversation, error) {
	defer r.s.lock()()
	if id, ok := r.s.data.convByKey[conv.Key]; ok {
		return cloneConversation(r.s.data.conversations[id]), nil
	}
	r.s.data.conversations[conv.ID] = cloneConversation(conv)
	r.s.data.convByKey[conv.Key] = conv.ID
	return cloneConversation(conv), nil
}

func (r *conversationRepo) GetByID(_ context.Context, id string) (*models.Conversation, error) {
	defer r.s.lock()()
	conv, ok := r.s.data.conversations[id]
	if !ok {
		return nil, models.NewNotFoundError("conversation", id)
	}
	return cloneConversation(conv), nil
}

func (r *conversationRepo) GetByKey(_ context.Context, key string) (*models.Conversation, error) {
	defer r.s.lock()()
	id, ok := r.s.data.convByKey[key]
	if !ok {
		return nil, models.NewNotFoundError("conversation", key)
	}
	return cloneConversation(r.s.data.conversations[id]), nil
}

func (r *conversationRepo) ListByParticipant(_ context.Context, userID string) ([]*models.Conversation, error) {
	defer r.s.lock()()
	var out []*models.Conversation
	for _, conv := range r.s.data.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, cloneConversation(conv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}

func (r *conversationRepo) TouchLastMessage(_ context.Context, id string, at time.Time) error {
	defer r.s.lock()()
	conv, ok := r.s.data.conversations[id]
	if !ok {
		return models.NewNotFoundError("conversation", id)
	}
	conv.LastMessageAt = at
	return nil
}

func (r *conversationRepo) CreateMessage(_ context.Context, msg *models.Message) error {
	defer r.s.lock()()
	if _, ok := r.s.data.conversations[msg.ConversationID]; !ok {
		return models.NewNotFoundError("conversation", msg.ConversationID)
	}
	m := *msg
	r.s.data.messages[msg.ConversationID] = append(r.s.data.messages[msg.ConversationID], &m)
	return nil
}

func (r *conversationRepo) ListMessages(_ context.Context, conversationID string, limit int) ([]*models.Message, error) {
	defer r.s.lock()()
	msgs := r.s.data.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*models.Message, len(msgs))
	for i, m := range msgs {
		mc := *m
		out[i] = &mc
	}
	return out, nil
}

type reviewRepo struct{ s *Store }

func (r *reviewRepo) Create(_ context.Context, review *models.Review) error {
	defer r.s.lock()()
	for _, existing := range r.s.data.reviews {
		if existing.SessionID == review.SessionID && existing.RiderID == review.RiderID {
			return models.NewConflictError("session already reviewed")
		}
	}
	rc := *review
	r.s.data.reviews[review.ID] = &rc
	return nil
}

func (r *reviewRepo) GetByID(_ context.Context, id string) (*models.Review, error) {
	defer r.s.lock()()
	review, ok := r.s.data.reviews[id]
	if !ok {
		return nil, models.NewNotFoundError("review", id)
	}
	rc := *review
	return &rc, nil
}

func (r *reviewRepo) Delete(_ context.Context, id string) error {
	defer r.s.lock()()
	if _, ok := r.s.data.reviews[id]; !ok {
		return models.NewNotFoundError("review", id)
	}
	delete(r.s.data.reviews, id)
	return nil
}

func (r *reviewRepo) ListByFilmer(_ context.Context, filmerID string) ([]*models.Review, error) {
	defer r.s.lock()()
	var out []*models.Review
	for _, review := range r.s.data.reviews {
		if review.FilmerID == filmerID {
			rc := *review
			out = append(out, &rc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *reviewRepo) ExistsForSessionRider(_ context.Context, sessionID, riderID string) (bool, error) {
	defer r.s.lock()()
	for _, review := range r.s.data.reviews {
		if review.SessionID == sessionID && review.RiderID == riderID {
			return true, nil
		}
	}
	return false, nil
}

func hasStatus(statuses []models.RequestStatus, s models.RequestStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.SessionRate != nil {
		v := *u.SessionRate
		c.SessionRate = &v
	}
	if u.AverageRating != nil {
		v := *u.AverageRating
		c.AverageRating = &v
	}
	return &c
}

func cloneConversation(c *models.Conversation) *models.Conversation {
	cc := *c
	cc.Participants = append([]string(nil), c.Participants...)
	return &cc
}
