package services

import (
	"context"
	"strings"
	"time"

	"gnarhub-backend/internal/models"
	"gnarhub-backend/internal/notify"
	"gnarhub-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SessionService handles the session lifecycle
type SessionService struct {
	store   repository.Store
	emitter notify.Emitter
}

// NewSessionService creates a new session service
func NewSessionService(store repository.Store, emitter notify.Emitter) *SessionService {
	return &SessionService{store: store, emitter: emitter}
}

// CreateSessionInput is what a filmer submits to publish a session
type CreateSessionInput struct {
	MountainID  string              `json:"mountain_id" validate:"required,mountain"`
	Date        string              `json:"date" validate:"required,ymd"`
	StartTime   string              `json:"start_time" validate:"required,hhmm"`
	EndTime     string              `json:"end_time" validate:"required,hhmm"`
	TerrainTags []models.TerrainTag `json:"terrain_tags" validate:"required,min=1,dive,terrain"`
	Rate        float64             `json:"rate" validate:"gte=20,lte=500"`
	Notes       *string             `json:"notes" validate:"omitnil,max=500"`
}

// UpdateSessionInput carries a partial edit. Date, mountain and filmer are accepted only
// so that attempts to change them can be rejected explicitly.
type UpdateSessionInput struct {
	StartTime   *string             `json:"start_time" validate:"omitnil,hhmm"`
	EndTime     *string             `json:"end_time" validate:"omitnil,hhmm"`
	TerrainTags []models.TerrainTag `json:"terrain_tags" validate:"omitempty,dive,terrain"`
	Rate        *float64            `json:"rate" validate:"omitnil,gte=20,lte=500"`
	Notes       *string             `json:"notes" validate:"omitnil,max=500"`

	Date       *string `json:"date"`
	MountainID *string `json:"mountain_id"`
	FilmerID   *string `json:"filmer_id"`
}

// CreateSession publishes an open session. The caller becomes a filmer on their first session.
func (s *SessionService) CreateSession(ctx context.Context, filmerID string, in CreateSessionInput) (*models.Session, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	start, end, err := timeWindow(in.StartTime, in.EndTime)
	if err != nil {
		return nil, err
	}
	if in.Date < today() {
		return nil, models.NewValidationError("date", "must not be in the past")
	}

	now := time.Now().UTC()
	session := &models.Session{
		ID:          uuid.New().String(),
		FilmerID:    filmerID,
		Status:      models.SessionOpen,
		MountainID:  in.MountainID,
		Date:        in.Date,
		StartTime:   start,
		EndTime:     end,
		TerrainTags: uniqueTags(in.TerrainTags),
		Rate:        in.Rate,
		Notes:       trimmedOrNil(in.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		filmer, err := tx.Users().GetForUpdate(ctx, filmerID)
		if err != nil {
			return err
		}
		if !filmer.IsFilmer {
			filmer.IsFilmer = true
			if filmer.SessionRate == nil {
				rate := in.Rate
				filmer.SessionRate = &rate
			}
			if err := tx.Users().Update(ctx, filmer); err != nil {
				return err
			}
		}
		return tx.Sessions().Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID).
		Str("filmer_id", filmerID).
		Str("mountain_id", session.MountainID).
		Str("date", session.Date).
		Msg("Session created")

	return session, nil
}

// GetSession retrieves a session by ID
func (s *SessionService) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return s.store.Sessions().GetByID(ctx, id)
}

// UpdateSession merges an edit into an open or booked session owned by actorID.
// Status never changes here.
func (s *SessionService) UpdateSession(ctx context.Context, actorID, id string, in UpdateSessionInput) (*models.Session, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	// an explicit empty list would leave the session without terrain
	if in.TerrainTags != nil && len(in.TerrainTags) == 0 {
		return nil, models.NewValidationError("terrain_tags", "must contain at least 1 item(s)")
	}

	var updated *models.Session
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		session, err := tx.Sessions().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if session.FilmerID != actorID {
			return models.NewForbiddenError("only the filmer can edit this session")
		}
		if in.Date != nil && *in.Date != session.Date {
			return models.NewValidationError("date", "cannot be changed")
		}
		if in.MountainID != nil && *in.MountainID != session.MountainID {
			return models.NewValidationError("mountain_id", "cannot be changed")
		}
		if in.FilmerID != nil && *in.FilmerID != session.FilmerID {
			return models.NewValidationError("filmer_id", "cannot be changed")
		}
		if !session.Status.Editable() {
			return models.NewConflictError("session is " + string(session.Status) + " and can no longer be edited")
		}

		start, end := session.StartTime, session.EndTime
		if in.StartTime != nil {
			start = *in.StartTime
		}
		if in.EndTime != nil {
			end = *in.EndTime
		}
		if session.StartTime, session.EndTime, err = timeWindow(start, end); err != nil {
			return err
		}
		if in.TerrainTags != nil {
			session.TerrainTags = uniqueTags(in.TerrainTags)
		}
		if in.Rate != nil {
			session.Rate = *in.Rate
		}
		if in.Notes != nil {
			session.Notes = trimmedOrNil(in.Notes)
		}
		session.UpdatedAt = time.Now().UTC()

		if err := tx.Sessions().Update(ctx, session); err != nil {
			return err
		}
		updated = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CancelSession cancels an open or booked session. Cancelling twice is a no-op.
// Requests still under negotiation are declined along with it.
func (s *SessionService) CancelSession(ctx context.Context, actorID, id string) (*models.Session, error) {
	var (
		cancelled *models.Session
		swept     []*models.SessionRequest
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		session, err := tx.Sessions().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if session.FilmerID != actorID {
			return models.NewForbiddenError("only the filmer can cancel this session")
		}
		if session.Status == models.SessionCancelled {
			cancelled = session
			return nil
		}
		if !session.Status.CanTransitionTo(models.SessionCancelled) {
			return models.NewConflictError("session is " + string(session.Status) + " and cannot be cancelled")
		}

		session.Status = models.SessionCancelled
		session.UpdatedAt = time.Now().UTC()
		if err := tx.Sessions().Update(ctx, session); err != nil {
			return err
		}
		if swept, err = declineOpenRequests(ctx, tx, session.ID, ""); err != nil {
			return err
		}
		cancelled = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, req := range swept {
		s.emitter.Emit(ctx, declinedEvent(req, cancelled, "session_cancelled"))
	}
	if len(swept) > 0 {
		log.Info().Str("session_id", id).Int("declined", len(swept)).Msg("Session cancelled, open requests declined")
	}
	return cancelled, nil
}

// DeleteSession removes a session that never received a request
func (s *SessionService) DeleteSession(ctx context.Context, actorID, id string) error {
	return s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		session, err := tx.Sessions().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if session.FilmerID != actorID {
			return models.NewForbiddenError("only the filmer can delete this session")
		}
		hasRequests, err := tx.Requests().ExistsForSession(ctx, id)
		if err != nil {
			return err
		}
		if hasRequests {
			return models.NewConflictError("session has requests; cancel it instead")
		}
		return tx.Sessions().Delete(ctx, id)
	})
}

// SessionHasRequests reports whether any request, in any status, references the session
func (s *SessionService) SessionHasRequests(ctx context.Context, id string) (bool, error) {
	return s.store.Requests().ExistsForSession(ctx, id)
}

// ListSessions returns sessions in chronological order. Status defaults to open.
func (s *SessionService) ListSessions(ctx context.Context, filter repository.SessionFilter) ([]*models.Session, error) {
	if filter.Status == "" {
		filter.Status = models.SessionOpen
	}
	if !filter.Status.Valid() {
		return nil, models.NewValidationError("status", "unknown session status %q", filter.Status)
	}
	for _, tag := range filter.TerrainTags {
		if !tag.Valid() {
			return nil, models.NewValidationError("terrain", "unknown terrain tag %q", tag)
		}
	}
	return s.store.Sessions().List(ctx, filter)
}

// ListFilmerSessions returns every session of a filmer regardless of status
func (s *SessionService) ListFilmerSessions(ctx context.Context, filmerID string) ([]*models.Session, error) {
	return s.store.Sessions().List(ctx, repository.SessionFilter{FilmerID: filmerID})
}

// CompleteSession marks a booked session and its winning request completed
// and credits both participants.
func (s *SessionService) CompleteSession(ctx context.Context, actorID, id string) (*models.Session, error) {
	var completed *models.Session
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		session, err := tx.Sessions().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if session.FilmerID != actorID {
			return models.NewForbiddenError("only the filmer can complete this session")
		}
		if !session.Status.CanTransitionTo(models.SessionCompleted) {
			return models.NewConflictError("session is " + string(session.Status) + " and cannot be completed")
		}

		req, err := tx.Requests().GetForUpdate(ctx, *session.RequestID)
		if err != nil {
			return err
		}
		if !req.Status.CanTransitionTo(models.RequestCompleted) {
			return models.NewConflictError("booked request is " + string(req.Status))
		}

		now := time.Now().UTC()
		session.Status = models.SessionCompleted
		session.UpdatedAt = now
		req.Status = models.RequestCompleted
		if err := tx.Sessions().Update(ctx, session); err != nil {
			return err
		}
		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}

		filmer, err := tx.Users().GetForUpdate(ctx, session.FilmerID)
		if err != nil {
			return err
		}
		filmer.SessionsAsFilmer++
		if err := tx.Users().Update(ctx, filmer); err != nil {
			return err
		}
		rider, err := tx.Users().GetForUpdate(ctx, *session.RiderID)
		if err != nil {
			return err
		}
		rider.SessionsAsRider++
		if err := tx.Users().Update(ctx, rider); err != nil {
			return err
		}

		completed = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("session_id", id).Msg("Session completed")
	return completed, nil
}

// SendReminders notifies both participants of every session booked on date.
// It returns the number of sessions reminded.
func (s *SessionService) SendReminders(ctx context.Context, date string) (int, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return 0, models.NewValidationError("date", "must be a date in YYYY-MM-DD format")
	}
	sessions, err := s.store.Sessions().List(ctx, repository.SessionFilter{
		Status:   models.SessionBooked,
		DateFrom: date,
		DateTo:   date,
	})
	if err != nil {
		return 0, err
	}

	for _, session := range sessions {
		s.emitter.Emit(ctx, notify.Event{
			Kind:       notify.KindSessionReminder,
			Recipients: []string{session.FilmerID, *session.RiderID},
			SessionID:  session.ID,
			RequestID:  *session.RequestID,
			Payload: map[string]any{
				"mountain":   models.MountainName(session.MountainID),
				"date":       session.Date,
				"start_time": session.StartTime,
				"end_time":   session.EndTime,
			},
		})
	}

	log.Info().Str("date", date).Int("sessions", len(sessions)).Msg("Session reminders sent")
	return len(sessions), nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
