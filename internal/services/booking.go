package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gnarhub-backend/internal/models"
	"gnarhub-backend/internal/notify"
	"gnarhub-backend/internal/observability"
	"gnarhub-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ConversationLinker opens the chat between a rider and a filmer
type ConversationLinker interface {
	GetOrCreateConversation(ctx context.Context, sessionID string, participants [2]string) (*models.Conversation, error)
}

// BookingService runs the request / counter-offer / acceptance protocol
type BookingService struct {
	store         repository.Store
	conversations ConversationLinker
	emitter       notify.Emitter
}

// NewBookingService creates a new booking service
func NewBookingService(store repository.Store, conversations ConversationLinker, emitter notify.Emitter) *BookingService {
	return &BookingService{store: store, conversations: conversations, emitter: emitter}
}

// CreateRequestInput is a rider's bid for a session
type CreateRequestInput struct {
	SessionID        string              `json:"session_id" validate:"required"`
	Message          string              `json:"message" validate:"required,max=1000"`
	TerrainTags      []models.TerrainTag `json:"terrain_tags" validate:"omitempty,dive,terrain"`
	Amount           *float64            `json:"amount" validate:"omitnil,gte=20,lte=500"`
	PaymentReference *string             `json:"payment_reference" validate:"omitnil,max=255"`
}

// CounterOfferInput is the filmer's alternative proposal
type CounterOfferInput struct {
	StartTime string  `json:"start_time" validate:"required,hhmm"`
	EndTime   string  `json:"end_time" validate:"required,hhmm"`
	Amount    float64 `json:"amount" validate:"gte=20,lte=500"`
	Message   string  `json:"message" validate:"max=1000"`
}

// CreateRequest files a pending request on an open session and links the rider and
// filmer in a conversation. The returned conversation id is empty when linking failed.
func (s *BookingService) CreateRequest(ctx context.Context, riderID string, in CreateRequestInput) (*models.SessionRequest, string, error) {
	in.Message = strings.TrimSpace(in.Message)
	if err := validateStruct(in); err != nil {
		return nil, "", err
	}

	var (
		req     *models.SessionRequest
		session *models.Session
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		session, err = tx.Sessions().GetForUpdate(ctx, in.SessionID)
		if err != nil {
			return err
		}
		if session.FilmerID == riderID {
			return models.NewValidationError("session_id", "cannot request your own session")
		}
		if session.Status != models.SessionOpen {
			return models.NewConflictError("session is not open for requests")
		}
		if _, err := tx.Users().GetByID(ctx, riderID); err != nil {
			return err
		}

		open, err := tx.Requests().List(ctx, repository.RequestFilter{
			SessionID: session.ID,
			RiderID:   riderID,
			Statuses:  models.OpenRequestStatuses,
			Limit:     1,
		})
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return models.NewConflictError("you already have an open request for this session")
		}

		amount := session.Rate
		if in.Amount != nil {
			amount = *in.Amount
		}
		req = &models.SessionRequest{
			ID:                uuid.New().String(),
			SessionID:         session.ID,
			RiderID:           riderID,
			FilmerID:          session.FilmerID,
			Status:            models.RequestPending,
			Message:           in.Message,
			RiderTerrainLevel: uniqueTags(in.TerrainTags),
			Amount:            amount,
			PaymentReference:  trimmedOrNil(in.PaymentReference),
			CreatedAt:         time.Now().UTC(),
		}
		return tx.Requests().Create(ctx, req)
	})
	if err != nil {
		return nil, "", err
	}
	observability.RequestsCreated.Inc()

	conversationID := ""
	conv, err := s.conversations.GetOrCreateConversation(ctx, session.ID, [2]string{riderID, session.FilmerID})
	if err != nil {
		log.Warn().Err(err).Str("request_id", req.ID).Msg("Failed to link conversation")
	} else {
		conversationID = conv.ID
	}

	s.emitter.Emit(ctx, notify.Event{
		Kind:       notify.KindNewRequest,
		Recipients: []string{session.FilmerID},
		SessionID:  session.ID,
		RequestID:  req.ID,
		Payload: map[string]any{
			"rider_id":        riderID,
			"mountain":        models.MountainName(session.MountainID),
			"date":            session.Date,
			"start_time":      session.StartTime,
			"end_time":        session.EndTime,
			"amount":          req.Amount,
			"message":         req.Message,
			"conversation_id": conversationID,
		},
	})

	log.Info().
		Str("request_id", req.ID).
		Str("session_id", session.ID).
		Str("rider_id", riderID).
		Msg("Session request created")

	return req, conversationID, nil
}

// AcceptRequest books the session for the request's rider, then declines the competition
func (s *BookingService) AcceptRequest(ctx context.Context, filmerID, requestID string) (*models.SessionRequest, error) {
	req, err := s.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	session, err := s.store.Sessions().GetByID(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.FilmerID != filmerID {
		return nil, models.NewForbiddenError("only the filmer can accept this request")
	}

	accepted, err := s.AcceptRequestAtomic(ctx, requestID, req.SessionID, req.RiderID)
	if err != nil {
		return nil, err
	}
	observability.BookingsAccepted.WithLabelValues("direct").Inc()

	s.sweep(ctx, req.SessionID, requestID)

	s.emitter.Emit(ctx, notify.Event{
		Kind:       notify.KindRequestAccepted,
		Recipients: []string{accepted.RiderID},
		SessionID:  accepted.SessionID,
		RequestID:  accepted.ID,
		Payload: map[string]any{
			"mountain":   models.MountainName(session.MountainID),
			"date":       session.Date,
			"start_time": session.StartTime,
			"end_time":   session.EndTime,
			"amount":     accepted.Amount,
		},
	})

	log.Info().Str("request_id", requestID).Str("session_id", req.SessionID).Msg("Session request accepted")
	return accepted, nil
}

// AcceptRequestAtomic marks the request accepted and the session booked in one transaction.
// Of any number of concurrent acceptances for a session exactly one succeeds; the others
// see a session that is no longer open and get a ConflictError.
func (s *BookingService) AcceptRequestAtomic(ctx context.Context, requestID, sessionID, riderID string) (*models.SessionRequest, error) {
	var accepted *models.SessionRequest
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		session, err := tx.Sessions().GetForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != models.SessionOpen {
			return models.NewConflictError("session no longer available")
		}

		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.SessionID != sessionID || req.RiderID != riderID {
			return models.NewValidationError("request_id", "request does not belong to this session and rider")
		}
		if !req.Status.CanTransitionTo(models.RequestAccepted) {
			return models.NewConflictError("request no longer pending")
		}

		now := time.Now().UTC()
		req.Status = models.RequestAccepted
		req.RespondedAt = &now
		expireCounterOffer(req)

		session.Status = models.SessionBooked
		session.RiderID = models.StringPtr(riderID)
		session.RequestID = models.StringPtr(requestID)
		session.UpdatedAt = now

		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}
		if err := tx.Sessions().Update(ctx, session); err != nil {
			return err
		}
		accepted = req
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			observability.BookingConflicts.Inc()
		}
		return nil, err
	}
	return accepted, nil
}

// DeclineRequest rejects a request under negotiation. The session is untouched.
func (s *BookingService) DeclineRequest(ctx context.Context, filmerID, requestID string) (*models.SessionRequest, error) {
	var (
		declined *models.SessionRequest
		session  *models.Session
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.FilmerID != filmerID {
			return models.NewForbiddenError("only the filmer can decline this request")
		}
		if !req.Status.CanTransitionTo(models.RequestDeclined) {
			return models.NewConflictError("request is " + string(req.Status) + " and can no longer be declined")
		}
		if session, err = tx.Sessions().GetByID(ctx, req.SessionID); err != nil {
			return err
		}

		decline(req, time.Now().UTC())
		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}
		declined = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(ctx, declinedEvent(declined, session, "declined_by_filmer"))
	log.Info().Str("request_id", requestID).Msg("Session request declined")
	return declined, nil
}

// DeclineOtherRequests declines every request of the session still under negotiation except
// acceptedRequestID. It is idempotent and returns how many requests it declined.
func (s *BookingService) DeclineOtherRequests(ctx context.Context, sessionID, acceptedRequestID string) (int, error) {
	var (
		swept   []*models.SessionRequest
		session *models.Session
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		if session, err = tx.Sessions().GetByID(ctx, sessionID); err != nil {
			return err
		}
		swept, err = declineOpenRequests(ctx, tx, sessionID, acceptedRequestID)
		return err
	})
	if err != nil {
		return 0, err
	}

	for _, req := range swept {
		s.emitter.Emit(ctx, declinedEvent(req, session, "session_booked"))
	}
	observability.RequestsSwept.Add(float64(len(swept)))
	return len(swept), nil
}

// sweep runs DeclineOtherRequests after a booking. A failure leaves stale open requests
// behind but never undoes the booking.
func (s *BookingService) sweep(ctx context.Context, sessionID, acceptedRequestID string) {
	n, err := s.DeclineOtherRequests(ctx, sessionID, acceptedRequestID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to decline competing requests")
		return
	}
	if n > 0 {
		log.Info().Str("session_id", sessionID).Int("declined", n).Msg("Competing requests declined")
	}
}

// CreateCounterOffer proposes alternative terms on a pending request of an open session
func (s *BookingService) CreateCounterOffer(ctx context.Context, filmerID, requestID string, in CounterOfferInput) (*models.SessionRequest, error) {
	in.Message = strings.TrimSpace(in.Message)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	start, end, err := timeWindow(in.StartTime, in.EndTime)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if existing.FilmerID != filmerID {
		return nil, models.NewForbiddenError("only the filmer can counter this request")
	}

	var countered *models.SessionRequest
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		// session before request, the same lock order as acceptance
		session, err := tx.Sessions().GetForUpdate(ctx, existing.SessionID)
		if err != nil {
			return err
		}
		if session.Status != models.SessionOpen {
			return models.NewConflictError("session no longer available")
		}
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != models.RequestPending {
			return models.NewConflictError("counter-offers can only be made on pending requests")
		}

		now := time.Now().UTC()
		req.Status = models.RequestCounterOffered
		req.RespondedAt = &now
		req.CounterOffer = &models.CounterOffer{
			ID:        uuid.New().String(),
			StartTime: start,
			EndTime:   end,
			Amount:    in.Amount,
			Message:   in.Message,
			Status:    models.CounterOfferPending,
			CreatedAt: now,
		}
		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}
		countered = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	co := countered.CounterOffer
	s.emitter.Emit(ctx, notify.Event{
		Kind:       notify.KindCounterOffer,
		Recipients: []string{countered.RiderID},
		SessionID:  countered.SessionID,
		RequestID:  countered.ID,
		Payload: map[string]any{
			"start_time": co.StartTime,
			"end_time":   co.EndTime,
			"amount":     co.Amount,
			"message":    co.Message,
		},
	})

	log.Info().Str("request_id", requestID).Float64("amount", co.Amount).Msg("Counter-offer created")
	return countered, nil
}

// AcceptCounterOffer books the session on the counter-offer's terms: its time window and
// amount replace the session's.
func (s *BookingService) AcceptCounterOffer(ctx context.Context, riderID, requestID string) (*models.SessionRequest, error) {
	existing, err := s.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if existing.RiderID != riderID {
		return nil, models.NewForbiddenError("only the rider can accept this counter-offer")
	}

	var accepted *models.SessionRequest
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		session, err := tx.Sessions().GetForUpdate(ctx, existing.SessionID)
		if err != nil {
			return err
		}
		if session.Status != models.SessionOpen {
			return models.NewConflictError("session no longer available")
		}
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		co := req.CounterOffer
		if req.Status != models.RequestCounterOffered || co == nil || co.Status != models.CounterOfferPending {
			return models.NewConflictError("no pending counter-offer on this request")
		}

		now := time.Now().UTC()
		req.Status = models.RequestAccepted
		req.Amount = co.Amount
		req.RespondedAt = &now
		co.Status = models.CounterOfferAccepted

		session.Status = models.SessionBooked
		session.RiderID = models.StringPtr(riderID)
		session.RequestID = models.StringPtr(requestID)
		session.StartTime = co.StartTime
		session.EndTime = co.EndTime
		session.Rate = co.Amount
		session.UpdatedAt = now

		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}
		if err := tx.Sessions().Update(ctx, session); err != nil {
			return err
		}
		accepted = req
		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			observability.BookingConflicts.Inc()
		}
		return nil, err
	}
	observability.BookingsAccepted.WithLabelValues("counter_offer").Inc()

	s.sweep(ctx, accepted.SessionID, requestID)

	s.emitter.Emit(ctx, notify.Event{
		Kind:       notify.KindCounterOfferAccepted,
		Recipients: []string{accepted.FilmerID},
		SessionID:  accepted.SessionID,
		RequestID:  accepted.ID,
		Payload: map[string]any{
			"rider_id":   riderID,
			"start_time": accepted.CounterOffer.StartTime,
			"end_time":   accepted.CounterOffer.EndTime,
			"amount":     accepted.Amount,
		},
	})

	log.Info().Str("request_id", requestID).Str("session_id", accepted.SessionID).Msg("Counter-offer accepted")
	return accepted, nil
}

// DeclineCounterOffer ends the negotiation from the rider's side
func (s *BookingService) DeclineCounterOffer(ctx context.Context, riderID, requestID string) (*models.SessionRequest, error) {
	var (
		declined *models.SessionRequest
		session  *models.Session
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.RiderID != riderID {
			return models.NewForbiddenError("only the rider can decline this counter-offer")
		}
		co := req.CounterOffer
		if req.Status != models.RequestCounterOffered || co == nil || co.Status != models.CounterOfferPending {
			return models.NewConflictError("no pending counter-offer on this request")
		}
		if session, err = tx.Sessions().GetByID(ctx, req.SessionID); err != nil {
			return err
		}

		now := time.Now().UTC()
		req.Status = models.RequestDeclined
		req.RespondedAt = &now
		co.Status = models.CounterOfferDeclined
		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}
		declined = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	evt := declinedEvent(declined, session, "counter_offer_declined")
	evt.Recipients = []string{declined.FilmerID}
	s.emitter.Emit(ctx, evt)

	log.Info().Str("request_id", requestID).Msg("Counter-offer declined")
	return declined, nil
}

// CancelRequest lets a rider withdraw a pending request
func (s *BookingService) CancelRequest(ctx context.Context, riderID, requestID string) (*models.SessionRequest, error) {
	var cancelled *models.SessionRequest
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		req, err := tx.Requests().GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req.RiderID != riderID {
			return models.NewForbiddenError("only the rider can cancel this request")
		}
		if !req.Status.CanTransitionTo(models.RequestCancelled) {
			return models.NewConflictError("request is " + string(req.Status) + " and can no longer be cancelled")
		}
		now := time.Now().UTC()
		req.Status = models.RequestCancelled
		req.RespondedAt = &now
		if err := tx.Requests().Update(ctx, req); err != nil {
			return err
		}
		cancelled = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("request_id", requestID).Msg("Session request cancelled by rider")
	return cancelled, nil
}

// GetRequest retrieves a request visible to actorID
func (s *BookingService) GetRequest(ctx context.Context, actorID, id string) (*models.SessionRequest, error) {
	req, err := s.store.Requests().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.RiderID != actorID && req.FilmerID != actorID {
		return nil, models.NewForbiddenError("not a participant of this request")
	}
	return req, nil
}

// ListRequests returns the user's requests on the given side, newest first
func (s *BookingService) ListRequests(ctx context.Context, userID string, role models.RequestRole) ([]*models.SessionRequest, error) {
	filter := repository.RequestFilter{}
	switch role {
	case models.RoleRider:
		filter.RiderID = userID
	case models.RoleFilmer:
		filter.FilmerID = userID
	default:
		return nil, models.NewValidationError("role", "must be one of rider, filmer")
	}
	return s.store.Requests().List(ctx, filter)
}

// declineOpenRequests declines every pending or counter-offered request of a session
// except exceptID and returns the ones it changed
func declineOpenRequests(ctx context.Context, tx repository.Store, sessionID, exceptID string) ([]*models.SessionRequest, error) {
	open, err := tx.Requests().List(ctx, repository.RequestFilter{
		SessionID: sessionID,
		Statuses:  models.OpenRequestStatuses,
	})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var swept []*models.SessionRequest
	for _, candidate := range open {
		if candidate.ID == exceptID {
			continue
		}
		req, err := tx.Requests().GetForUpdate(ctx, candidate.ID)
		if err != nil {
			return nil, err
		}
		if !req.Status.Open() {
			continue
		}
		decline(req, now)
		if err := tx.Requests().Update(ctx, req); err != nil {
			return nil, err
		}
		swept = append(swept, req)
	}
	return swept, nil
}

func decline(req *models.SessionRequest, at time.Time) {
	req.Status = models.RequestDeclined
	req.RespondedAt = &at
	expireCounterOffer(req)
}

// expireCounterOffer keeps an unanswered counter-offer as history once the request is resolved otherwise
func expireCounterOffer(req *models.SessionRequest) {
	if req.CounterOffer != nil && req.CounterOffer.Status == models.CounterOfferPending {
		req.CounterOffer.Status = models.CounterOfferExpired
	}
}

func declinedEvent(req *models.SessionRequest, session *models.Session, reason string) notify.Event {
	payload := map[string]any{"reason": reason}
	if session != nil {
		payload["mountain"] = models.MountainName(session.MountainID)
		payload["date"] = session.Date
	}
	return notify.Event{
		Kind:       notify.KindRequestDeclined,
		Recipients: []string{req.RiderID},
		SessionID:  req.SessionID,
		RequestID:  req.ID,
		Payload:    payload,
	}
}
