package handlers

import (
	"context"
	"net/http"

	"gnarhub-backend/internal/middleware"
	"gnarhub-backend/internal/models"
	"gnarhub-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// RequestHandler handles session requests and counter-offers
type RequestHandler struct {
	bookingService *services.BookingService
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(bookingService *services.BookingService) *RequestHandler {
	return &RequestHandler{bookingService: bookingService}
}

// CreateRequestResponse carries the new request and the conversation it was linked to
type CreateRequestResponse struct {
	Request        *models.SessionRequest `json:"request"`
	ConversationID string                 `json:"conversation_id,omitempty"`
}

// CreateRequest handles POST /api/v1/sessions/{session_id}/requests
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var in services.CreateRequestInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.SessionID = chi.URLParam(r, "session_id")

	req, conversationID, err := h.bookingService.CreateRequest(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, CreateRequestResponse{Request: req, ConversationID: conversationID})
}

// ListRequests handles GET /api/v1/requests?role=rider|filmer
func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	role := models.RequestRole(r.URL.Query().Get("role"))
	if role == "" {
		role = models.RoleRider
	}

	reqs, err := h.bookingService.ListRequests(r.Context(), middleware.GetUserID(r.Context()), role)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reqs)
}

// GetRequest handles GET /api/v1/requests/{request_id}
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.bookingService.GetRequest(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "request_id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// AcceptRequest handles POST /api/v1/requests/{request_id}/accept
func (h *RequestHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bookingService.AcceptRequest)
}

// DeclineRequest handles POST /api/v1/requests/{request_id}/decline
func (h *RequestHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bookingService.DeclineRequest)
}

// CancelRequest handles POST /api/v1/requests/{request_id}/cancel
func (h *RequestHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bookingService.CancelRequest)
}

// CreateCounterOffer handles POST /api/v1/requests/{request_id}/counter-offer
func (h *RequestHandler) CreateCounterOffer(w http.ResponseWriter, r *http.Request) {
	var in services.CounterOfferInput
	if !decodeJSON(w, r, &in) {
		return
	}

	req, err := h.bookingService.CreateCounterOffer(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "request_id"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// AcceptCounterOffer handles POST /api/v1/requests/{request_id}/counter-offer/accept
func (h *RequestHandler) AcceptCounterOffer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bookingService.AcceptCounterOffer)
}

// DeclineCounterOffer handles POST /api/v1/requests/{request_id}/counter-offer/decline
func (h *RequestHandler) DeclineCounterOffer(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.bookingService.DeclineCounterOffer)
}

type requestTransition func(ctx context.Context, actorID, requestID string) (*models.SessionRequest, error)

func (h *RequestHandler) transition(w http.ResponseWriter, r *http.Request, fn requestTransition) {
	req, err := fn(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "request_id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}
