package handlers

import (
	"net/http"
	"strings"

	"gnarhub-backend/internal/middleware"
	"gnarhub-backend/internal/models"
	"gnarhub-backend/internal/repository"
	"gnarhub-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// SessionHandler handles session-related HTTP requests
type SessionHandler struct {
	sessionService *services.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// ListSessions handles GET /api/v1/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.SessionFilter{
		Status:     models.SessionStatus(q.Get("status")),
		FilmerID:   q.Get("filmer_id"),
		MountainID: q.Get("mountain_id"),
		DateFrom:   q.Get("date_from"),
		DateTo:     q.Get("date_to"),
	}
	if raw := q.Get("terrain"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				filter.TerrainTags = append(filter.TerrainTags, models.TerrainTag(tag))
			}
		}
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	filter.Limit = limit

	sessions, err := h.sessionService.ListSessions(r.Context(), filter)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessions)
}

// ListFilmerSessions handles GET /api/v1/filmers/{user_id}/sessions
func (h *SessionHandler) ListFilmerSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessionService.ListFilmerSessions(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessions)
}

// CreateSession handles POST /api/v1/sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var in services.CreateSessionInput
	if !decodeJSON(w, r, &in) {
		return
	}

	session, err := h.sessionService.CreateSession(r.Context(), middleware.GetUserID(r.Context()), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

// GetSession handles GET /api/v1/sessions/{session_id}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.GetSession(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// UpdateSession handles PATCH /api/v1/sessions/{session_id}
func (h *SessionHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var in services.UpdateSessionInput
	if !decodeJSON(w, r, &in) {
		return
	}

	session, err := h.sessionService.UpdateSession(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "session_id"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// CancelSession handles POST /api/v1/sessions/{session_id}/cancel
func (h *SessionHandler) CancelSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.CancelSession(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "session_id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// CompleteSession handles POST /api/v1/sessions/{session_id}/complete
func (h *SessionHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessionService.CompleteSession(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "session_id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// DeleteSession handles DELETE /api/v1/sessions/{session_id}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessionService.DeleteSession(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "session_id")); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
