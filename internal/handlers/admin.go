package handlers

import (
	"net/http"

	"gnarhub-backend/internal/middleware"
	"gnarhub-backend/internal/models"
	"gnarhub-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// AdminHandler serves moderation and maintenance endpoints. Routes are gated by middleware.AdminOnly.
type AdminHandler struct {
	reviewService  *services.ReviewService
	sessionService *services.SessionService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(reviewService *services.ReviewService, sessionService *services.SessionService) *AdminHandler {
	return &AdminHandler{reviewService: reviewService, sessionService: sessionService}
}

// DeleteReview handles DELETE /api/v1/admin/reviews/{review_id}?filmer_id=
func (h *AdminHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	filmerID := r.URL.Query().Get("filmer_id")
	if filmerID == "" {
		respondServiceError(w, r, models.NewValidationError("filmer_id", "is required"))
		return
	}

	reviewID := chi.URLParam(r, "review_id")
	if err := h.reviewService.DeleteReview(r.Context(), reviewID, filmerID); err != nil {
		respondServiceError(w, r, err)
		return
	}
	log.Info().Str("admin_id", middleware.GetUserID(r.Context())).Str("review_id", reviewID).Msg("Review removed by admin")
	w.WriteHeader(http.StatusNoContent)
}

// RecomputeRating handles POST /api/v1/admin/filmers/{user_id}/recompute-rating
func (h *AdminHandler) RecomputeRating(w http.ResponseWriter, r *http.Request) {
	filmer, err := h.reviewService.RecomputeRating(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, filmer)
}

// SendReminders handles POST /api/v1/admin/reminders?date=YYYY-MM-DD
func (h *AdminHandler) SendReminders(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	count, err := h.sessionService.SendReminders(r.Context(), date)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"date": date, "sessions": count})
}
