package handlers

import (
	"net/http"

	"gnarhub-backend/internal/middleware"
	"gnarhub-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// ReviewHandler handles review HTTP requests
type ReviewHandler struct {
	reviewService *services.ReviewService
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(reviewService *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

// CreateReview handles POST /api/v1/sessions/{session_id}/reviews
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var in services.CreateReviewInput
	if !decodeJSON(w, r, &in) {
		return
	}

	review, err := h.reviewService.CreateReview(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "session_id"), in)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, review)
}

// ListFilmerReviews handles GET /api/v1/filmers/{user_id}/reviews
func (h *ReviewHandler) ListFilmerReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviewService.ListFilmerReviews(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, reviews)
}
