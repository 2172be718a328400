package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"gnarhub-backend/internal/models"

	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// ErrorResponse represents an error response. Code tells the client whether to fix the
// input (validation) or pick something else (conflict).
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondJSON writes v as JSON with the given status
func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message, code string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// respondServiceError maps a service error onto its HTTP status
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *models.ValidationError
		notFoundErr   *models.NotFoundError
		forbiddenErr  *models.ForbiddenError
		conflictErr   *models.ConflictError
		dependencyErr *models.DependencyError
	)
	switch {
	case errors.As(err, &validationErr):
		respondError(w, validationErr.Error(), "validation", http.StatusBadRequest)
	case errors.As(err, &notFoundErr):
		respondError(w, notFoundErr.Error(), "not_found", http.StatusNotFound)
	case errors.As(err, &forbiddenErr):
		respondError(w, forbiddenErr.Error(), "forbidden", http.StatusForbidden)
	case errors.As(err, &conflictErr):
		respondError(w, conflictErr.Error(), "conflict", http.StatusConflict)
	case errors.As(err, &dependencyErr):
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Dependency failure")
		respondError(w, "Upstream dependency failed", "dependency", http.StatusBadGateway)
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Unhandled error")
		respondError(w, "Internal server error", "internal", http.StatusInternalServerError)
	}
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, "Invalid request body", "validation", http.StatusBadRequest)
		return false
	}
	return true
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, models.NewValidationError(key, "must be a non-negative integer")
	}
	return n, nil
}
