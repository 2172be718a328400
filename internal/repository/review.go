package repository

import (
	"context"

	"gnarhub-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// ReviewRepo handles database operations for reviews
type ReviewRepo struct {
	db querier
}

const reviewColumns = `id, session_id, filmer_id, rider_id, rating, text, could_keep_up, good_quality,
		good_vibes, created_at`

// Create creates a new review. A second review for the same session and rider is a conflict.
func (r *ReviewRepo) Create(ctx context.Context, review *models.Review) error {
	query := `
		INSERT INTO reviews (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		review.ID, review.SessionID, review.FilmerID, review.RiderID, review.Rating, review.Text,
		review.CouldKeepUp, review.GoodQuality, review.GoodVibes, review.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("session already reviewed")
		}
		return models.NewDependencyError("create review", err)
	}
	return nil
}

// GetByID retrieves a review by ID
func (r *ReviewRepo) GetByID(ctx context.Context, id string) (*models.Review, error) {
	review, err := scanReview(r.db.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "review", id, "get review")
	}
	return review, nil
}

// Delete deletes a review by ID
func (r *ReviewRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return models.NewDependencyError("delete review", err)
	}
	if result.RowsAffected() == 0 {
		return models.NewNotFoundError("review", id)
	}
	return nil
}

// ListByFilmer retrieves all reviews of a filmer, newest first
func (r *ReviewRepo) ListByFilmer(ctx context.Context, filmerID string) ([]*models.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE filmer_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, filmerID)
	if err != nil {
		return nil, models.NewDependencyError("list reviews", err)
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, models.NewDependencyError("scan review", err)
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewDependencyError("list reviews", err)
	}
	return reviews, nil
}

// ExistsForSessionRider checks whether the rider already reviewed the session
func (r *ReviewRepo) ExistsForSessionRider(ctx context.Context, sessionID, riderID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM reviews WHERE session_id = $1 AND rider_id = $2)`
	if err := r.db.QueryRow(ctx, query, sessionID, riderID).Scan(&exists); err != nil {
		return false, models.NewDependencyError("check review existence", err)
	}
	return exists, nil
}

func scanReview(row pgx.Row) (*models.Review, error) {
	var review models.Review
	err := row.Scan(
		&review.ID, &review.SessionID, &review.FilmerID, &review.RiderID, &review.Rating, &review.Text,
		&review.CouldKeepUp, &review.GoodQuality, &review.GoodVibes, &review.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &review, nil
}
