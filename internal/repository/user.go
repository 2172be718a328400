package repository

import (
	"context"

	"gnarhub-backend/internal/models"
)

// UserRepo handles database operations for users
type UserRepo struct {
	db querier
}

const userColumns = `id, email, display_name, is_filmer, is_admin, session_rate, sessions_as_rider,
		sessions_as_filmer, average_rating, review_count, rating_sum, created_at`

// Create creates a new user
func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.DisplayName, user.IsFilmer, user.IsAdmin, user.SessionRate,
		user.SessionsAsRider, user.SessionsAsFilmer, user.AverageRating, user.ReviewCount,
		user.RatingSum, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.NewConflictError("user already exists")
		}
		return models.NewDependencyError("create user", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetForUpdate retrieves a user by ID and locks the row until the transaction ends
func (r *UserRepo) GetForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (r *UserRepo) get(ctx context.Context, query, id string) (*models.User, error) {
	var user models.User
	err := r.db.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.IsFilmer, &user.IsAdmin, &user.SessionRate,
		&user.SessionsAsRider, &user.SessionsAsFilmer, &user.AverageRating, &user.ReviewCount,
		&user.RatingSum, &user.CreatedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, "user", id, "get user")
	}
	return &user, nil
}

// Update overwrites the mutable profile and aggregate columns of a user
func (r *UserRepo) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET email = $2, display_name = $3, is_filmer = $4, is_admin = $5, session_rate = $6,
			sessions_as_rider = $7, sessions_as_filmer = $8, average_rating = $9,
			review_count = $10, rating_sum = $11
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		user.ID, user.Email, user.DisplayName, user.IsFilmer, user.IsAdmin, user.SessionRate,
		user.SessionsAsRider, user.SessionsAsFilmer, user.AverageRating, user.ReviewCount,
		user.RatingSum,
	)
	if err != nil {
		return models.NewDependencyError("update user", err)
	}
	if result.RowsAffected() == 0 {
		return models.NewNotFoundError("user", user.ID)
	}
	return nil
}
