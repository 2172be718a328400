package services

import (
	"context"
	"strings"
	"time"

	"gnarhub-backend/internal/models"
	"gnarhub-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ReviewService stores reviews and keeps each filmer's rating aggregate in step with them
type ReviewService struct {
	store repository.Store
}

// NewReviewService creates a new review service
func NewReviewService(store repository.Store) *ReviewService {
	return &ReviewService{store: store}
}

// CreateReviewInput is a rider's feedback on a completed session
type CreateReviewInput struct {
	Rating      int    `json:"rating" validate:"gte=1,lte=5"`
	Text        string `json:"text" validate:"required,max=1000"`
	CouldKeepUp bool   `json:"could_keep_up"`
	GoodQuality bool   `json:"good_quality"`
	GoodVibes   bool   `json:"good_vibes"`
}

// CreateReview records the booked rider's review of a completed session and folds the
// rating into the filmer's aggregate in the same transaction
func (s *ReviewService) CreateReview(ctx context.Context, riderID, sessionID string, in CreateReviewInput) (*models.Review, error) {
	in.Text = strings.TrimSpace(in.Text)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	var review *models.Review
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		session, err := tx.Sessions().GetByID(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.RiderID == nil || *session.RiderID != riderID {
			return models.NewForbiddenError("only the booked rider can review this session")
		}
		if session.Status != models.SessionCompleted {
			return models.NewConflictError("only completed sessions can be reviewed")
		}
		exists, err := tx.Reviews().ExistsForSessionRider(ctx, sessionID, riderID)
		if err != nil {
			return err
		}
		if exists {
			return models.NewConflictError("session already reviewed")
		}

		review = &models.Review{
			ID:          uuid.New().String(),
			SessionID:   sessionID,
			FilmerID:    session.FilmerID,
			RiderID:     riderID,
			Rating:      in.Rating,
			Text:        in.Text,
			CouldKeepUp: in.CouldKeepUp,
			GoodQuality: in.GoodQuality,
			GoodVibes:   in.GoodVibes,
			CreatedAt:   time.Now().UTC(),
		}
		if err := tx.Reviews().Create(ctx, review); err != nil {
			return err
		}

		filmer, err := tx.Users().GetForUpdate(ctx, session.FilmerID)
		if err != nil {
			return err
		}
		filmer.RatingSum += review.Rating
		filmer.ReviewCount++
		setAverage(filmer)
		return tx.Users().Update(ctx, filmer)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("review_id", review.ID).Str("filmer_id", review.FilmerID).Int("rating", review.Rating).Msg("Review created")
	return review, nil
}

// DeleteReview removes a review of filmerID and takes its rating back out of the aggregate
func (s *ReviewService) DeleteReview(ctx context.Context, reviewID, filmerID string) error {
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		review, err := tx.Reviews().GetByID(ctx, reviewID)
		if err != nil {
			return err
		}
		if review.FilmerID != filmerID {
			return models.NewValidationError("filmer_id", "review does not belong to this filmer")
		}
		if err := tx.Reviews().Delete(ctx, reviewID); err != nil {
			return err
		}

		filmer, err := tx.Users().GetForUpdate(ctx, filmerID)
		if err != nil {
			return err
		}
		filmer.RatingSum -= review.Rating
		filmer.ReviewCount--
		if filmer.ReviewCount <= 0 {
			filmer.ReviewCount = 0
			filmer.RatingSum = 0
		}
		setAverage(filmer)
		return tx.Users().Update(ctx, filmer)
	})
	if err != nil {
		return err
	}

	log.Info().Str("review_id", reviewID).Str("filmer_id", filmerID).Msg("Review deleted")
	return nil
}

// RecomputeRating rebuilds a filmer's aggregate from the full review set
func (s *ReviewService) RecomputeRating(ctx context.Context, filmerID string) (*models.User, error) {
	var filmer *models.User
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		if filmer, err = tx.Users().GetForUpdate(ctx, filmerID); err != nil {
			return err
		}
		reviews, err := tx.Reviews().ListByFilmer(ctx, filmerID)
		if err != nil {
			return err
		}
		filmer.RatingSum = 0
		for _, r := range reviews {
			filmer.RatingSum += r.Rating
		}
		filmer.ReviewCount = len(reviews)
		setAverage(filmer)
		return tx.Users().Update(ctx, filmer)
	})
	if err != nil {
		return nil, err
	}
	return filmer, nil
}

// ListFilmerReviews returns a filmer's reviews, newest first
func (s *ReviewService) ListFilmerReviews(ctx context.Context, filmerID string) ([]*models.Review, error) {
	return s.store.Reviews().ListByFilmer(ctx, filmerID)
}

func setAverage(u *models.User) {
	if u.ReviewCount == 0 {
		u.AverageRating = nil
		return
	}
	avg := float64(u.RatingSum) / float64(u.ReviewCount)
	u.AverageRating = &avg
}
