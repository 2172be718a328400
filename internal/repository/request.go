package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gnarhub-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// RequestRepo handles database operations for session requests
type RequestRepo struct {
	db querier
}

const requestColumns = `id, session_id, rider_id, filmer_id, status, message, rider_terrain_level,
		amount, payment_reference, counter_offer, created_at, responded_at`

// Create creates a new session request
func (r *RequestRepo) Create(ctx context.Context, req *models.SessionRequest) error {
	counter, err := encodeCounterOffer(req.CounterOffer)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO session_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.db.Exec(ctx, query,
		req.ID, req.SessionID, req.RiderID, req.FilmerID, string(req.Status), req.Message,
		tagsToStrings(req.RiderTerrainLevel), req.Amount, req.PaymentReference, counter,
		req.CreatedAt, req.RespondedAt,
	)
	if err != nil {
		return models.NewDependencyError("create session request", err)
	}
	return nil
}

// GetByID retrieves a session request by ID
func (r *RequestRepo) GetByID(ctx context.Context, id string) (*models.SessionRequest, error) {
	return r.get(ctx, `SELECT `+requestColumns+` FROM session_requests WHERE id = $1`, id)
}

// GetForUpdate retrieves a session request by ID and locks the row until the transaction ends
func (r *RequestRepo) GetForUpdate(ctx context.Context, id string) (*models.SessionRequest, error) {
	return r.get(ctx, `SELECT `+requestColumns+` FROM session_requests WHERE id = $1 FOR UPDATE`, id)
}

func (r *RequestRepo) get(ctx context.Context, query, id string) (*models.SessionRequest, error) {
	req, err := scanRequest(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "session request", id, "get session request")
	}
	return req, nil
}

// Update overwrites a request's negotiation state
func (r *RequestRepo) Update(ctx context.Context, req *models.SessionRequest) error {
	counter, err := encodeCounterOffer(req.CounterOffer)
	if err != nil {
		return err
	}
	query := `
		UPDATE session_requests
		SET status = $2, message = $3, amount = $4, payment_reference = $5,
			counter_offer = $6, responded_at = $7
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		req.ID, string(req.Status), req.Message, req.Amount, req.PaymentReference, counter, req.RespondedAt,
	)
	if err != nil {
		return models.NewDependencyError("update session request", err)
	}
	if result.RowsAffected() == 0 {
		return models.NewNotFoundError("session request", req.ID)
	}
	return nil
}

// List retrieves session requests matching filter, newest first
func (r *RequestRepo) List(ctx context.Context, filter RequestFilter) ([]*models.SessionRequest, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.SessionID != "" {
		add("session_id = $%d", filter.SessionID)
	}
	if filter.RiderID != "" {
		add("rider_id = $%d", filter.RiderID)
	}
	if filter.FilmerID != "" {
		add("filmer_id = $%d", filter.FilmerID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}

	query := `SELECT ` + requestColumns + ` FROM session_requests`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, models.NewDependencyError("list session requests", err)
	}
	defer rows.Close()

	var requests []*models.SessionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, models.NewDependencyError("scan session request", err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewDependencyError("list session requests", err)
	}
	return requests, nil
}

// ExistsForSession checks whether any request, in any status, references the session
func (r *RequestRepo) ExistsForSession(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM session_requests WHERE session_id = $1)`, sessionID).Scan(&exists)
	if err != nil {
		return false, models.NewDependencyError("check session requests", err)
	}
	return exists, nil
}

func scanRequest(row pgx.Row) (*models.SessionRequest, error) {
	var (
		req     models.SessionRequest
		status  string
		tags    []string
		counter []byte
	)
	err := row.Scan(
		&req.ID, &req.SessionID, &req.RiderID, &req.FilmerID, &status, &req.Message, &tags,
		&req.Amount, &req.PaymentReference, &counter, &req.CreatedAt, &req.RespondedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Status = models.RequestStatus(status)
	req.RiderTerrainLevel = stringsToTags(tags)
	if len(counter) > 0 {
		var co models.CounterOffer
		if err := json.Unmarshal(counter, &co); err != nil {
			return nil, fmt.Errorf("failed to decode counter offer: %w", err)
		}
		req.CounterOffer = &co
	}
	return &req, nil
}

// encodeCounterOffer returns nil for a missing offer so the column is stored as NULL
func encodeCounterOffer(co *models.CounterOffer) (any, error) {
	if co == nil {
		return nil, nil
	}
	data, err := json.Marshal(co)
	if err != nil {
		return nil, models.NewDependencyError("encode counter offer", err)
	}
	return data, nil
}
