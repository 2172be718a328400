package repository

import (
	"context"
	"fmt"
	"strings"

	"gnarhub-backend/internal/models"

	"github.com/jackc/pgx/v5"
)

// SessionRepo handles database operations for sessions
type SessionRepo struct {
	db querier
}

const sessionColumns = `id, filmer_id, status, mountain_id, date, start_time, end_time, terrain_tags,
		rate, notes, rider_id, request_id, created_at, updated_at`

// Create creates a new session
func (r *SessionRepo) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.Exec(ctx, query,
		s.ID, s.FilmerID, string(s.Status), s.MountainID, s.Date, s.StartTime, s.EndTime,
		tagsToStrings(s.TerrainTags), s.Rate, s.Notes, s.RiderID, s.RequestID, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return models.NewDependencyError("create session", err)
	}
	return nil
}

// GetByID retrieves a session by ID
func (r *SessionRepo) GetByID(ctx context.Context, id string) (*models.Session, error) {
	return r.get(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
}

// GetForUpdate retrieves a session by ID and locks the row until the transaction ends
func (r *SessionRepo) GetForUpdate(ctx context.Context, id string) (*models.Session, error) {
	return r.get(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, id)
}

func (r *SessionRepo) get(ctx context.Context, query, id string) (*models.Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundOr(err, "session", id, "get session")
	}
	return s, nil
}

// Update overwrites a session's mutable columns
func (r *SessionRepo) Update(ctx context.Context, s *models.Session) error {
	query := `
		UPDATE sessions
		SET status = $2, date = $3, start_time = $4, end_time = $5, terrain_tags = $6,
			rate = $7, notes = $8, rider_id = $9, request_id = $10, updated_at = $11
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		s.ID, string(s.Status), s.Date, s.StartTime, s.EndTime, tagsToStrings(s.TerrainTags),
		s.Rate, s.Notes, s.RiderID, s.RequestID, s.UpdatedAt,
	)
	if err != nil {
		return models.NewDependencyError("update session", err)
	}
	if result.RowsAffected() == 0 {
		return models.NewNotFoundError("session", s.ID)
	}
	return nil
}

// Delete deletes a session by ID
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return models.NewDependencyError("delete session", err)
	}
	if result.RowsAffected() == 0 {
		return models.NewNotFoundError("session", id)
	}
	return nil
}

// List retrieves sessions matching filter, ordered by date then start time
func (r *SessionRepo) List(ctx context.Context, filter SessionFilter) ([]*models.Session, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.FilmerID != "" {
		add("filmer_id = $%d", filter.FilmerID)
	}
	if filter.MountainID != "" {
		add("mountain_id = $%d", filter.MountainID)
	}
	if filter.DateFrom != "" {
		add("date >= $%d", filter.DateFrom)
	}
	if filter.DateTo != "" {
		add("date <= $%d", filter.DateTo)
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date, start_time, created_at`
	// the terrain refinement below drops rows, so the limit can only go into SQL without it
	refine := len(filter.TerrainTags) > 0
	if filter.Limit > 0 && !refine {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, models.NewDependencyError("list sessions", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, models.NewDependencyError("scan session", err)
		}
		if refine && !models.IntersectsAny(s.TerrainTags, filter.TerrainTags) {
			continue
		}
		sessions = append(sessions, s)
		if refine && filter.Limit > 0 && len(sessions) == filter.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewDependencyError("list sessions", err)
	}
	return sessions, nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var (
		s      models.Session
		status string
		tags   []string
	)
	err := row.Scan(
		&s.ID, &s.FilmerID, &status, &s.MountainID, &s.Date, &s.StartTime, &s.EndTime, &tags,
		&s.Rate, &s.Notes, &s.RiderID, &s.RequestID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = models.SessionStatus(status)
	s.TerrainTags = stringsToTags(tags)
	return &s, nil
}
