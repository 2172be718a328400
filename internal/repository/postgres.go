package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"gnarhub-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schemaSQL string

const (
	defaultTxAttempts = 3
	txRetryDelay      = 20 * time.Millisecond
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on a pgx connection pool
type PostgresStore struct {
	pool        *pgxpool.Pool
	db          querier
	inTx        bool
	maxAttempts int
}

// NewPostgresStore creates a new Postgres-backed store.
// maxAttempts bounds how often a transaction is retried after a serialization failure.
func NewPostgresStore(pool *pgxpool.Pool, maxAttempts int) *PostgresStore {
	if maxAttempts <= 0 {
		maxAttempts = defaultTxAttempts
	}
	return &PostgresStore{pool: pool, db: pool, maxAttempts: maxAttempts}
}

// Migrate applies the embedded schema. Statements are idempotent.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Users() UserRepository { return &UserRepo{db: s.db} }

func (s *PostgresStore) Sessions() SessionRepository { return &SessionRepo{db: s.db} }

func (s *PostgresStore) Requests() RequestRepository { return &RequestRepo{db: s.db} }

func (s *PostgresStore) Conversations() ConversationRepository { return &ConversationRepo{db: s.db} }

func (s *PostgresStore) Reviews() ReviewRepository { return &ReviewRepo{db: s.db} }

// RunInTx runs fn inside a read-committed transaction. Rows that must not change
// underneath fn are read with GetForUpdate. Serialization failures and deadlocks are
// retried; once attempts are exhausted a ConflictError is returned.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	delay := txRetryDelay
	for attempt := 1; ; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt >= s.maxAttempts {
			log.Warn().Err(err).Int("attempts", attempt).Msg("Transaction retries exhausted")
			return models.NewConflictError("transaction aborted by a concurrent update")
		}

		log.Debug().Err(err).Int("attempt", attempt).Msg("Retrying transaction")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (s *PostgresStore) runOnce(ctx context.Context, fn func(ctx context.Context, tx Store) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return models.NewDependencyError("begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	txStore := &PostgresStore{pool: s.pool, db: tx, inTx: true, maxAttempts: s.maxAttempts}
	if err = fn(ctx, txStore); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return models.NewDependencyError("commit transaction", err)
	}
	return nil
}

// isRetryable reports serialization failures and deadlocks
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "40001" || pgErr.Code == "40P01"
}

// isUniqueViolation reports a unique constraint violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFoundOr(err error, resource, id, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewDependencyError(op, err)
}

func tagsToStrings(tags []models.TerrainTag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}

func stringsToTags(values []string) []models.TerrainTag {
	out := make([]models.TerrainTag, len(values))
	for i, v := range values {
		out[i] = models.TerrainTag(v)
	}
	return out
}
