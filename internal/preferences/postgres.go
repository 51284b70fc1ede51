package preferences

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps preferences in the user_preferences table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("preferences: postgres pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (string, error) {
	key, err := userKey(userID)
	if err != nil {
		return "", err
	}

	const query = `SELECT timezone FROM user_preferences WHERE user_id = $1`

	var tz string
	if err := s.pool.QueryRow(ctx, query, key).Scan(&tz); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("postgres get preference: %w", mapPgError(err))
	}
	return tz, nil
}

func (s *PostgresStore) Set(ctx context.Context, userID, timezone string) error {
	key, err := userKey(userID)
	if err != nil {
		return err
	}

	const upsert = `INSERT INTO user_preferences (user_id, timezone, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id) DO UPDATE SET timezone = EXCLUDED.timezone, updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, upsert, key, strings.TrimSpace(timezone)); err != nil {
		return fmt.Errorf("postgres set preference: %w", mapPgError(err))
	}
	return nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return fmt.Errorf("%w: %s", ErrSchemaMissing, pgErr.Message)
	}
	return err
}
