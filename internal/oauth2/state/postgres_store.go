package state

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	migrations "github.com/dropDatabas3/oauth2client/migrations/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps records in the oauth2_authorization_request_state
// table. Take is a single DELETE ... RETURNING.
type PostgresStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgresStore(pool *pgxpool.Pool, now func() time.Time) *PostgresStore {
	if now == nil {
		now = time.Now
	}
	return &PostgresStore{pool: pool, now: now}
}

// EnsureSchema applies the embedded migrations in lexical order. They are
// idempotent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	files, err := fs.Glob(migrations.StateFS, migrations.StateDir+"/*.up.sql")
	if err != nil {
		return fmt.Errorf("state: list migrations: %w", err)
	}
	sort.Strings(files)
	for _, f := range files {
		sql, err := fs.ReadFile(migrations.StateFS, f)
		if err != nil {
			return fmt.Errorf("state: read %s: %w", f, err)
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("state: apply %s: %w", f, err)
		}
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, key string, rec Record, ttl time.Duration) error {
	if ttl > 0 {
		rec.ExpiresAt = rec.CreatedAt.Add(ttl)
	}
	const q = `
INSERT INTO oauth2_authorization_request_state (session_key, state, configuration_id, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (session_key) DO UPDATE
   SET state = EXCLUDED.state,
       configuration_id = EXCLUDED.configuration_id,
       created_at = EXCLUDED.created_at,
       expires_at = EXCLUDED.expires_at`
	if _, err := s.pool.Exec(ctx, q, key, rec.State, rec.ConfigurationID, rec.CreatedAt, rec.ExpiresAt); err != nil {
		return fmt.Errorf("state: save: %w", err)
	}
	return nil
}

func (s *PostgresStore) Take(ctx context.Context, key string) (Record, error) {
	const q = `
DELETE FROM oauth2_authorization_request_state
 WHERE session_key = $1
RETURNING state, configuration_id, created_at, expires_at`
	var rec Record
	err := s.pool.QueryRow(ctx, q, key).Scan(&rec.State, &rec.ConfigurationID, &rec.CreatedAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("state: take: %w", err)
	}
	if rec.Expired(s.now()) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Prune deletes expired records and returns how many were removed.
func (s *PostgresStore) Prune(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM oauth2_authorization_request_state WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("state: prune: %w", err)
	}
	return tag.RowsAffected(), nil
}
