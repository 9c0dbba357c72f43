package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kris-hansen/analyst/utils/config"
	"github.com/kris-hansen/analyst/utils/session"
)

const createSessionsTable = `CREATE TABLE IF NOT EXISTS analyst_sessions (
	id         TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresStore keeps sessions as JSONB rows. Rows not updated within the TTL
// are treated as missing and purged when listing.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
}

// NewPostgresStore connects with dsn and creates the sessions table if needed
func NewPostgresStore(ctx context.Context, dsn string, ttl time.Duration) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, createSessionsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	config.DebugLog("[Storage] Connected to Postgres session store")
	return &PostgresStore{db: db, ttl: ttl}, nil
}

// cutoff is the oldest updated_at still considered live
func (p *PostgresStore) cutoff() time.Time {
	if p.ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(-p.ttl)
}

// Get loads one session
func (p *PostgresStore) Get(ctx context.Context, id string) (*session.Session, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM analyst_sessions WHERE id = $1 AND updated_at >= $2`,
		id, p.cutoff()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return decode(id, data)
}

// Save upserts the session
func (p *PostgresStore) Save(ctx context.Context, s *session.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO analyst_sessions (id, data, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`,
		s.ID, data, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", s.ID, err)
	}
	return nil
}

// Delete removes one session
func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM analyst_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

// List purges expired rows and returns the rest, most recently updated first
func (p *PostgresStore) List(ctx context.Context) ([]session.Summary, error) {
	if p.ttl > 0 {
		if _, err := p.db.ExecContext(ctx, `DELETE FROM analyst_sessions WHERE updated_at < $1`, p.cutoff()); err != nil {
			return nil, fmt.Errorf("failed to purge expired sessions: %w", err)
		}
	}

	rows, err := p.db.QueryContext(ctx, `SELECT id, data FROM analyst_sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	out := []session.Summary{}
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s, err := decode(id, data)
		if err != nil {
			return nil, err
		}
		out = append(out, s.Summarize())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	sortSummaries(out)
	return out, nil
}

// Close closes the database connection pool
func (p *PostgresStore) Close() error {
	return p.db.Close()
}
