// Package curated persists the manually curated record set keyed by id.
// By using an interface, we decouple the application from a specific database
// implementation, allowing for easier testing and flexibility in the future.
package curated

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lareunion-tech/startup-matcher/internal/directory"
)

// Provider is the common interface for the curated-records layer. The store
// is append-only: rows already present are never overwritten by crawl output.
type Provider interface {
	// Merge adds crawl records whose ids are not yet curated. It returns the
	// number of newly added rows.
	Merge(ctx context.Context, records []directory.StartupRecord) (int, error)

	// List returns every curated record in insertion order.
	List(ctx context.Context) ([]directory.StartupRecord, error)

	// Close terminates the connection and releases any resources.
	Close()
}

// NoOpProvider is used when no database is configured; the service then keeps
// curated state only in crawl snapshots.
type NoOpProvider struct{}

// Merge for NoOpProvider does nothing.
func (NoOpProvider) Merge(_ context.Context, _ []directory.StartupRecord) (int, error) {
	return 0, nil
}

// List for NoOpProvider returns no records.
func (NoOpProvider) List(_ context.Context) ([]directory.StartupRecord, error) {
	return nil, nil
}

// Close for NoOpProvider does nothing.
func (NoOpProvider) Close() {}

// DB is the subset of pgxpool.Pool the store needs; pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Provider on PostgreSQL.
type PostgresStore struct {
	db     DB
	logger *zap.Logger
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS curated_startups (
    id TEXT PRIMARY KEY,
    record JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const insertSQL = `
INSERT INTO curated_startups (id, record)
VALUES ($1, $2)
ON CONFLICT (id) DO NOTHING`

const listSQL = `SELECT record FROM curated_startups ORDER BY created_at`

// NewPostgres connects to dsn, verifies the connection, and ensures the
// curated table exists.
func NewPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := &PostgresStore{db: pool, logger: logger}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure curated table: %w", err)
	}
	return store, nil
}

// NewPostgresWithDB wraps an existing connection; used by tests.
func NewPostgresWithDB(db DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Merge inserts records not yet present. Existing rows win: curated data is
// never clobbered by a recrawl.
func (s *PostgresStore) Merge(ctx context.Context, records []directory.StartupRecord) (int, error) {
	added := 0
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return added, fmt.Errorf("marshal record %s: %w", rec.ID, err)
		}
		tag, err := s.db.Exec(ctx, insertSQL, rec.ID, payload)
		if err != nil {
			return added, fmt.Errorf("insert record %s: %w", rec.ID, err)
		}
		added += int(tag.RowsAffected())
	}
	if added > 0 {
		s.logger.Info("curated store updated", zap.Int("added", added))
	}
	return added, nil
}

// List returns all curated records.
func (s *PostgresStore) List(ctx context.Context) ([]directory.StartupRecord, error) {
	rows, err := s.db.Query(ctx, listSQL)
	if err != nil {
		return nil, fmt.Errorf("query curated records: %w", err)
	}
	defer rows.Close()

	var records []directory.StartupRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan curated record: %w", err)
		}
		var rec directory.StartupRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal curated record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate curated records: %w", err)
	}
	return records, nil
}

// Close shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}
