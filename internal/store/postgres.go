package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const maxConflictRetries = 3

// PoolConfig holds the database configuration parameters.
type PoolConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewPool creates a new PostgreSQL connection pool with the given configuration.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	// Configure connection pool
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// PostgresStore keeps documents as JSONB rows in finearr.documents. Each
// Update locks the row, then replaces it only if its version is unchanged.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Read implements Store.
func (s *PostgresStore) Read(ctx context.Context, name string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRow(ctx,
		`SELECT body FROM finearr.documents WHERE name = $1`, name,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapError(err, "read document "+name)
	}
	return body, nil
}

// Update implements Store. A lost compare-and-swap is retried a bounded
// number of times before ErrVersionConflict is returned.
func (s *PostgresStore) Update(ctx context.Context, name string, fn MutateFunc) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.updateOnce(ctx, name, fn)
		if !IsVersionConflict(err) {
			return err
		}
	}
	return err
}

func (s *PostgresStore) updateOnce(ctx context.Context, name string, fn MutateFunc) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return WrapError(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var (
		body    []byte
		version int64
		exists  = true
	)
	err = tx.QueryRow(ctx,
		`SELECT body, version FROM finearr.documents WHERE name = $1 FOR UPDATE`, name,
	).Scan(&body, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		exists = false
	} else if err != nil {
		return WrapError(err, "lock document "+name)
	}

	next, err := fn(body)
	if err != nil {
		return err
	}

	if exists {
		tag, err := tx.Exec(ctx, `
			UPDATE finearr.documents
			SET body = $2, version = version + 1, updated_at = NOW()
			WHERE name = $1 AND version = $3
		`, name, next, version)
		if err != nil {
			return WrapError(err, "update document "+name)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update document %s: %w", name, ErrVersionConflict)
		}
	} else {
		tag, err := tx.Exec(ctx, `
			INSERT INTO finearr.documents (name, body, version)
			VALUES ($1, $2, 1)
			ON CONFLICT (name) DO NOTHING
		`, name, next)
		if err != nil {
			return WrapError(err, "insert document "+name)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("insert document %s: %w", name, ErrVersionConflict)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return WrapError(err, "commit document "+name)
	}
	return nil
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		s.db.Close()
	}
	return nil
}
