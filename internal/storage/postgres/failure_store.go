// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/fetchpipe/internal/fetch"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "fetch_failures"

// FailureStoreConfig controls the Postgres connection pool used for failure rows.
type FailureStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// FailureStore writes one row per failed URL into Postgres.
type FailureStore struct {
	pool  execCloser
	table string
	now   func() time.Time
}

// NewFailureStore creates a Postgres-backed FailureStore using the provided config.
func NewFailureStore(ctx context.Context, cfg FailureStoreConfig) (*FailureStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("failures.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &FailureStore{pool: pool, table: table, now: utcNow}, nil
}

// NewFailureStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewFailureStoreWithPool(pool execCloser, table string) (*FailureStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &FailureStore{pool: pool, table: table, now: utcNow}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// Close releases the underlying pool resources.
func (s *FailureStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// RecordFailure inserts a failure row for the run.
func (s *FailureStore) RecordFailure(ctx context.Context, runID string, failure fetch.Failure) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("failure store is not configured")
	}
	if failure.URL == "" {
		return fmt.Errorf("failure url is required")
	}
	var errText *string
	if failure.Err != nil {
		msg := failure.Err.Error()
		errText = &msg
	}
	var status *int
	if failure.StatusCode != 0 {
		code := failure.StatusCode
		status = &code
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	url,
	kind,
	status_code,
	attempts,
	error_text,
	failed_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)`, s.table)

	args := []any{
		runID,
		failure.URL,
		string(failure.Kind),
		status,
		failure.Attempt,
		errText,
		s.now(),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert failure: %w", err)
	}
	return nil
}
