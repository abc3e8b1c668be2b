package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"uptimeledger/internal/config"
)

// PostgresStore keeps the ledger as a single row keyed by document name. The body is
// stored as text so the serialised form round-trips byte for byte.
type PostgresStore struct {
	pool     *pgxpool.Pool
	table    string
	document string
}

// NewPostgresStore connects, pings and creates the table if needed.
func NewPostgresStore(ctx context.Context, cfg config.PostgresConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres store: %w: DATABASE_URL is required", ErrNotConfigured)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	// PgBouncer in transaction pooling mode rejects prepared statements.
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = "ledger_documents"
	}
	document := cfg.Document
	if document == "" {
		document = "uptime"
	}
	s := &PostgresStore{
		pool:     pool,
		table:    pgx.Identifier{table}.Sanitize(),
		document: document,
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			name       TEXT PRIMARY KEY,
			body       TEXT NOT NULL,
			version    BIGINT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table))
	if err != nil {
		return fmt.Errorf("create ledger table: %w", err)
	}
	return nil
}

// Read returns the stored row, or nil when it does not exist.
func (s *PostgresStore) Read(ctx context.Context) (*Document, error) {
	var (
		body    string
		version int64
	)
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT body, version FROM %s WHERE name = $1`, s.table),
		s.document,
	).Scan(&body, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger row: %w", err)
	}
	return &Document{Data: []byte(body), Version: strconv.FormatInt(version, 10)}, nil
}

// Write upserts the row. Conditional writes compare the version column.
func (s *PostgresStore) Write(ctx context.Context, data []byte, pre Precondition) (string, error) {
	var (
		version int64
		err     error
	)
	switch {
	case !pre.Enabled:
		err = s.pool.QueryRow(ctx, fmt.Sprintf(`
			INSERT INTO %[1]s (name, body, version, updated_at)
			VALUES ($1, $2, 1, now())
			ON CONFLICT (name) DO UPDATE
			   SET body = EXCLUDED.body,
			       version = %[1]s.version + 1,
			       updated_at = now()
			RETURNING version`, s.table),
			s.document, string(data),
		).Scan(&version)
	case pre.Version == "":
		err = s.pool.QueryRow(ctx, fmt.Sprintf(`
			INSERT INTO %s (name, body, version, updated_at)
			VALUES ($1, $2, 1, now())
			ON CONFLICT (name) DO NOTHING
			RETURNING version`, s.table),
			s.document, string(data),
		).Scan(&version)
	default:
		expected, parseErr := strconv.ParseInt(pre.Version, 10, 64)
		if parseErr != nil {
			return "", fmt.Errorf("%w: bad version %q", ErrVersionConflict, pre.Version)
		}
		err = s.pool.QueryRow(ctx, fmt.Sprintf(`
			UPDATE %s
			   SET body = $2,
			       version = version + 1,
			       updated_at = now()
			 WHERE name = $1 AND version = $3
			RETURNING version`, s.table),
			s.document, string(data), expected,
		).Scan(&version)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrVersionConflict
		}
		return "", fmt.Errorf("write ledger row: %w", err)
	}
	return strconv.FormatInt(version, 10), nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
