package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"slices"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ahrav/go-covenant/internal/domain"
	"github.com/ahrav/go-covenant/internal/ports"
)

// DefaultTable is the table used when none is configured.
const DefaultTable = "clause_risks"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Errors returned for malformed input.
var (
	ErrInvalidTable   = errors.New("invalid table name")
	ErrHeaderMismatch = errors.New("header does not match clause record columns")
	ErrMalformedRow   = errors.New("malformed row")
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ ports.TabularStore = (*PostgresStore)(nil)

// PostgresStore upserts clause rows keyed by (run_id, clause_id).
type PostgresStore struct {
	db     DB
	table  string
	runID  string
	logger *slog.Logger
	close  func()
}

// OpenPostgres connects to dsn, ensures the table exists and returns a
// store that owns the pool.
func OpenPostgres(ctx context.Context, dsn, table, runID string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, ports.NewStoreError("postgres", "connect", err)
	}

	s, err := NewPostgresStore(pool, table, runID, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.close = pool.Close

	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStore wraps an existing connection. An empty table selects
// DefaultTable.
func NewPostgresStore(db DB, table, runID string, logger *slog.Logger) (*PostgresStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &PostgresStore{db: db, table: table, runID: runID, logger: logger}, nil
}

// Close releases the pool when the store opened it.
func (s *PostgresStore) Close() {
	if s.close != nil {
		s.close()
	}
}

func (s *PostgresStore) ident() string { return pgx.Identifier{s.table}.Sanitize() }

func (s *PostgresStore) createSQL() string {
	return `CREATE TABLE IF NOT EXISTS ` + s.ident() + ` (
	run_id TEXT NOT NULL,
	clause_id INTEGER NOT NULL,
	contract_clause TEXT NOT NULL,
	regulation TEXT NOT NULL,
	risk_level TEXT NOT NULL,
	risk_score TEXT NOT NULL,
	clause_identification TEXT NOT NULL,
	clause_feedback_fix TEXT NOT NULL,
	ai_modified_clause TEXT NOT NULL,
	ai_modified_risk_level TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, clause_id)
)`
}

func (s *PostgresStore) upsertSQL() string {
	return `INSERT INTO ` + s.ident() + ` (
	run_id, clause_id, contract_clause, regulation, risk_level, risk_score,
	clause_identification, clause_feedback_fix, ai_modified_clause, ai_modified_risk_level
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (run_id, clause_id) DO UPDATE SET
	contract_clause = EXCLUDED.contract_clause,
	regulation = EXCLUDED.regulation,
	risk_level = EXCLUDED.risk_level,
	risk_score = EXCLUDED.risk_score,
	clause_identification = EXCLUDED.clause_identification,
	clause_feedback_fix = EXCLUDED.clause_feedback_fix,
	ai_modified_clause = EXCLUDED.ai_modified_clause,
	ai_modified_risk_level = EXCLUDED.ai_modified_risk_level,
	updated_at = now()`
}

// EnsureSchema creates the table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, s.createSQL()); err != nil {
		return ports.NewStoreError("postgres", "create_table", err)
	}
	return nil
}

// UpsertRows writes every row in one transaction. header must be the
// canonical clause record header.
func (s *PostgresStore) UpsertRows(ctx context.Context, header []string, rows [][]string) error {
	if !slices.Equal(header, domain.Header()) {
		return ports.NewStoreError("postgres", "upsert", ErrHeaderMismatch)
	}

	batch := &pgx.Batch{}
	query := s.upsertSQL()
	for i, row := range rows {
		args, err := s.args(row)
		if err != nil {
			return ports.NewStoreError("postgres", "upsert", fmt.Errorf("row %d: %w", i, err))
		}
		batch.Queue(query, args...)
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := s.send(ctx, batch); err != nil {
		return ports.NewStoreError("postgres", "upsert", err)
	}
	s.logger.InfoContext(ctx, "rows upserted", "table", s.table, "run_id", s.runID, "rows", batch.Len())
	return nil
}

func (s *PostgresStore) args(row []string) ([]any, error) {
	if len(row) != len(domain.Header()) {
		return nil, fmt.Errorf("%w: %d columns", ErrMalformedRow, len(row))
	}
	id, err := strconv.Atoi(row[0])
	if err != nil {
		return nil, fmt.Errorf("%w: clause id %q", ErrMalformedRow, row[0])
	}

	args := make([]any, 0, len(row)+1)
	args = append(args, s.runID, id)
	for _, v := range row[1:] {
		args = append(args, v)
	}
	return args, nil
}

func (s *PostgresStore) send(ctx context.Context, batch *pgx.Batch) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	results := tx.SendBatch(ctx, batch)
	for i := range batch.Len() {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to upsert row %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
