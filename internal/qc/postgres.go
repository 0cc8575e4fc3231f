package qc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the qc_cases table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS qc_cases (
    id         TEXT PRIMARY KEY,
    created_at TIMESTAMPTZ NOT NULL,
    status     TEXT NOT NULL,
    record     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_qc_cases_status ON qc_cases(status);
CREATE INDEX IF NOT EXISTS idx_qc_cases_created_at ON qc_cases(created_at);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [CaseStore] backed by a PostgreSQL database. The full
// case record is stored as JSONB alongside the columns the queue filters and
// sorts on.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ CaseStore = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// qc_cases table and indexes if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("qc: migrate: %w", err)
	}
	return nil
}

// Create implements CaseStore.
func (s *PostgresStore) Create(ctx context.Context, c *Case) error {
	record, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("qc: marshal case %q: %w", c.ID, err)
	}

	const query = `
		INSERT INTO qc_cases (id, created_at, status, record)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.db.Exec(ctx, query, c.ID, c.CreatedAt, string(c.Status), record); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("qc: case %q: %w", c.ID, ErrDuplicateID)
		}
		return fmt.Errorf("qc: create case %q: %w", c.ID, err)
	}
	return nil
}

// Put implements CaseStore.
func (s *PostgresStore) Put(ctx context.Context, c *Case) error {
	record, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("qc: marshal case %q: %w", c.ID, err)
	}

	const query = `
		UPDATE qc_cases SET status = $2, record = $3
		WHERE id = $1`

	tag, err := s.db.Exec(ctx, query, c.ID, string(c.Status), record)
	if err != nil {
		return fmt.Errorf("qc: update case %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("qc: case %q: %w", c.ID, ErrNotFound)
	}
	return nil
}

// Get implements CaseStore.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Case, error) {
	const query = `SELECT record FROM qc_cases WHERE id = $1`

	var record []byte
	if err := s.db.QueryRow(ctx, query, id).Scan(&record); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("qc: case %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("qc: get case %q: %w", id, err)
	}
	return decodeRecord(id, record)
}

// List implements CaseStore.
func (s *PostgresStore) List(ctx context.Context) ([]*Case, error) {
	const query = `SELECT id, record FROM qc_cases ORDER BY created_at ASC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("qc: list cases: %w", err)
	}
	defer rows.Close()

	var cases []*Case
	for rows.Next() {
		var id string
		var record []byte
		if err := rows.Scan(&id, &record); err != nil {
			return nil, fmt.Errorf("qc: scan case row: %w", err)
		}
		c, err := decodeRecord(id, record)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("qc: list cases: %w", err)
	}
	return cases, nil
}

func decodeRecord(id string, record []byte) (*Case, error) {
	var c Case
	if err := json.Unmarshal(record, &c); err != nil {
		return nil, fmt.Errorf("qc: decode case %q: %w", id, err)
	}
	// TIMESTAMPTZ round-trips through JSON as RFC 3339 already; normalise
	// to UTC for stable comparisons.
	c.CreatedAt = c.CreatedAt.UTC()
	if c.ProcessedAt != nil {
		t := c.ProcessedAt.UTC()
		c.ProcessedAt = &t
	}
	return &c, nil
}

// isDuplicateKeyError reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
