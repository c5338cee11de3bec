// Package ledger keeps a local history of batch conversion runs in SQLite.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iksnae/vault-agent/internal"
	"github.com/iksnae/vault-agent/internal/convert"
)

var (
	// ErrNotFound is returned when no run matches an id
	ErrNotFound = errors.New("run not found")
	// ErrAmbiguous is returned when an id prefix matches several runs
	ErrAmbiguous = errors.New("run id prefix is ambiguous")
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	format      TEXT NOT NULL,
	destination TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	canceled    INTEGER NOT NULL DEFAULT 0,
	succeeded   INTEGER NOT NULL,
	failed      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
	run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position         INTEGER NOT NULL,
	source_path      TEXT NOT NULL,
	output_format    TEXT NOT NULL,
	destination_path TEXT,
	status           TEXT NOT NULL,
	error_detail     TEXT,
	bytes            INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS runs_started_at ON runs(started_at DESC);
`

// RunSummary is one row of the run history
type RunSummary struct {
	ID          string
	Format      convert.Format
	Destination string
	StartedAt   time.Time
	FinishedAt  time.Time
	Canceled    bool
	Succeeded   int
	Failed      int
}

// Store is the run history
type Store struct {
	db *sql.DB
}

// Open opens the ledger file at path, creating it if needed
func Open(path string) (*Store, error) {
	db, err := internal.OpenDatabase(path)
	if err != nil {
		return nil, err
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenReadOnly opens an existing ledger without touching the schema
func OpenReadOnly(path string) (*Store, error) {
	db, err := internal.OpenDatabaseReadOnly(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// New wraps an open database and creates the schema
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records a finished batch and all of its results
func (s *Store) SaveRun(ctx context.Context, r convert.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, format, destination, started_at, finished_at, canceled, succeeded, failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Format), r.Destination,
		r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
		r.Canceled, r.Succeeded, r.Failed)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, position, source_path, output_format, destination_path, status, error_detail, bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, res := range r.Results {
		if _, err := stmt.ExecContext(ctx, r.ID, i, res.SourcePath, string(res.OutputFormat),
			nullString(res.DestinationPath), string(res.Status), nullString(res.ErrorDetail), res.Bytes); err != nil {
			return fmt.Errorf("insert result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, format, destination, started_at, finished_at, canceled, succeeded, failed
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return runs, nil
}

// GetRun loads a run by id or unique id prefix
func (s *Store) GetRun(ctx context.Context, id string) (*convert.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, format, destination, started_at, finished_at, canceled, succeeded, failed
		 FROM runs WHERE substr(id, 1, length(?)) = ? ORDER BY id = ? DESC LIMIT 2`, id, id, id)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	var matches []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	case len(matches) > 1 && matches[0].ID != id:
		return nil, fmt.Errorf("%s: %w", id, ErrAmbiguous)
	}
	run := matches[0]

	report := &convert.Report{
		ID:          run.ID,
		Format:      run.Format,
		Destination: run.Destination,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		Canceled:    run.Canceled,
		Succeeded:   run.Succeeded,
		Failed:      run.Failed,
	}

	resRows, err := s.db.QueryContext(ctx,
		`SELECT source_path, output_format, destination_path, status, error_detail, bytes
		 FROM results WHERE run_id = ? ORDER BY position`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer resRows.Close()

	for resRows.Next() {
		var res convert.Result
		var format, status string
		var dest, detail sql.NullString
		if err := resRows.Scan(&res.SourcePath, &format, &dest, &status, &detail, &res.Bytes); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		res.OutputFormat = convert.Format(format)
		res.Status = convert.Status(status)
		res.DestinationPath = dest.String
		res.ErrorDetail = detail.String
		report.Results = append(report.Results, res)
	}
	if err := resRows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return report, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunSummary, error) {
	var run RunSummary
	var format string
	var started, finished int64
	if err := row.Scan(&run.ID, &format, &run.Destination, &started, &finished, &run.Canceled, &run.Succeeded, &run.Failed); err != nil {
		return RunSummary{}, fmt.Errorf("scan failed: %w", err)
	}
	run.Format = convert.Format(format)
	run.StartedAt = time.UnixMilli(started)
	run.FinishedAt = time.UnixMilli(finished)
	return run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
