// Package store keeps the history of pipeline runs in SQLite. It is a record
// of what happened; runs are never resumed from it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-etl-pipeline/internal/model"
)

// ErrNotFound is returned when a run ID is unknown.
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	name TEXT,
	spec TEXT,
	status TEXT,
	error TEXT,
	records_fetched INTEGER DEFAULT 0,
	records_processed INTEGER DEFAULT 0,
	created_at DATETIME,
	updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS run_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	phase TEXT,
	step TEXT,
	error_message TEXT,
	created_at DATETIME
);
CREATE TABLE IF NOT EXISTS run_phases (
	run_id TEXT,
	phase TEXT,
	started_at DATETIME,
	finished_at DATETIME,
	duration_ns INTEGER DEFAULT 0,
	error TEXT,
	PRIMARY KEY (run_id, phase)
);
`

// Store is a SQLite-backed run history.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// Open opens or creates the database at dbPath and ensures the schema.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	// sqlite serializes writers; one connection avoids "database is locked"
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores a new pending run
func (s *Store) SaveRun(ctx context.Context, runID string, spec model.PipelineJobSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encode spec: %w", err)
	}
	now := s.now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, spec, status, error, created_at, updated_at) VALUES (?, ?, ?, ?, '', ?, ?)`,
		runID, spec.Name, string(specJSON), model.StatusPending, now, now)
	return err
}

// UpdateRunStatus sets the status of a run. A non-nil cause is stored as the
// run's error message.
func (s *Store) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.exec(ctx, runID,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		status, msg, s.now(), runID)
}

// UpdateRunCounts stores the record counters of a run
func (s *Store) UpdateRunCounts(ctx context.Context, runID string, counts model.RunCounts) error {
	return s.exec(ctx, runID,
		`UPDATE runs SET records_fetched = ?, records_processed = ?, updated_at = ? WHERE id = ?`,
		counts.RecordsFetched, counts.RecordsProcessed, s.now(), runID)
}

func (s *Store) exec(ctx context.Context, runID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

// SaveRunError records an error for a run
func (s *Store) SaveRunError(ctx context.Context, runID, phase, step string, err error) error {
	if err == nil {
		return nil
	}
	_, e := s.db.ExecContext(ctx,
		`INSERT INTO run_errors (run_id, phase, step, error_message, created_at) VALUES (?, ?, ?, ?, ?)`,
		runID, phase, step, err.Error(), s.now())
	return e
}

// StartPhase records that a phase began.
func (s *Store) StartPhase(ctx context.Context, runID, phase string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_phases (run_id, phase, started_at, finished_at, duration_ns, error) VALUES (?, ?, ?, NULL, 0, '')`,
		runID, phase, s.now())
	return err
}

// FinishPhase records the outcome of a phase.
func (s *Store) FinishPhase(ctx context.Context, runID, phase string, elapsed time.Duration, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE run_phases SET finished_at = ?, duration_ns = ?, error = ? WHERE run_id = ? AND phase = ?`,
		s.now(), int64(elapsed), msg, runID, phase)
	return err
}

// ListRuns returns all runs, newest first
func (s *Store) ListRuns(ctx context.Context) ([]model.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.RunSummary{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun fetches one run with its spec and counters
func (s *Store) GetRun(ctx context.Context, runID string) (model.RunSummary, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return run, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return run, err
}

const runColumns = `id, name, spec, status, error, records_fetched, records_processed, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (model.RunSummary, error) {
	var run model.RunSummary
	var specJSON, status string
	err := row.Scan(&run.ID, &run.Name, &specJSON, &status, &run.Error,
		&run.RecordsFetched, &run.RecordsProcessed, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return run, err
	}
	run.Status = model.RunStatus(status)
	if err := json.Unmarshal([]byte(specJSON), &run.Spec); err != nil {
		return run, fmt.Errorf("decode spec of %s: %w", run.ID, err)
	}
	return run, nil
}

// GetRunErrors returns the errors recorded for a run, oldest first
func (s *Store) GetRunErrors(ctx context.Context, runID string) ([]model.ErrorDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, phase, step, error_message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ErrorDetail{}
	for rows.Next() {
		var d model.ErrorDetail
		if err := rows.Scan(&d.ID, &d.RunID, &d.Phase, &d.Step, &d.Message, &d.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetPhaseProgress returns the phases a run went through, in start order
func (s *Store) GetPhaseProgress(ctx context.Context, runID string) ([]model.PhaseProgress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT phase, started_at, finished_at, duration_ns, error FROM run_phases WHERE run_id = ? ORDER BY started_at, rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.PhaseProgress{}
	for rows.Next() {
		var p model.PhaseProgress
		var finished sql.NullTime
		var ns int64
		if err := rows.Scan(&p.Phase, &p.StartedAt, &finished, &ns, &p.Error); err != nil {
			return nil, err
		}
		if finished.Valid {
			t := finished.Time
			p.FinishedAt = &t
		}
		p.Duration = time.Duration(ns)
		out = append(out, p)
	}
	return out, rows.Err()
}
