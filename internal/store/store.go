// Package store keeps a journal of translation runs in SQLite: one row per
// run and one per batch sent to the provider. The journal is write-mostly
// audit data; translations are never read back from it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/valpere/stringtran/internal"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input_file TEXT NOT NULL,
		output_file TEXT NOT NULL,
		source_lang TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		service TEXT NOT NULL,
		units INTEGER NOT NULL DEFAULT 0,
		unique_texts INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'running',
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	-- run_batches holds one row per provider batch, including failed ones
	CREATE TABLE IF NOT EXISTS run_batches (
		run_id TEXT NOT NULL,
		batch_idx INTEGER NOT NULL,
		items INTEGER NOT NULL,
		chars INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		waited_ms INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, batch_idx),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Run is a row from the runs table.
type Run struct {
	ID          string
	InputFile   string
	OutputFile  string
	SourceLang  string
	TargetLang  string
	Service     string
	Units       int
	UniqueTexts int
	Status      string
	Error       string
	CreatedAt   time.Time
	FinishedAt  *time.Time
}

// Batch is a row from the run_batches table.
type Batch struct {
	Index    int
	Items    int
	Chars    int
	Attempts int
	Waited   time.Duration
	Latency  time.Duration
	Error    string
}

// Stats summarises the journal.
type Stats struct {
	TotalRuns     int
	Completed     int
	Failed        int
	Running       int
	TotalBatches  int
	TotalAttempts int
	TotalChars    int
}

// StartRun inserts a running row for req and returns its ID. A new UUID is
// assigned when req.ID is empty.
func (s *Store) StartRun(ctx context.Context, req internal.RunRequest) (string, error) {
	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := req.Timestamp
	if created.IsZero() {
		created = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_file, output_file, source_lang, target_lang, service, units, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, req.InputFile, req.OutputFile, req.SourceLang, req.TargetLang, req.Service, req.Units, StatusRunning, created)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) RecordBatch(ctx context.Context, runID string, b Batch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_batches (run_id, batch_idx, items, chars, attempts, waited_ms, latency_ms, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, b.Index, b.Items, b.Chars, b.Attempts, b.Waited.Milliseconds(), b.Latency.Milliseconds(), b.Error)
	return err
}

// FinishRun marks the run completed, or failed when runErr is not nil.
func (s *Store) FinishRun(ctx context.Context, runID string, uniqueTexts int, runErr error) error {
	status, msg := StatusCompleted, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, unique_texts = ?, finished_at = ? WHERE id = ?`,
		status, msg, uniqueTexts, time.Now(), runID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

const runColumns = `id, input_file, output_file, source_lang, target_lang, service, units, unique_texts, status, error, created_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var finished sql.NullTime
	if err := row.Scan(&r.ID, &r.InputFile, &r.OutputFile, &r.SourceLang, &r.TargetLang, &r.Service,
		&r.Units, &r.UniqueTexts, &r.Status, &r.Error, &r.CreatedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

// ListRuns returns the most recent runs first. A non-positive limit returns
// every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// GetRun looks a run up by its full ID or a unique ID prefix.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id = ? DESC LIMIT 2`,
		id, likeEscaper.Replace(id)+"%", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("run not found: %s", id)
	case found[0].ID == id, len(found) == 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run ID prefix is ambiguous: %s", id)
	}
}

func (s *Store) ListBatches(ctx context.Context, runID string) ([]Batch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT batch_idx, items, chars, attempts, waited_ms, latency_ms, error FROM run_batches WHERE run_id = ? ORDER BY batch_idx`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		var waitedMs, latencyMs int64
		if err := rows.Scan(&b.Index, &b.Items, &b.Chars, &b.Attempts, &waitedMs, &latencyMs, &b.Error); err != nil {
			return nil, err
		}
		b.Waited = time.Duration(waitedMs) * time.Millisecond
		b.Latency = time.Duration(latencyMs) * time.Millisecond
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Stats returns summary statistics for the journal.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END), 0)
		FROM runs`).Scan(
		&stats.TotalRuns,
		&stats.Completed,
		&stats.Failed,
		&stats.Running,
	)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(attempts), 0), COALESCE(SUM(chars), 0)
		FROM run_batches`).Scan(
		&stats.TotalBatches,
		&stats.TotalAttempts,
		&stats.TotalChars,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// ClearRuns removes every run and batch and returns the number of runs
// deleted.
func (s *Store) ClearRuns(ctx context.Context) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_batches`); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}
