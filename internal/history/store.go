// Package history persists chain runs and step outcomes in SQLite so past
// runs can be inspected from the CLI.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/projops/projops/internal/scheduler"
)

// Run is one recorded chain execution.
type Run struct {
	ID         string
	Target     string
	StartedAt  time.Time
	FinishedAt time.Time
	Success    bool
	Steps      []Step
}

// Step is one task outcome within a run.
type Step struct {
	Task     string
	Status   scheduler.StepStatus
	ExitCode int
	Duration time.Duration
	Error    string
}

// Store records runs in SQLite. It implements scheduler.Recorder.
type Store struct {
	db *sql.DB
}

// Open creates a store at dbPath, creating parent directories and the schema
// as needed. WAL mode keeps concurrent readers from blocking the recorder.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	db.SetMaxOpenConns(2)

	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// OpenMemory creates an in-memory store for testing. A shared cache lets
// multiple connections see the same database; the random name keeps separate
// stores in one process isolated from each other.
func OpenMemory(ctx context.Context) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	db.SetMaxOpenConns(2)

	store := &Store{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		success INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS run_steps (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		task TEXT NOT NULL,
		status INTEGER NOT NULL,
		exit_code INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_run_steps_run_id ON run_steps(run_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// BeginRun inserts a new run row and returns its id.
func (s *Store) BeginRun(ctx context.Context, target string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, target, started_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
	`, id, target)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// RecordStep appends one step outcome to a run.
func (s *Store) RecordStep(ctx context.Context, runID, task string, status scheduler.StepStatus, exitCode int, duration time.Duration, stepErr error) error {
	errStr := ""
	if stepErr != nil {
		errStr = stepErr.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_steps (run_id, task, status, exit_code, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, task, int(status), exitCode, duration.Milliseconds(), errStr)
	if err != nil {
		return fmt.Errorf("failed to insert step: %w", err)
	}
	return nil
}

// FinishRun stamps the run's end time and outcome.
func (s *Store) FinishRun(ctx context.Context, runID string, success bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET finished_at = CURRENT_TIMESTAMP, success = ?
		WHERE id = ?
	`, boolToInt(success), runID)
	if err != nil {
		return fmt.Errorf("failed to finalize run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// Recent returns the most recent runs with their steps, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target, started_at, COALESCE(finished_at, started_at), success
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var success int
		if err := rows.Scan(&run.ID, &run.Target, &run.StartedAt, &run.FinishedAt, &success); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Success = success != 0
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, run := range runs {
		steps, err := s.stepsForRun(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		run.Steps = steps
	}
	return runs, nil
}

func (s *Store) stepsForRun(ctx context.Context, runID string) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task, status, exit_code, duration_ms, COALESCE(error, '')
		FROM run_steps
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var st Step
		var status int
		var durationMS int64
		if err := rows.Scan(&st.Task, &status, &st.ExitCode, &durationMS, &st.Error); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		st.Status = scheduler.StepStatus(status)
		st.Duration = time.Duration(durationMS) * time.Millisecond
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
