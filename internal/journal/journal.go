// Package journal persists batch run history in a local SQLite database.
// The journal is bookkeeping only; skip decisions come from the output
// files on disk, never from here.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ocrkit/pdf2txt/internal/batch"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	source_dir  TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	discovered  INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	succeeded   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	source_path TEXT NOT NULL,
	output_path TEXT NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	bytes       INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS tasks_run_id ON tasks(run_id);
`

type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the journal database at path.
// Use ":memory:" for an ephemeral journal.
func Open(path string, logger *slog.Logger) (*Journal, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// modernc sqlite is in-process; a single connection avoids lock churn
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db, logger: logger}, nil
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// BeginRun inserts a run row and returns its ID.
func (j *Journal) BeginRun(ctx context.Context, sourceDir string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, source_dir, started_at) VALUES (?, ?, ?)`,
		id.String(), sourceDir, time.Now().UTC())
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	j.logger.Debug("journal run started", "run_id", id, "source_dir", sourceDir)
	return id, nil
}

// RecordTask inserts one task row for the run.
func (j *Journal) RecordTask(ctx context.Context, runID uuid.UUID, t batch.Task) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO tasks (id, run_id, source_path, output_path, status, error, bytes, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID.String(), t.Source, t.Output,
		string(t.Status), t.Err, t.Bytes, t.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// FinishRun stamps the run row with its end time and final counts.
func (j *Journal) FinishRun(ctx context.Context, runID uuid.UUID, s batch.Summary) error {
	_, err := j.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, discovered = ?, skipped = ?, succeeded = ?, failed = ?
		 WHERE id = ?`,
		time.Now().UTC(), s.Discovered, s.Skipped, s.Succeeded, s.Failed, runID.String())
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RunSummary reads back the stored counts for a run.
func (j *Journal) RunSummary(ctx context.Context, runID uuid.UUID) (batch.Summary, error) {
	var s batch.Summary
	err := j.db.QueryRowContext(ctx,
		`SELECT discovered, skipped, succeeded, failed FROM runs WHERE id = ?`,
		runID.String()).Scan(&s.Discovered, &s.Skipped, &s.Succeeded, &s.Failed)
	if err != nil {
		return batch.Summary{}, fmt.Errorf("query run: %w", err)
	}
	return s, nil
}

// TaskCount returns the number of task rows recorded for a run.
func (j *Journal) TaskCount(ctx context.Context, runID uuid.UUID) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE run_id = ?`, runID.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tasks: %w", err)
	}
	return n, nil
}
