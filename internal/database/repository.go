package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/therealutkarshpriyadarshi/liturgia/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS batch_runs (
	id           TEXT PRIMARY KEY,
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL,
	total_jobs   INTEGER NOT NULL,
	failed_jobs  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS job_records (
	run_id       TEXT NOT NULL REFERENCES batch_runs(id) ON DELETE CASCADE,
	position     INTEGER NOT NULL,
	job_id       TEXT NOT NULL,
	job_name     TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL,
	failed_stage TEXT NOT NULL DEFAULT '',
	error        TEXT NOT NULL DEFAULT '',
	output_name  TEXT NOT NULL DEFAULT '',
	entries      INTEGER NOT NULL DEFAULT 0,
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_job_records_job_id ON job_records(job_id);
CREATE INDEX IF NOT EXISTS idx_batch_runs_started_at ON batch_runs(started_at DESC);
`

// ErrRunNotFound is returned when a run id is unknown
var ErrRunNotFound = errors.New("batch run not found")

// Repository persists batch run history
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the history tables if missing
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SaveRun stores a run and its job records in one transaction
func (r *Repository) SaveRun(ctx context.Context, run *models.BatchRun) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO batch_runs (id, started_at, completed_at, total_jobs, failed_jobs)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET completed_at = EXCLUDED.completed_at, total_jobs = EXCLUDED.total_jobs, failed_jobs = EXCLUDED.failed_jobs
	`, run.ID, run.StartedAt, run.CompletedAt, len(run.Records), run.Failed())
	if err != nil {
		return fmt.Errorf("failed to save batch run: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM job_records WHERE run_id = $1`, run.ID); err != nil {
		return fmt.Errorf("failed to clear job records: %w", err)
	}

	batch := &pgx.Batch{}
	for i, rec := range run.Records {
		batch.Queue(`
			INSERT INTO job_records (run_id, position, job_id, job_name, state, failed_stage, error,
			                         output_name, entries, started_at, completed_at, duration_ms)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, recordArgs(run.ID, i, rec)...)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save job records: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch run: %w", err)
	}
	return nil
}

func recordArgs(runID string, position int, rec models.JobRecord) []interface{} {
	return []interface{}{
		runID, position, rec.JobID, rec.JobName, string(rec.State), string(rec.FailedStage), rec.Error,
		rec.OutputName, rec.Entries, rec.StartedAt, rec.CompletedAt, rec.Duration.Milliseconds(),
	}
}

// GetRun loads one run with its records in processing order
func (r *Repository) GetRun(ctx context.Context, id string) (*models.BatchRun, error) {
	run := &models.BatchRun{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, started_at, completed_at FROM batch_runs WHERE id = $1
	`, id).Scan(&run.ID, &run.StartedAt, &run.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch run: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT job_id, job_name, state, failed_stage, error, output_name, entries,
		       started_at, completed_at, duration_ms
		FROM job_records
		WHERE run_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get job records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec         models.JobRecord
			state       string
			failedStage string
			durationMs  int64
		)
		if err := rows.Scan(&rec.JobID, &rec.JobName, &state, &failedStage, &rec.Error, &rec.OutputName,
			&rec.Entries, &rec.StartedAt, &rec.CompletedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan job record: %w", err)
		}
		rec.RunID = id
		rec.State = models.JobState(state)
		rec.FailedStage = models.JobState(failedStage)
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		run.Records = append(run.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read job records: %w", err)
	}

	return run, nil
}

// RunSummary is one row of the run history listing
type RunSummary struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	TotalJobs   int       `json:"total_jobs"`
	FailedJobs  int       `json:"failed_jobs"`
}

// ListRecentRuns returns the newest runs first
func (r *Repository) ListRecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, started_at, completed_at, total_jobs, failed_jobs
		FROM batch_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batch runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.CompletedAt, &s.TotalJobs, &s.FailedJobs); err != nil {
			return nil, fmt.Errorf("failed to scan batch run: %w", err)
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}
