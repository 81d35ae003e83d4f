package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"startup-analysis-pipeline/internal/domain"
	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/domain/ports/repository"
)

var _ repository.AnalysisJobRepository = (*jobRepo)(nil)

// jobRepo persists job attempts.
//
// Expected schema:
//
//	CREATE TABLE analysis_jobs (
//	    id          TEXT PRIMARY KEY,
//	    job_key     TEXT NOT NULL,
//	    attempt     INT NOT NULL,
//	    status      TEXT NOT NULL,
//	    payload     JSONB NOT NULL,
//	    total_dims  INT NOT NULL,
//	    last_error  TEXT NOT NULL DEFAULT '',
//	    next_run_at TIMESTAMPTZ NOT NULL,
//	    started_at  TIMESTAMPTZ,
//	    finished_at TIMESTAMPTZ,
//	    created_at  TIMESTAMPTZ NOT NULL,
//	    updated_at  TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX analysis_jobs_due ON analysis_jobs (status, next_run_at);
//	CREATE INDEX analysis_jobs_key ON analysis_jobs (job_key, created_at DESC);
type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

const jobColumns = `id, job_key, attempt, status, payload, total_dims, last_error, next_run_at, started_at, finished_at, created_at, updated_at`

func (r *jobRepo) Enqueue(ctx context.Context, tx repository.Tx, a *model.JobAttempt) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO analysis_jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`
	_, err = execSQL(ctx, r.pool, tx, q,
		a.ID, a.JobKey, a.Attempt, a.Status, payload, a.TotalDimensions,
		a.LastError, a.NextRunAt, a.StartedAt, a.FinishedAt, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, a *model.JobAttempt) error {
	a.UpdatedAt = time.Now()
	const q = `
UPDATE analysis_jobs SET
  status = $2, attempt = $3, last_error = $4, next_run_at = $5,
  started_at = $6, finished_at = $7, updated_at = $8
WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, tx, q,
		a.ID, a.Status, a.Attempt, a.LastError, a.NextRunAt, a.StartedAt, a.FinishedAt, a.UpdatedAt)
	return err
}

func (r *jobRepo) FindCurrent(ctx context.Context, tx repository.Tx, jobKey string) (*model.JobAttempt, error) {
	// FOR UPDATE serializes concurrent submissions for the same key; the
	// loser of the race sees the winner's row and coalesces onto it.
	const q = `
SELECT ` + jobColumns + `
FROM analysis_jobs
WHERE job_key = $1 AND status IN ('queued', 'active')
ORDER BY created_at DESC
LIMIT 1
FOR UPDATE;`
	row, err := pickRow(ctx, r.pool, tx, q, jobKey)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) FindLatest(ctx context.Context, jobKey string) (*model.JobAttempt, error) {
	const q = `
SELECT ` + jobColumns + `
FROM analysis_jobs
WHERE job_key = $1
ORDER BY created_at DESC, attempt DESC
LIMIT 1;`
	row, err := pickRow(ctx, r.pool, nil, q, jobKey)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) FetchDueAndMarkActive(ctx context.Context) (*model.JobAttempt, error) {
	var claimed *model.JobAttempt

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Skip keys that already have an active attempt: this query is the
		// at-most-one-active-worker-per-key guarantee.
		const q = `
SELECT ` + jobColumns + `
FROM analysis_jobs j
WHERE j.status = 'queued'
  AND j.next_run_at <= now()
  AND NOT EXISTS (
        SELECT 1 FROM analysis_jobs a
        WHERE a.job_key = j.job_key AND a.status = 'active')
ORDER BY j.next_run_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`
		row, err := pickRow(ctx, r.pool, tx, q)
		if err != nil {
			return err
		}
		job, err := scanJob(row)
		if err != nil {
			return err
		}

		now := time.Now()
		job.Status = model.JobStatusActive
		job.StartedAt = &now
		if err := r.Save(ctx, tx, job); err != nil {
			return err
		}
		claimed = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func scanJob(row pgx.Row) (*model.JobAttempt, error) {
	var (
		a       model.JobAttempt
		status  string
		payload []byte
	)
	err := row.Scan(
		&a.ID, &a.JobKey, &a.Attempt, &status, &payload, &a.TotalDimensions,
		&a.LastError, &a.NextRunAt, &a.StartedAt, &a.FinishedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	a.Status = model.JobStatus(status)
	if err := json.Unmarshal(payload, &a.Payload); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return &a, nil
}
