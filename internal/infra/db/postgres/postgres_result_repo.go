package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/domain/ports/repository"
)

var _ repository.ResultRepository = (*resultRepo)(nil)

// resultRepo persists dimension results. The upsert on (job_key, dimension)
// is what makes the worker's at-least-once writes idempotent.
//
// Expected schema:
//
//	CREATE TABLE dimension_results (
//	    job_key    TEXT NOT NULL,
//	    session_id TEXT NOT NULL,
//	    dimension  TEXT NOT NULL,
//	    summary    TEXT NOT NULL,
//	    tokens     INT NOT NULL DEFAULT 0,
//	    created_at TIMESTAMPTZ NOT NULL,
//	    PRIMARY KEY (job_key, dimension)
//	);
type resultRepo struct {
	pool *pgxpool.Pool
}

func NewResultRepo(pool *pgxpool.Pool) *resultRepo {
	return &resultRepo{pool: pool}
}

func (r *resultRepo) SaveDimension(ctx context.Context, tx repository.Tx, res *model.DimensionResult) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	const q = `
INSERT INTO dimension_results (job_key, session_id, dimension, summary, tokens, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (job_key, dimension) DO UPDATE SET
  summary = EXCLUDED.summary,
  tokens = EXCLUDED.tokens,
  created_at = EXCLUDED.created_at;`
	_, err := execSQL(ctx, r.pool, tx, q,
		res.JobKey, res.SessionID, res.Dimension, res.Summary, res.Tokens, res.CreatedAt)
	return err
}

func (r *resultRepo) CompletedDimensions(ctx context.Context, jobKey string) ([]string, error) {
	const q = `
SELECT dimension FROM dimension_results
WHERE job_key = $1
ORDER BY created_at, dimension;`
	rows, err := queryRows(ctx, r.pool, nil, q, jobKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, translateErr(err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
