package repository

import (
	"context"

	"startup-analysis-pipeline/internal/domain/model"
)

// AnalysisJobRepository owns JobAttempt lifecycle records.
//
// FetchDueAndMarkActive is the queue's claim operation: it atomically selects
// the oldest queued attempt whose NextRunAt has passed and whose JobKey has
// no active attempt, marks it active, and returns it. Returns
// domain.ErrNotFound when nothing is due. This is the operation that enforces
// at-most-one-active-worker-per-key.
type AnalysisJobRepository interface {
	Enqueue(ctx context.Context, tx Tx, attempt *model.JobAttempt) error
	Save(ctx context.Context, tx Tx, attempt *model.JobAttempt) error
	// FindCurrent returns the queued or active attempt for jobKey, if any.
	// Callers coalescing duplicate submissions run it inside a transaction.
	FindCurrent(ctx context.Context, tx Tx, jobKey string) (*model.JobAttempt, error)
	FindLatest(ctx context.Context, jobKey string) (*model.JobAttempt, error)
	FetchDueAndMarkActive(ctx context.Context) (*model.JobAttempt, error)
}
