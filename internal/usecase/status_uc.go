package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/domain/ports/repository"
)

// StatusUseCase assembles durable progress snapshots. This is the read side
// of the result-persistence contract: the progress endpoint's polling
// fallback converges late or disconnected viewers through it.
type StatusUseCase struct {
	jobs    repository.AnalysisJobRepository
	results repository.ResultRepository
	log     *zerolog.Logger
}

func NewStatusUseCase(
	jobs repository.AnalysisJobRepository,
	results repository.ResultRepository,
	logger *zerolog.Logger,
) *StatusUseCase {
	l := logger.With().Str("component", "StatusUseCase").Logger()
	return &StatusUseCase{jobs: jobs, results: results, log: &l}
}

func (u *StatusUseCase) Snapshot(ctx context.Context, jobKey string) (model.ProgressSnapshot, error) {
	attempt, err := u.jobs.FindLatest(ctx, jobKey)
	if err != nil {
		return model.ProgressSnapshot{}, err
	}
	completed, err := u.results.CompletedDimensions(ctx, jobKey)
	if err != nil {
		return model.ProgressSnapshot{}, fmt.Errorf("completed dimensions: %w", err)
	}
	current := len(completed)
	if attempt.Status == model.JobStatusCompleted && current < attempt.TotalDimensions {
		// The attempt record is authoritative once terminal; result rows may
		// lag behind a replica read.
		current = attempt.TotalDimensions
	}
	return model.ProgressSnapshot{
		JobKey:    jobKey,
		Status:    attempt.Status,
		Current:   current,
		Total:     attempt.TotalDimensions,
		Completed: completed,
		LastError: attempt.LastError,
	}, nil
}
