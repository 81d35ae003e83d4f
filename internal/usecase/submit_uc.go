package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"startup-analysis-pipeline/internal/domain"
	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/domain/ports/repository"
)

// SubmitUseCase validates analysis submissions and enqueues job attempts.
// Duplicate submissions for a key with a queued or active attempt coalesce
// onto that attempt: the caller gets the existing attempt ID and nothing new
// is enqueued.
type SubmitUseCase struct {
	jobs    repository.AnalysisJobRepository
	tm      repository.TransactionManager
	store   *ContextStore
	catalog Catalog
	log     *zerolog.Logger
}

func NewSubmitUseCase(
	jobs repository.AnalysisJobRepository,
	tm repository.TransactionManager,
	store *ContextStore,
	catalog Catalog,
	logger *zerolog.Logger,
) *SubmitUseCase {
	l := logger.With().Str("component", "SubmitUseCase").Logger()
	return &SubmitUseCase{jobs: jobs, tm: tm, store: store, catalog: catalog, log: &l}
}

func (u *SubmitUseCase) Submit(ctx context.Context, req model.JobRequest) (string, error) {
	if req.JobKey == "" {
		return "", fmt.Errorf("%w: job key is required", domain.ErrInvalidArgument)
	}
	if err := req.Payload.Validate(); err != nil {
		return "", err
	}
	dims := u.catalog.Select(req.Payload)
	if len(dims) == 0 {
		return "", domain.ErrNoDimensions
	}

	var attemptID string
	var coalesced bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		cur, err := u.jobs.FindCurrent(ctx, tx, req.JobKey)
		if err == nil {
			attemptID = cur.ID
			coalesced = true
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		now := time.Now()
		attempt := &model.JobAttempt{
			ID:              ulid.Make().String(),
			JobKey:          req.JobKey,
			Attempt:         1,
			Status:          model.JobStatusQueued,
			Payload:         req.Payload,
			TotalDimensions: len(dims),
			NextRunAt:       now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := u.jobs.Enqueue(ctx, tx, attempt); err != nil {
			return err
		}
		attemptID = attempt.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	if coalesced {
		u.log.Debug().Str("job_key", req.JobKey).Str("attempt_id", attemptID).
			Msg("duplicate submission coalesced")
		return attemptID, nil
	}

	// Index payload text once per logical submission so retried attempts read
	// the same chunks instead of duplicating them.
	for _, in := range []struct{ text, source string }{
		{req.Payload.Profile, "profile"},
		{req.Payload.ScrapedText, "scraped"},
	} {
		if in.text == "" {
			continue
		}
		if _, err := u.store.Index(ctx, req.Payload.SessionID, in.text, in.source); err != nil {
			// Submission stands; the worker still runs with whatever context exists.
			u.log.Error().Err(err).Str("job_key", req.JobKey).Str("source", in.source).
				Msg("submission-time indexing failed")
		}
	}

	u.log.Info().Str("job_key", req.JobKey).Str("attempt_id", attemptID).
		Int("dimensions", len(dims)).Str("mode", string(req.Payload.Mode)).Msg("job enqueued")
	return attemptID, nil
}

// Requeue schedules a fresh attempt for a failed job. Used by the admin API.
func (u *SubmitUseCase) Requeue(ctx context.Context, jobKey string) (string, error) {
	latest, err := u.jobs.FindLatest(ctx, jobKey)
	if err != nil {
		return "", err
	}
	if latest.Status != model.JobStatusFailed {
		return "", domain.ErrJobNotRequeueable
	}

	var attemptID string
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if cur, err := u.jobs.FindCurrent(ctx, tx, jobKey); err == nil {
			attemptID = cur.ID
			return nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		now := time.Now()
		attempt := &model.JobAttempt{
			ID:              ulid.Make().String(),
			JobKey:          jobKey,
			Attempt:         latest.Attempt + 1,
			Status:          model.JobStatusQueued,
			Payload:         latest.Payload,
			TotalDimensions: latest.TotalDimensions,
			NextRunAt:       now,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := u.jobs.Enqueue(ctx, tx, attempt); err != nil {
			return err
		}
		attemptID = attempt.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	u.log.Info().Str("job_key", jobKey).Str("attempt_id", attemptID).Msg("job requeued")
	return attemptID, nil
}
