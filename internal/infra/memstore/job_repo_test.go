//go:build !integration

package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"startup-analysis-pipeline/internal/domain"
	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/infra/memstore"
)

func queuedAttempt(id, jobKey string, nextRun time.Time) *model.JobAttempt {
	return &model.JobAttempt{
		ID: id, JobKey: jobKey, Attempt: 1,
		Status:    model.JobStatusQueued,
		Payload:   model.AnalysisPayload{SessionID: "s"},
		NextRunAt: nextRun,
		CreatedAt: time.Now(),
	}
}

func TestJobRepo_ClaimHonorsNextRunAt(t *testing.T) {
	ctx := context.Background()
	repo := memstore.NewJobRepo()

	if err := repo.Enqueue(ctx, nil, queuedAttempt("a1", "job-1", time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := repo.FetchDueAndMarkActive(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("future job must not be claimable, got %v", err)
	}

	if err := repo.Enqueue(ctx, nil, queuedAttempt("a2", "job-2", time.Now().Add(-time.Minute))); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got, err := repo.FetchDueAndMarkActive(ctx)
	if err != nil {
		t.Fatalf("FetchDueAndMarkActive: %v", err)
	}
	if got.ID != "a2" || got.Status != model.JobStatusActive || got.StartedAt == nil {
		t.Fatalf("claimed: %+v", got)
	}
}

func TestJobRepo_ClaimSkipsKeysWithActiveAttempt(t *testing.T) {
	ctx := context.Background()
	repo := memstore.NewJobRepo()

	past := time.Now().Add(-time.Minute)
	if err := repo.Enqueue(ctx, nil, queuedAttempt("a1", "job-1", past)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := repo.Enqueue(ctx, nil, queuedAttempt("a2", "job-1", past)); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	first, err := repo.FetchDueAndMarkActive(ctx)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	// The second queued attempt shares the key and must wait.
	if _, err := repo.FetchDueAndMarkActive(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second claim on an active key must miss, got %v", err)
	}

	// Finishing the first attempt releases the key.
	first.Status = model.JobStatusCompleted
	if err := repo.Save(ctx, nil, first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := repo.FetchDueAndMarkActive(ctx); err != nil {
		t.Fatalf("claim after release: %v", err)
	}
}

func TestJobRepo_ClaimPicksEarliestDue(t *testing.T) {
	ctx := context.Background()
	repo := memstore.NewJobRepo()

	if err := repo.Enqueue(ctx, nil, queuedAttempt("late", "job-1", time.Now().Add(-time.Minute))); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := repo.Enqueue(ctx, nil, queuedAttempt("early", "job-2", time.Now().Add(-time.Hour))); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got, err := repo.FetchDueAndMarkActive(ctx)
	if err != nil {
		t.Fatalf("FetchDueAndMarkActive: %v", err)
	}
	if got.ID != "early" {
		t.Fatalf("expected the earliest due attempt, got %s", got.ID)
	}
}

func TestJobRepo_FindCurrentAndLatest(t *testing.T) {
	ctx := context.Background()
	repo := memstore.NewJobRepo()

	if _, err := repo.FindCurrent(ctx, nil, "job-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty repo: expected ErrNotFound, got %v", err)
	}

	a1 := queuedAttempt("a1", "job-1", time.Now())
	a1.CreatedAt = time.Now().Add(-time.Minute)
	if err := repo.Enqueue(ctx, nil, a1); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	cur, err := repo.FindCurrent(ctx, nil, "job-1")
	if err != nil || cur.ID != "a1" {
		t.Fatalf("FindCurrent: %v %+v", err, cur)
	}

	// Terminal attempts are invisible to FindCurrent but not FindLatest.
	cur.Status = model.JobStatusFailed
	if err := repo.Save(ctx, nil, cur); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := repo.FindCurrent(ctx, nil, "job-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("failed attempt must not be current, got %v", err)
	}
	latest, err := repo.FindLatest(ctx, "job-1")
	if err != nil || latest.Status != model.JobStatusFailed {
		t.Fatalf("FindLatest: %v %+v", err, latest)
	}

	// A newer attempt becomes both current and latest.
	a2 := queuedAttempt("a2", "job-1", time.Now())
	a2.Attempt = 2
	if err := repo.Enqueue(ctx, nil, a2); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	latest, _ = repo.FindLatest(ctx, "job-1")
	if latest.ID != "a2" {
		t.Fatalf("FindLatest after requeue: %+v", latest)
	}
}

func TestJobRepo_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := memstore.NewJobRepo()

	if err := repo.Enqueue(ctx, nil, queuedAttempt("a1", "job-1", time.Now().Add(-time.Second))); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	got, _ := repo.FindLatest(ctx, "job-1")
	got.Status = model.JobStatusFailed // mutate the copy only

	again, _ := repo.FindLatest(ctx, "job-1")
	if again.Status != model.JobStatusQueued {
		t.Fatalf("repository state leaked through a returned pointer")
	}
}
