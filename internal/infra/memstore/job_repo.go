package memstore

import (
	"context"
	"sync"
	"time"

	"startup-analysis-pipeline/internal/domain"
	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/domain/ports/repository"
)

var _ repository.AnalysisJobRepository = (*JobRepo)(nil)

// JobRepo keeps job attempts in process memory. Suitable for single-instance
// deployments and tests; the claim operation holds the same exclusivity
// contract as the postgres implementation.
type JobRepo struct {
	mu   sync.Mutex
	byID map[string]*model.JobAttempt
}

func NewJobRepo() *JobRepo {
	return &JobRepo{byID: map[string]*model.JobAttempt{}}
}

func (r *JobRepo) Enqueue(_ context.Context, _ repository.Tx, a *model.JobAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.byID[a.ID] = &cp
	return nil
}

func (r *JobRepo) Save(_ context.Context, _ repository.Tx, a *model.JobAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.UpdatedAt = time.Now()
	cp := *a
	r.byID[a.ID] = &cp
	return nil
}

func (r *JobRepo) FindCurrent(_ context.Context, _ repository.Tx, jobKey string) (*model.JobAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.JobKey == jobKey && (a.Status == model.JobStatusQueued || a.Status == model.JobStatusActive) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *JobRepo) FindLatest(_ context.Context, jobKey string) (*model.JobAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.JobAttempt
	for _, a := range r.byID {
		if a.JobKey != jobKey {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) ||
			(a.CreatedAt.Equal(latest.CreatedAt) && a.Attempt > latest.Attempt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *JobRepo) FetchDueAndMarkActive(_ context.Context) (*model.JobAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	activeKeys := map[string]bool{}
	for _, a := range r.byID {
		if a.Status == model.JobStatusActive {
			activeKeys[a.JobKey] = true
		}
	}

	var due *model.JobAttempt
	for _, a := range r.byID {
		if a.Status != model.JobStatusQueued || a.NextRunAt.After(now) || activeKeys[a.JobKey] {
			continue
		}
		if due == nil || a.NextRunAt.Before(due.NextRunAt) {
			due = a
		}
	}
	if due == nil {
		return nil, domain.ErrNotFound
	}
	due.Status = model.JobStatusActive
	started := now
	due.StartedAt = &started
	due.UpdatedAt = now
	cp := *due
	return &cp, nil
}
