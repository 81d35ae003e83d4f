package memstore

import (
	"context"
	"sync"

	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/domain/ports/repository"
)

var _ repository.ResultRepository = (*ResultRepo)(nil)

// ResultRepo stores dimension results keyed by (jobKey, dimension), so the
// worker's at-least-once writes stay idempotent.
type ResultRepo struct {
	mu    sync.RWMutex
	byJob map[string][]model.DimensionResult
}

func NewResultRepo() *ResultRepo {
	return &ResultRepo{byJob: map[string][]model.DimensionResult{}}
}

func (r *ResultRepo) SaveDimension(_ context.Context, _ repository.Tx, res *model.DimensionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.byJob[res.JobKey]
	for i, existing := range list {
		if existing.Dimension == res.Dimension {
			list[i] = *res
			return nil
		}
	}
	r.byJob[res.JobKey] = append(list, *res)
	return nil
}

func (r *ResultRepo) CompletedDimensions(_ context.Context, jobKey string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.byJob[jobKey]
	out := make([]string, len(list))
	for i, res := range list {
		out[i] = res.Dimension
	}
	return out, nil
}
