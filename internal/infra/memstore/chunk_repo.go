package memstore

import (
	"context"
	"sync"

	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/domain/ports/repository"
)

var _ repository.ContextChunkRepository = (*ChunkRepo)(nil)

// ChunkRepo holds session chunk lists behind a lock, injected rather than
// ambient: no package-level state, no reliance on process restart for
// cleanup. Appends never reorder existing entries.
type ChunkRepo struct {
	mu        sync.RWMutex
	bySession map[string][]model.ContextChunk
}

func NewChunkRepo() *ChunkRepo {
	return &ChunkRepo{bySession: map[string][]model.ContextChunk{}}
}

func (r *ChunkRepo) Append(_ context.Context, sessionID string, chunks []model.ContextChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySession[sessionID] = append(r.bySession[sessionID], chunks...)
	return nil
}

func (r *ChunkRepo) ListBySession(_ context.Context, sessionID string) ([]model.ContextChunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src := r.bySession[sessionID]
	out := make([]model.ContextChunk, len(src))
	copy(out, src)
	return out, nil
}

func (r *ChunkRepo) CountBySession(_ context.Context, sessionID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySession[sessionID]), nil
}
