package repository

import (
	"context"

	"startup-analysis-pipeline/internal/domain/model"
)

// ContextChunkRepository stores session-scoped chunks. Appends never remove
// or reorder existing entries; reads never block on appends.
type ContextChunkRepository interface {
	Append(ctx context.Context, sessionID string, chunks []model.ContextChunk) error
	ListBySession(ctx context.Context, sessionID string) ([]model.ContextChunk, error)
	CountBySession(ctx context.Context, sessionID string) (int, error)
}
