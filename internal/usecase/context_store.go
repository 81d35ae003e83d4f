package usecase

import (
	"fmt"
	"sort"

	"context"

	"github.com/rs/zerolog"

	"startup-analysis-pipeline/internal/domain"
	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/domain/ports/adapter"
	"startup-analysis-pipeline/internal/domain/ports/repository"
	"startup-analysis-pipeline/internal/infra/adapters/embedding"
	"startup-analysis-pipeline/internal/infra/metrics"
)

// ContextStore chunks, embeds and retrieves session-scoped text. Reads never
// block on appends; only the single active worker for a session ever appends
// while an analysis runs.
type ContextStore struct {
	chunks        repository.ContextChunkRepository
	embedder      adapter.EmbeddingProvider
	maxChars      int
	overlap       int
	maxPerSession int
	log           *zerolog.Logger
}

func NewContextStore(
	chunks repository.ContextChunkRepository,
	embedder adapter.EmbeddingProvider,
	maxChars, overlap, maxPerSession int,
	logger *zerolog.Logger,
) *ContextStore {
	l := logger.With().Str("component", "ContextStore").Logger()
	if maxChars <= 0 {
		maxChars = 1100
	}
	if overlap <= 0 {
		overlap = 180
	}
	if maxPerSession <= 0 {
		maxPerSession = 2000
	}
	return &ContextStore{
		chunks:        chunks,
		embedder:      embedder,
		maxChars:      maxChars,
		overlap:       overlap,
		maxPerSession: maxPerSession,
		log:           &l,
	}
}

// Index splits rawText, embeds every chunk and appends them to the session.
// It is NOT idempotent: indexing the same text twice duplicates chunks, and
// callers are responsible for not double-indexing. Sessions are capped at
// maxPerSession chunks; overflow is dropped with a warning, never an error.
func (s *ContextStore) Index(ctx context.Context, sessionID, rawText, source string) (int, error) {
	if sessionID == "" {
		return 0, domain.ErrSessionRequired
	}
	parts := SplitText(rawText, s.maxChars, s.overlap)
	if len(parts) == 0 {
		return 0, nil
	}

	count, err := s.chunks.CountBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	if room := s.maxPerSession - count; len(parts) > room {
		dropped := len(parts) - room
		if room < 0 {
			room = 0
		}
		s.log.Warn().Str("session_id", sessionID).Int("dropped", dropped).
			Msg("session chunk cap reached; dropping overflow")
		metrics.AddChunksDropped(dropped)
		parts = parts[:room]
		if len(parts) == 0 {
			return 0, nil
		}
	}

	vecs, err := s.embedder.EmbedBatch(ctx, parts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}

	batch := make([]model.ContextChunk, len(parts))
	for i, text := range parts {
		seq := count + i
		batch[i] = model.ContextChunk{
			ID:        model.ChunkID(sessionID, seq),
			SessionID: sessionID,
			Seq:       seq,
			Text:      text,
			SourceURL: source,
			Embedding: vecs[i],
		}
	}
	if err := s.chunks.Append(ctx, sessionID, batch); err != nil {
		return 0, fmt.Errorf("append chunks: %w", err)
	}
	metrics.AddChunksIndexed(len(batch))
	s.log.Debug().Str("session_id", sessionID).Int("chunks", len(batch)).Str("source", source).Msg("indexed")
	return len(batch), nil
}

// Retrieve scores every chunk of the session against the query by cosine
// similarity and returns the top k, ties broken by insertion order. The scan
// is brute force on purpose: the documented scale is a handful of sessions
// with a few hundred chunks each.
func (s *ContextStore) Retrieve(ctx context.Context, sessionID, query string, k int) ([]model.ScoredChunk, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionRequired
	}
	if k <= 0 {
		return nil, nil
	}
	qv, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	all, err := s.chunks.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	scored := make([]model.ScoredChunk, len(all))
	for i, c := range all {
		scored[i] = model.ScoredChunk{Chunk: c, Score: embedding.Cosine(qv, c.Embedding)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}
