package embedding

import (
	"context"

	"github.com/rs/zerolog"

	"startup-analysis-pipeline/internal/domain/ports/adapter"
	"startup-analysis-pipeline/internal/infra/metrics"
)

// Compile-time check
var _ adapter.EmbeddingProvider = (*FallbackEmbedder)(nil)

// FallbackEmbedder serves every request from the remote provider when one is
// configured and healthy, and from the local deterministic strategy
// otherwise. Remote failure never reaches the caller; the degradation is
// logged and counted so operators can watch the fallback rate. A semaphore
// bounds concurrent remote calls.
type FallbackEmbedder struct {
	remote   adapter.EmbeddingProvider // nil when unconfigured
	local    adapter.EmbeddingProvider
	provider string
	sem      chan struct{}
	log      *zerolog.Logger
}

func NewFallbackEmbedder(remote adapter.EmbeddingProvider, local adapter.EmbeddingProvider, provider string, maxConcurrent int, logger *zerolog.Logger) *FallbackEmbedder {
	l := logger.With().Str("component", "FallbackEmbedder").Logger()
	var sem chan struct{}
	if maxConcurrent > 0 {
		sem = make(chan struct{}, maxConcurrent)
	}
	return &FallbackEmbedder{remote: remote, local: local, provider: provider, sem: sem, log: &l}
}

func (f *FallbackEmbedder) Dimension() int { return f.local.Dimension() }

func (f *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *FallbackEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.remote != nil {
		if f.sem != nil {
			f.sem <- struct{}{}
		}
		vecs, err := f.remote.EmbedBatch(ctx, texts)
		if f.sem != nil {
			<-f.sem
		}
		if err == nil {
			metrics.ObserveEmbedding(f.provider, true)
			return vecs, nil
		}
		metrics.ObserveEmbedding(f.provider, false)
		metrics.IncEmbeddingFallback(f.provider)
		f.log.Warn().Err(err).Str("provider", f.provider).Int("batch", len(texts)).
			Msg("remote embedding failed; serving local fallback")
	} else {
		metrics.IncEmbeddingFallback("none")
	}
	return f.local.EmbedBatch(ctx, texts)
}
