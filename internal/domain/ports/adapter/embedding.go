package adapter

import "context"

// EmbeddingProvider turns text into fixed-length vectors. All vectors from a
// given provider have Dimension() entries. Implementations never surface
// provider-side failures to callers: the wired chain degrades to the local
// deterministic strategy instead.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}
