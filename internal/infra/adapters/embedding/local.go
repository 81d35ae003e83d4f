package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"startup-analysis-pipeline/internal/domain/ports/adapter"
)

var _ adapter.EmbeddingProvider = (*LocalEmbedder)(nil)

// LocalEmbedder is the deterministic fallback strategy: a fixed-dimension
// hashed bag-of-tokens vector, L2-normalized. Pure function of its input, so
// retrieval tests never depend on network access. Embedding quality is not a
// goal here; stable geometry is.
type LocalEmbedder struct {
	dim int
}

func NewLocalEmbedder(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &LocalEmbedder{dim: dim}
}

func (l *LocalEmbedder) Dimension() int { return l.dim }

func (l *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, l.dim)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[h.Sum32()%uint32(l.dim)]++
	}
	normalize(v)
	return v, nil
}

func (l *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := l.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
