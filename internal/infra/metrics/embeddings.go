package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(embedRequestsTotal, embedFallbackTotal, chunksIndexedTotal, chunksDroppedTotal) }

var embedRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "embedding_requests_total",
		Help: "Embedding calls by provider and success.",
	},
	[]string{"provider", "success"},
)

// Fallback rate is the operator-visible health signal for silent degrade.
var embedFallbackTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "embedding_fallback_total",
		Help: "Times the remote embedding provider was bypassed for the local strategy.",
	},
	[]string{"provider"},
)

var chunksIndexedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "context_chunks_indexed_total",
		Help: "Context chunks appended across all sessions.",
	},
)

var chunksDroppedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "context_chunks_dropped_total",
		Help: "Chunks dropped by the per-session cap.",
	},
)

func ObserveEmbedding(provider string, success bool) {
	embedRequestsTotal.WithLabelValues(norm(provider), strconv.FormatBool(success)).Inc()
}

func IncEmbeddingFallback(provider string) {
	embedFallbackTotal.WithLabelValues(norm(provider)).Inc()
}

func AddChunksIndexed(n int) { chunksIndexedTotal.Add(float64(n)) }
func AddChunksDropped(n int) { chunksDroppedTotal.Add(float64(n)) }
