package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(streamSubscribers, eventsPublishedTotal, broadcastDegradedTotal) }

var streamSubscribers = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "progress_stream_subscribers",
		Help: "Currently attached progress stream connections.",
	},
)

var eventsPublishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "progress_events_published_total",
		Help: "Progress events published to the broadcaster, by type.",
	},
	[]string{"type"},
)

var broadcastDegradedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "progress_broadcast_degraded_total",
		Help: "Publishes or subscribes dropped because the pub/sub transport was unavailable.",
	},
)

func IncStreamSubscribers() { streamSubscribers.Inc() }
func DecStreamSubscribers() { streamSubscribers.Dec() }

func IncEventPublished(eventType string) {
	eventsPublishedTotal.WithLabelValues(norm(eventType)).Inc()
}

func IncBroadcastDegraded() { broadcastDegradedTotal.Inc() }
