package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsProcessedTotal, jobRetriesTotal, jobDurationMs) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "analysis_jobs_processed_total",
		Help: "Total number of analysis job attempts finished, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed', 'requeued'
)

var jobRetriesTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "analysis_job_retries_total",
		Help: "Total number of transient-failure retries scheduled by the queue.",
	},
)

var jobDurationMs = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "analysis_job_duration_ms",
		Help:    "Wall-clock duration of a single job attempt in milliseconds.",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 15000, 60000, 300000},
	},
)

func IncJob(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func IncJobRetry() { jobRetriesTotal.Inc() }

func ObserveJobDuration(ms float64) { jobDurationMs.Observe(ms) }
