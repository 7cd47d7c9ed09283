package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	generationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apigen_generation_requests_total",
			Help: "Total number of dataset generation requests by outcome.",
		},
		[]string{"outcome"},
	)
	generationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "apigen_generation_duration_seconds",
			Help:    "End-to-end latency of dataset generation requests.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
	generationRowsTruncatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apigen_generation_rows_truncated_total",
			Help: "Total number of generated rows dropped because the model exceeded the requested row count.",
		},
	)
	upstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apigen_upstream_calls_total",
			Help: "Total number of calls to the text generation service.",
		},
		[]string{"provider", "outcome"},
	)
	translationCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apigen_translation_cache_hits_total",
			Help: "Total number of translation prompts served from the in-process cache.",
		},
	)
	archiveFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "apigen_archive_failures_total",
			Help: "Total number of datasets that could not be archived to object storage.",
		},
	)
	nameProbeAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "apigen_name_probe_attempts",
			Help:    "Number of candidates tried before an API name was allocated or reserved.",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 100, 1000},
		},
	)
)

func init() {
	prometheus.MustRegister(
		generationRequestsTotal,
		generationDurationSeconds,
		generationRowsTruncatedTotal,
		upstreamCallsTotal,
		translationCacheHitsTotal,
		archiveFailuresTotal,
		nameProbeAttempts,
	)
}

func ObserveGeneration(outcome string, elapsed time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	generationRequestsTotal.WithLabelValues(outcome).Inc()
	generationDurationSeconds.Observe(elapsed.Seconds())
}

func AddTruncatedRows(count int) {
	if count > 0 {
		generationRowsTruncatedTotal.Add(float64(count))
	}
}

func ObserveUpstreamCall(provider string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamCallsTotal.WithLabelValues(provider, outcome).Inc()
}

func IncrementTranslationCacheHit() {
	translationCacheHitsTotal.Inc()
}

func IncrementArchiveFailure() {
	archiveFailuresTotal.Inc()
}

func ObserveNameProbeAttempts(attempts int) {
	if attempts > 0 {
		nameProbeAttempts.Observe(float64(attempts))
	}
}
