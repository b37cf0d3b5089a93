// Package metrics holds the Prometheus collectors for row processing and
// model calls. Collectors register on a package registry rather than the
// global default so tests and embedding programs control exposure.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rowprompt"

//nolint:gochecknoglobals // process-wide collectors
var (
	Registry = prometheus.NewRegistry()

	RowsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_total",
			Help:      "Rows processed, partitioned by outcome.",
		},
		[]string{"status"},
	)
	RowDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "row_duration_seconds",
			Help:      "Time to template, invoke and capture one row.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	RowsSkipped = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Rows excluded from a run, partitioned by reason.",
		},
		[]string{"reason"},
	)
	RecordErrors = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_record_errors_total",
			Help:      "Failed progress store appends.",
		},
	)
	RunsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Batch runs, partitioned by result.",
		},
		[]string{"result"},
	)
	ModelRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_requests_total",
			Help:      "Requests to the generation service.",
		},
		[]string{"provider", "model", "status"},
	)
	ModelRequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Latency of generation service requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "model"},
	)
	ModelTokens = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_total",
			Help:      "Tokens reported by the generation service.",
		},
		[]string{"provider", "model", "kind"},
	)
	CacheLookups = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "response_cache_lookups_total",
			Help:      "Response cache lookups, partitioned by result.",
		},
		[]string{"result"},
	)
)

//nolint:gochecknoinits // runtime collectors belong on the same registry
func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveModelCall records one generation request.
func ObserveModelCall(provider, model string, seconds float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	ModelRequests.WithLabelValues(provider, model, status).Inc()
	ModelRequestDuration.WithLabelValues(provider, model).Observe(seconds)
}

// AddTokens records token usage reported by the generation service.
func AddTokens(provider, model string, prompt, completion int) {
	if prompt > 0 {
		ModelTokens.WithLabelValues(provider, model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		ModelTokens.WithLabelValues(provider, model, "completion").Add(float64(completion))
	}
}
