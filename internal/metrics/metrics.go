// Package metrics holds the Prometheus instrumentation of the sync service.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream API

	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchsync_upstream_requests_total",
			Help: "Upstream API responses by endpoint and HTTP status",
		},
		[]string{"endpoint", "status"},
	)

	UpstreamThrottleRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchsync_upstream_throttle_retries_total",
			Help: "Retries scheduled after an HTTP 429 response",
		},
		[]string{"endpoint"},
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "matchsync_upstream_request_duration_seconds",
			Help:    "Duration of single upstream HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	RateBudgetRemaining = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "matchsync_rate_budget_remaining",
			Help: "Last observed X-RateLimit-Remaining value",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "matchsync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Orchestrator

	SyncAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchsync_sync_attempts_total",
			Help: "Audited sync attempts by endpoint kind and outcome",
		},
		[]string{"endpoint", "outcome"}, // outcome: success, unchanged, error
	)

	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matchsync_sync_run_duration_seconds",
			Help:    "Duration of full SyncMatches runs",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	ReplaysQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matchsync_replays_queued_total",
			Help: "Detail backfills triggered by SyncMatches",
		},
	)

	// Persistence

	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchsync_rows_written_total",
			Help: "Rows upserted or inserted by table",
		},
		[]string{"table"},
	)

	BatchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matchsync_batch_failures_total",
			Help: "Failed persistence batches by table",
		},
		[]string{"table"},
	)
)

// EndpointLabel collapses per-match endpoints so label cardinality stays bounded
func EndpointLabel(endpoint string) string {
	const detailPrefix = "matches/"
	switch endpoint {
	case "matches/upcoming", "matches/recent":
		return endpoint
	}
	if strings.HasPrefix(endpoint, detailPrefix) {
		return "matches/:id"
	}
	return endpoint
}
