// Package telemetry holds the logger setup and the prometheus metrics of the
// delivery pipeline. Metrics are registered on the default registry and served
// by cmd/server on METRICS_ADDR at /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchOutcomesTotal counts dispatch attempts by platform and outcome
	// (success, retryable, permanent, skipped).
	DispatchOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postflow_dispatch_outcomes_total",
			Help: "Total number of post dispatch attempts, by platform and outcome.",
		},
		[]string{"platform", "outcome"},
	)

	PublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "postflow_publish_duration_seconds",
			Help:    "Latency of platform publish calls, by platform.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"platform"},
	)

	// TokenRefreshTotal counts credential refreshes by platform and result
	// (refreshed, skipped, unsupported, error).
	TokenRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postflow_token_refresh_total",
			Help: "Total number of credential token refreshes, by platform and result.",
		},
		[]string{"platform", "result"},
	)

	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postflow_cancellations_total",
			Help: "Total number of post cancellation requests, by result.",
		},
		[]string{"result"},
	)

	PostsScheduledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "postflow_posts_scheduled_total",
			Help: "Total number of posts accepted for delivery, by platform.",
		},
		[]string{"platform"},
	)
)
