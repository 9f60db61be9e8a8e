// Package metrics provides Prometheus metrics for the API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics exposed on /metrics.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	PromptsCreatedTotal   prometheus.Counter
	VersionsAppendedTotal prometheus.Counter
	UpvoteTogglesTotal    *prometheus.CounterVec
	PendingDecisionsTotal *prometheus.CounterVec
	SearchQueriesTotal    prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	m := &Metrics{}

	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptcollab_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptcollab_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.PromptsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promptcollab_prompts_created_total",
			Help: "Total number of prompts created",
		},
	)

	m.VersionsAppendedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promptcollab_versions_appended_total",
			Help: "Total number of prompt versions appended",
		},
	)

	m.UpvoteTogglesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptcollab_upvote_toggles_total",
			Help: "Total number of upvote toggles by direction",
		},
		[]string{"direction"},
	)

	m.PendingDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptcollab_pending_decisions_total",
			Help: "Total number of pending update decisions",
		},
		[]string{"decision"},
	)

	m.SearchQueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "promptcollab_search_queries_total",
			Help: "Total number of search queries",
		},
	)

	return m
}

// RecordHTTPRequest records one completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}
