package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Total number of chat pipeline requests by outcome",
		},
		[]string{"status"},
	)

	ChatFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_failures_total",
			Help: "Total number of chat pipeline failures by error code",
		},
		[]string{"error_code"},
	)

	ChatStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "chat_stage_duration_seconds",
			Help: "Duration of chat pipeline stages in seconds",
		},
		[]string{"stage"},
	)

	MetricCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metric_cache_requests_total",
			Help: "Dashboard metric cache lookups by result",
		},
		[]string{"result"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"path", "method", "status"},
	)
)
