// Package metrics exposes Prometheus instrumentation for the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts processed HTTP requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragserver_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures handler latency. Buckets span cache-fast
	// reads through multi-second model generation.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragserver_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// JobsFinished counts jobs by type and terminal status.
	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragserver_jobs_finished_total",
			Help: "Total number of jobs reaching a terminal state",
		},
		[]string{"job_type", "status"},
	)

	// VectorsUpserted counts vector records written per index.
	VectorsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragserver_vectors_upserted_total",
			Help: "Total number of vector records upserted",
		},
		[]string{"index_name"},
	)
)
