package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Identifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceid",
		Name:      "identifications_total",
		Help:      "Total identification requests by outcome (matched, new, failed)",
	}, []string{"outcome"})

	Enrollments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "faceid",
		Name:      "enrollments_total",
		Help:      "Total enrollment attempts by outcome (ok, no_face, failed)",
	}, []string{"outcome"})

	PipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceid",
		Name:      "pipeline_stage_duration_seconds",
		Help:      "Duration of recognition pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	IndexSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "faceid",
		Name:      "index_size",
		Help:      "Number of identities in the in-memory index",
	})

	IndexRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "faceid",
		Name:      "index_refreshes_total",
		Help:      "Total full index rebuilds from the durable store",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "faceid",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "faceid",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
