package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fare_finder", Name: "predictions_total", Help: "Resolved prediction attempts by outcome"},
		[]string{"outcome"},
	)
	PredictionLatency = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "fare_finder", Name: "prediction_latency_seconds", Help: "Prediction round trip seconds"})
	SessionsActive    = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "fare_finder", Name: "sessions_active", Help: "Number of live form sessions"})

	FieldCoercions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fare_finder", Name: "field_coercions_total", Help: "Numeric inputs that did not parse and were stored as 0"},
		[]string{"field"},
	)
	OutcomeSinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fare_finder", Name: "outcome_sink_errors_total", Help: "Failures recording or publishing prediction outcomes"},
		[]string{"sink"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fare_finder", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fare_finder",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
