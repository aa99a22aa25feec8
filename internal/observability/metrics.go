package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// estimation service and the telemetry ingest bridge.
type Metrics struct {
	// Estimation pipeline metrics.
	EstimateRequests *prometheus.CounterVec // labels: outcome={ok,degraded,error}
	EstimateDuration prometheus.Histogram
	ReadingsFetched  prometheus.Histogram
	ReadingsRemoved  prometheus.Counter
	ChunksPerRequest prometheus.Histogram

	// External model service metrics.
	ModelCalls        *prometheus.CounterVec // labels: call={create,estimate}, outcome={ok,empty,error}
	ModelCallDuration *prometheus.HistogramVec

	// Ingest bridge metrics.
	IngestConsumed prometheus.Counter
	IngestInserted prometheus.Counter
	IngestRejected prometheus.Counter
	IngestRunning  prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.EstimateRequests,
		m.EstimateDuration,
		m.ReadingsFetched,
		m.ReadingsRemoved,
		m.ChunksPerRequest,
		m.ModelCalls,
		m.ModelCallDuration,
		m.IngestConsumed,
		m.IngestInserted,
		m.IngestRejected,
		m.IngestRunning,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EstimateRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aq_estimate",
			Name:      "requests_total",
			Help:      "Estimation requests by outcome.",
		}, []string{"outcome"}),
		EstimateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aq_estimate",
			Name:      "request_duration_seconds",
			Help:      "End-to-end duration of one estimation request.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		ReadingsFetched: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aq_estimate",
			Name:      "readings_fetched",
			Help:      "Sensor readings returned per telemetry retrieval.",
			Buckets:   []float64{0, 10, 50, 100, 500, 1000, 5000, 10000, 50000},
		}),
		ReadingsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aq_estimate",
			Name:      "readings_removed_total",
			Help:      "Readings dropped by the invalid-sensor/day quarantine.",
		}),
		ChunksPerRequest: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aq_estimate",
			Name:      "chunks_per_request",
			Help:      "Time chunks an estimation request was split into.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34},
		}),
		ModelCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aq_estimate",
			Name:      "model_calls_total",
			Help:      "Interpolation model service calls by call and outcome.",
		}, []string{"call", "outcome"}),
		ModelCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aq_estimate",
			Name:      "model_call_duration_seconds",
			Help:      "Interpolation model service call duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"call"}),
		IngestConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aq_ingest",
			Name:      "messages_consumed_total",
			Help:      "Raw telemetry messages read from the source topic.",
		}),
		IngestInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aq_ingest",
			Name:      "readings_inserted_total",
			Help:      "Readings written to the telemetry table.",
		}),
		IngestRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aq_ingest",
			Name:      "messages_rejected_total",
			Help:      "Messages dropped because they failed validation.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aq_ingest",
			Name:      "bridge_running",
			Help:      "1 when the ingest bridge is active, 0 when shut down.",
		}),
	}
}
