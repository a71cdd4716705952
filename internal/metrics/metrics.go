// Package metrics provides Prometheus metrics collection for the message
// classification dashboards. It defines the artifact loading, prediction and
// dashboard metrics exposed via the Prometheus metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the dashboards.
type Metrics struct {
	// Artifact loading metrics
	LoadAttempts  *prometheus.CounterVec // Strategy attempts, by strategy
	LoadFailures  *prometheus.CounterVec // Failed strategy attempts, by strategy
	LoadSuccesses *prometheus.CounterVec // Successful loads, by winning strategy
	LoadExhausted prometheus.Counter     // Loads where every strategy failed
	LoadLatency   prometheus.Histogram   // Duration of a whole strategy chain
	ModelReady    prometheus.Gauge       // 1 while a usable model is installed

	// Prediction metrics
	MLPredictions prometheus.Counter   // Total number of successful predictions
	MLFailures    prometheus.Counter   // Total number of failed predictions
	MLLatency     prometheus.Histogram // Single prediction latency in seconds
	MLBatchSize   prometheus.Histogram // Number of messages per bulk request
	Labels        *prometheus.CounterVec

	// Dashboard metrics
	UploadsRejected prometheus.Counter // Artifact uploads and bulk inputs rejected before processing
	WSClients       prometheus.Gauge   // Connected websocket clients

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered

	gatherer prometheus.Gatherer
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	gatherer := prometheus.DefaultGatherer
	if g, ok := registerer.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &Metrics{
		LoadAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "artifact_load_attempts_total",
			Help: "Total number of artifact load strategy attempts",
		}, []string{"strategy"}),
		LoadFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "artifact_load_failures_total",
			Help: "Total number of failed artifact load strategy attempts",
		}, []string{"strategy"}),
		LoadSuccesses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "artifact_load_success_total",
			Help: "Total number of artifacts loaded, by strategy",
		}, []string{"strategy"}),
		LoadExhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "artifact_load_exhausted_total",
			Help: "Total number of artifact loads where every strategy failed",
		}),
		LoadLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "artifact_load_duration_seconds",
			Help:    "Duration of artifact loading across all strategies in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		ModelReady: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_ready",
			Help: "Whether a usable model is installed (1) or prediction is disabled (0)",
		}),
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of predictions made",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of prediction failures",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Prediction latency in seconds (single message)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		MLBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_batch_size",
			Help:    "Number of messages per bulk prediction request",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		Labels: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_classified_total",
			Help: "Total number of messages classified, by label",
		}, []string{"label"}),
		UploadsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "uploads_rejected_total",
			Help: "Total number of artifact uploads and bulk inputs rejected as unreadable",
		}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ws_clients",
			Help: "Number of connected websocket clients",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
		gatherer: gatherer,
	}
}

// SetModelReady updates the model availability gauge.
func (m *Metrics) SetModelReady(ready bool) {
	if ready {
		m.ModelReady.Set(1)
		return
	}
	m.ModelReady.Set(0)
}

// GetFailureRate returns the ratio of failed predictions to all prediction
// attempts, or 0 if nothing has been predicted yet.
func (m *Metrics) GetFailureRate() float64 {
	var ok, failed float64

	metricFamilies, err := m.gatherer.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "ml_predictions_total":
			for _, metric := range mf.Metric {
				ok = metric.GetCounter().GetValue()
			}
		case "ml_failures_total":
			for _, metric := range mf.Metric {
				failed = metric.GetCounter().GetValue()
			}
		}
	}

	if ok+failed == 0 {
		return 0
	}
	return failed / (ok + failed)
}
