package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"msgclf/internal/artifact"
	"msgclf/internal/ml"
)

// The wrapper is what cmd wires into the loader and the adapter.
var (
	_ artifact.MetricsInterface = (*MetricsWrapper)(nil)
	_ ml.MetricsInterface       = (*MetricsWrapper)(nil)
)

func newTestMetrics(t *testing.T) (*Metrics, *MetricsWrapper) {
	t.Helper()
	registry := prometheus.NewRegistry()
	m := NewWithRegistry(registry)
	return m, NewWrapper(m)
}

func TestNewWrapper(t *testing.T) {
	metrics, wrapper := newTestMetrics(t)

	if wrapper == nil {
		t.Fatal("NewWrapper returned nil")
	}
	if wrapper.m != metrics {
		t.Error("Wrapper does not contain correct metrics instance")
	}
}

func TestMetricsWrapper_LoaderMethods(t *testing.T) {
	metrics, wrapper := newTestMetrics(t)

	wrapper.LoadAttemptInc("gob")
	wrapper.LoadFailureInc("gob")
	wrapper.LoadAttemptInc("array-container")
	wrapper.LoadSuccessInc("array-container")
	wrapper.LoadLatencyObserve(0.02)

	if got := testutil.ToFloat64(metrics.LoadAttempts.WithLabelValues("gob")); got != 1 {
		t.Errorf("Expected 1 gob attempt, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.LoadFailures.WithLabelValues("gob")); got != 1 {
		t.Errorf("Expected 1 gob failure, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.LoadSuccesses.WithLabelValues("array-container")); got != 1 {
		t.Errorf("Expected 1 array-container success, got %f", got)
	}
	if got := testutil.CollectAndCount(metrics.LoadLatency); got != 1 {
		t.Errorf("Expected load latency histogram to be collected, got %d", got)
	}

	wrapper.LoadExhaustedInc()
	if got := testutil.ToFloat64(metrics.LoadExhausted); got != 1 {
		t.Errorf("Expected 1 exhausted load, got %f", got)
	}
}

func TestMetricsWrapper_MLMethods(t *testing.T) {
	metrics, wrapper := newTestMetrics(t)

	wrapper.MLPredictionsInc()
	wrapper.MLPredictionsInc()
	wrapper.MLPredictionsInc()
	wrapper.MLFailuresInc()
	wrapper.MLLatencyObserve(0.001)
	wrapper.MLBatchSizeObserve(250)

	if got := testutil.ToFloat64(metrics.MLPredictions); got != 3 {
		t.Errorf("Expected 3 predictions, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.MLFailures); got != 1 {
		t.Errorf("Expected 1 failure, got %f", got)
	}
	if rate := metrics.GetFailureRate(); rate != 0.25 {
		t.Errorf("Expected failure rate 0.25, got %f", rate)
	}
}

func TestMetrics_FailureRateWithoutPredictions(t *testing.T) {
	metrics, _ := newTestMetrics(t)
	if rate := metrics.GetFailureRate(); rate != 0 {
		t.Errorf("Expected failure rate 0 with no predictions, got %f", rate)
	}
}

func TestMetricsWrapper_DashboardMethods(t *testing.T) {
	metrics, wrapper := newTestMetrics(t)

	wrapper.Label("Spam").Inc()
	wrapper.Label("Spam").Inc()
	wrapper.Label("Ham").Inc()
	wrapper.UploadsRejected().Inc()
	wrapper.Errors().Inc()

	clients := wrapper.WSClients()
	clients.Add(2)
	clients.Add(-1)

	if got := testutil.ToFloat64(metrics.Labels.WithLabelValues("Spam")); got != 2 {
		t.Errorf("Expected 2 Spam labels, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.UploadsRejected); got != 1 {
		t.Errorf("Expected 1 rejected upload, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.WSClients); got != 1 {
		t.Errorf("Expected 1 websocket client, got %f", got)
	}

	clients.Set(0)
	if got := testutil.ToFloat64(metrics.WSClients); got != 0 {
		t.Errorf("Expected 0 websocket clients after Set, got %f", got)
	}
}

func TestMetrics_ModelReadyGauge(t *testing.T) {
	metrics, wrapper := newTestMetrics(t)

	wrapper.SetModelReady(true)
	if got := testutil.ToFloat64(metrics.ModelReady); got != 1 {
		t.Errorf("Expected model_ready 1, got %f", got)
	}
	wrapper.SetModelReady(false)
	if got := testutil.ToFloat64(metrics.ModelReady); got != 0 {
		t.Errorf("Expected model_ready 0, got %f", got)
	}
}

func TestMetrics_ExpositionNames(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewWithRegistry(registry)
	metrics.MLPredictions.Inc()
	metrics.LoadExhausted.Inc()

	expected := `
# HELP artifact_load_exhausted_total Total number of artifact loads where every strategy failed
# TYPE artifact_load_exhausted_total counter
artifact_load_exhausted_total 1
# HELP ml_predictions_total Total number of predictions made
# TYPE ml_predictions_total counter
ml_predictions_total 1
`
	err := testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"artifact_load_exhausted_total", "ml_predictions_total")
	if err != nil {
		t.Errorf("unexpected exposition: %v", err)
	}
}

func TestMetricsWrapper_ConcurrentAccess(t *testing.T) {
	metrics, wrapper := newTestMetrics(t)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				wrapper.MLPredictionsInc()
				wrapper.MLLatencyObserve(0.01)
				wrapper.LoadAttemptInc("gob")
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	expected := 1000.0 // 10 goroutines * 100 increments
	if got := testutil.ToFloat64(metrics.MLPredictions); got != expected {
		t.Errorf("Expected %f predictions after concurrent access, got %f", expected, got)
	}
	if got := testutil.ToFloat64(metrics.LoadAttempts.WithLabelValues("gob")); got != expected {
		t.Errorf("Expected %f gob attempts after concurrent access, got %f", expected, got)
	}
}

func TestMetricsWrapper_NilGuard(t *testing.T) {
	// NewWrapper ensures m is never nil; a zero wrapper panics.
	wrapper := &MetricsWrapper{m: nil}

	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when accessing nil metrics")
		}
	}()

	wrapper.MLPredictionsInc()
}

func BenchmarkMetricsWrapper_MLPredictionsInc(b *testing.B) {
	wrapper := NewWrapper(NewWithRegistry(prometheus.NewRegistry()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrapper.MLPredictionsInc()
	}
}

func BenchmarkMetricsWrapper_LoadAttemptInc(b *testing.B) {
	wrapper := NewWrapper(NewWithRegistry(prometheus.NewRegistry()))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrapper.LoadAttemptInc("gob")
	}
}
