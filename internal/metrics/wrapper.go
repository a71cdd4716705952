package metrics

import "github.com/prometheus/client_golang/prometheus"

// Interfaces for metrics to avoid circular imports
type MetricsCounter interface {
	Inc()
}

type MetricsGauge interface {
	Set(float64)
	Add(float64)
}

// MetricsWrapper adapts Metrics to the narrow interfaces the loader and the
// prediction adapter depend on.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

// Loader metrics

func (w *MetricsWrapper) LoadAttemptInc(strategy string) {
	w.m.LoadAttempts.WithLabelValues(strategy).Inc()
}

func (w *MetricsWrapper) LoadFailureInc(strategy string) {
	w.m.LoadFailures.WithLabelValues(strategy).Inc()
}

func (w *MetricsWrapper) LoadSuccessInc(strategy string) {
	w.m.LoadSuccesses.WithLabelValues(strategy).Inc()
}

func (w *MetricsWrapper) LoadExhaustedInc() {
	w.m.LoadExhausted.Inc()
}

func (w *MetricsWrapper) LoadLatencyObserve(v float64) {
	w.m.LoadLatency.Observe(v)
}

// Prediction metrics

func (w *MetricsWrapper) MLPredictionsInc() {
	w.m.MLPredictions.Inc()
}

func (w *MetricsWrapper) MLFailuresInc() {
	w.m.MLFailures.Inc()
}

func (w *MetricsWrapper) MLLatencyObserve(v float64) {
	w.m.MLLatency.Observe(v)
}

func (w *MetricsWrapper) MLBatchSizeObserve(v float64) {
	w.m.MLBatchSize.Observe(v)
}

// Dashboard metrics

func (w *MetricsWrapper) Label(label string) MetricsCounter {
	return &CounterWrapper{w.m.Labels.WithLabelValues(label)}
}

func (w *MetricsWrapper) UploadsRejected() MetricsCounter {
	return &CounterWrapper{w.m.UploadsRejected}
}

func (w *MetricsWrapper) Errors() MetricsCounter {
	return &CounterWrapper{w.m.ErrorsTotal}
}

func (w *MetricsWrapper) WSClients() MetricsGauge {
	return &GaugeWrapper{w.m.WSClients}
}

func (w *MetricsWrapper) SetModelReady(ready bool) {
	w.m.SetModelReady(ready)
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

type GaugeWrapper struct {
	g prometheus.Gauge
}

func (gw *GaugeWrapper) Set(v float64) {
	gw.g.Set(v)
}

func (gw *GaugeWrapper) Add(v float64) {
	gw.g.Add(v)
}
