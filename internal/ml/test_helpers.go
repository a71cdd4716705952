package ml

import (
	"errors"
	"sync"
)

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu          sync.Mutex
	predictions int
	failures    int
	latencySum  float64
	latencies   int
	batchSizes  []float64
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
	m.latencies++
}

func (m *MockMetrics) MLBatchSizeObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchSizes = append(m.batchSizes, v)
}

// Counts returns the prediction and failure counters.
func (m *MockMetrics) Counts() (predictions, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions, m.failures
}

// StubPredictor is a scripted model for tests. Outputs maps an input text to
// its raw output; inputs listed in Fail produce an error and those in Panic
// make Predict panic. Unknown inputs return Default.
type StubPredictor struct {
	Outputs map[string]any
	Default any
	Fail    map[string]bool
	Panic   map[string]bool

	mu    sync.Mutex
	calls int
}

func (s *StubPredictor) Predict(texts []string) ([]any, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	out := make([]any, len(texts))
	for i, text := range texts {
		if s.Panic[text] {
			panic("stub predictor: " + text)
		}
		if s.Fail[text] {
			return nil, errors.New("stub predictor: cannot score input")
		}
		if v, ok := s.Outputs[text]; ok {
			out[i] = v
			continue
		}
		out[i] = s.Default
	}
	return out, nil
}

// Calls returns how many times Predict was invoked.
func (s *StubPredictor) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
