package artifact

import (
	"bytes"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"msgclf/internal/ml"
	"msgclf/internal/textmodel"
)

// MockMetrics records loader metric calls.
type MockMetrics struct {
	mu        sync.Mutex
	attempts  map[string]int
	failures  map[string]int
	successes map[string]int
	exhausted int
	latencies int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		attempts:  make(map[string]int),
		failures:  make(map[string]int),
		successes: make(map[string]int),
	}
}

func (m *MockMetrics) LoadAttemptInc(strategy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[strategy]++
}

func (m *MockMetrics) LoadFailureInc(strategy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[strategy]++
}

func (m *MockMetrics) LoadSuccessInc(strategy string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes[strategy]++
}

func (m *MockMetrics) LoadExhaustedInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exhausted++
}

func (m *MockMetrics) LoadLatencyObserve(float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

// fakeModel is a trivial predictor returning a fixed label.
type fakeModel struct {
	label string
}

func (f fakeModel) Predict(texts []string) ([]any, error) {
	out := make([]any, len(texts))
	for i := range texts {
		out[i] = f.label
	}
	return out, nil
}

// countingStrategy wraps decode and counts its invocations.
func countingStrategy(name string, calls *int, decode func(io.Reader) (ml.PredictorInterface, error)) Strategy {
	return Strategy{
		Name: name,
		Decode: func(r io.Reader) (ml.PredictorInterface, error) {
			*calls++
			return decode(r)
		},
	}
}

func encodeModel(t *testing.T, encode func(io.Writer, *textmodel.Model) error, m *textmodel.Model) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, encode(&buf, m))
	return buf.Bytes()
}

func demoModel(t *testing.T, profile string) *textmodel.Model {
	t.Helper()
	m, err := textmodel.DemoModel(profile)
	require.NoError(t, err)
	return m
}
