package ml

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrEmptyPrediction is returned when a model produces no output for an input.
var ErrEmptyPrediction = errors.New("model returned an empty prediction")

// MetricsInterface defines metrics methods needed by the adapter
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLBatchSizeObserve(float64)
}

// PredictionError means no prediction is available for one input.
type PredictionError struct {
	Input string
	Err   error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("prediction failed: %v", e.Err)
}

func (e *PredictionError) Unwrap() error {
	return e.Err
}

// PredictionResult is the outcome of predicting one input text.
type PredictionResult struct {
	Input string           `json:"input"`
	Label string           `json:"label,omitempty"`
	Raw   any              `json:"raw,omitempty"`
	Err   *PredictionError `json:"-"`
}

// OK reports whether a prediction is available.
func (r PredictionResult) OK() bool {
	return r.Err == nil
}

// AdapterConfig configures an Adapter.
type AdapterConfig struct {
	Labels LabelMap
	// Workers bounds batch parallelism. Values below 2 run batches sequentially.
	// Only enable it for models whose Predict is safe for concurrent use.
	Workers int
}

// Adapter invokes a loaded model uniformly and maps its outputs to labels.
// It holds no model state; the model is passed on every call.
type Adapter struct {
	labels  LabelMap
	workers int
	metrics MetricsInterface
}

// NewAdapter creates an adapter. metrics may be nil.
func NewAdapter(config AdapterConfig, metrics MetricsInterface) *Adapter {
	return &Adapter{
		labels:  config.Labels,
		workers: config.Workers,
		metrics: metrics,
	}
}

// Labels returns the adapter's label map.
func (a *Adapter) Labels() LabelMap {
	return a.labels
}

// PredictOne predicts a single text. It never panics past its boundary:
// model errors, panics and empty outputs come back as a result carrying a
// PredictionError.
func (a *Adapter) PredictOne(model PredictorInterface, text string) PredictionResult {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}
	}()

	raw, err := invoke(model, text)
	if err != nil {
		if a.metrics != nil {
			a.metrics.MLFailuresInc()
		}
		log.Debug().Err(err).Int("input_len", len(text)).Msg("prediction failed")
		return PredictionResult{Input: text, Err: &PredictionError{Input: text, Err: err}}
	}

	if a.metrics != nil {
		a.metrics.MLPredictionsInc()
	}
	return PredictionResult{
		Input: text,
		Label: a.labels.Map(raw),
		Raw:   raw,
	}
}

// PredictBatch predicts every text independently. The result has the same
// length and order as texts; a failing input only affects its own entry.
func (a *Adapter) PredictBatch(model PredictorInterface, texts []string) []PredictionResult {
	if a.metrics != nil {
		a.metrics.MLBatchSizeObserve(float64(len(texts)))
	}

	results := make([]PredictionResult, len(texts))
	if a.workers < 2 || len(texts) < 2 {
		for i, text := range texts {
			results[i] = a.PredictOne(model, text)
		}
		return results
	}

	sem := make(chan struct{}, a.workers)
	var wg sync.WaitGroup
	for i, text := range texts {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, text string) {
			defer func() {
				<-sem
				wg.Done()
			}()
			results[i] = a.PredictOne(model, text)
		}(i, text)
	}
	wg.Wait()
	return results
}

// invoke calls model.Predict for one text and returns the first output.
func invoke(model PredictorInterface, text string) (raw any, err error) {
	if model == nil {
		return nil, errors.New("no model loaded")
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("model panicked: %v", p)
		}
	}()

	out, err := model.Predict([]string{text})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyPrediction
	}
	return out[0], nil
}
