// Package artifact loads serialized text classifiers of unknown format.
//
// A Loader tries an ordered list of decoding strategies against the artifact
// and returns the first model that decodes. Strategy failures are recorded and
// never surfaced on their own; only exhaustion of every strategy is reported,
// as a failed Outcome. Loading never returns an error value and never panics.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"msgclf/internal/ml"
)

// ErrLoadExhausted is reported when every strategy failed.
var ErrLoadExhausted = errors.New("artifact: all load strategies failed")

// MetricsInterface defines metrics methods needed by the loader
type MetricsInterface interface {
	LoadAttemptInc(strategy string)
	LoadFailureInc(strategy string)
	LoadSuccessInc(strategy string)
	LoadExhaustedInc()
	LoadLatencyObserve(float64)
}

// Strategy is one way of decoding an artifact.
type Strategy struct {
	Name   string
	Decode func(r io.Reader) (ml.PredictorInterface, error)
}

// StrategyError records a single failed strategy.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e StrategyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Strategy, e.Err)
}

func (e StrategyError) Unwrap() error {
	return e.Err
}

// Outcome is the result of a load. It either holds a model and the name of
// the strategy that produced it, or no model at all.
type Outcome struct {
	Model         ml.PredictorInterface
	Strategy      string
	Source        string
	Substitutions []string
	Attempts      []StrategyError
}

// OK reports whether a model was loaded.
func (o Outcome) OK() bool {
	return o.Model != nil
}

// Err returns nil for a successful outcome and an error wrapping
// ErrLoadExhausted and every attempt otherwise.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	errs := make([]error, len(o.Attempts))
	for i, a := range o.Attempts {
		errs[i] = a
	}
	return fmt.Errorf("%w (%s): %w", ErrLoadExhausted, o.Source, errors.Join(errs...))
}

// Loader runs the strategy chain against artifact sources.
type Loader struct {
	strategies  []Strategy
	defaultPath string
	metrics     MetricsInterface
	http        *resty.Client
	maxBytes    int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithStrategies replaces the default strategy chain.
func WithStrategies(strategies ...Strategy) Option {
	return func(l *Loader) {
		l.strategies = strategies
	}
}

// WithDefaultPath sets the path used by LoadFromPath("").
func WithDefaultPath(path string) Option {
	return func(l *Loader) {
		l.defaultPath = path
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m MetricsInterface) Option {
	return func(l *Loader) {
		l.metrics = m
	}
}

// WithHTTPClient sets the client used by LoadFromURL.
func WithHTTPClient(c *resty.Client) Option {
	return func(l *Loader) {
		l.http = c
	}
}

// WithMaxBytes bounds the size of downloaded artifacts. Zero means no limit.
func WithMaxBytes(n int64) Option {
	return func(l *Loader) {
		l.maxBytes = n
	}
}

// NewLoader creates a loader with DefaultStrategies unless overridden.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{strategies: DefaultStrategies()}
	for _, opt := range opts {
		opt(l)
	}
	if l.http == nil {
		l.http = NewHTTPClient(0)
	}
	return l
}

// DefaultStrategies returns the standard chain in its fixed order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		GobStrategy(),
		GobLatin1Strategy(),
		ArrayContainerStrategy(),
		PermissiveManifestStrategy(),
	}
}

// Strategies returns the names of the configured strategies in order.
func (l *Loader) Strategies() []string {
	names := make([]string, len(l.strategies))
	for i, s := range l.strategies {
		names[i] = s.Name
	}
	return names
}

// LoadFromPath loads the artifact at path, or at the default path when path
// is empty. The file is opened afresh for every strategy.
func (l *Loader) LoadFromPath(path string) Outcome {
	if path == "" {
		path = l.defaultPath
	}

	open := func() (io.ReadCloser, error) {
		return os.Open(path)
	}
	return l.run(path, open, nil)
}

// LoadFromStream loads an artifact from r. The read position on entry is
// restored after every failed strategy so each one sees the whole artifact.
func (l *Loader) LoadFromStream(r io.ReadSeeker) Outcome {
	return l.loadStream("stream", r)
}

func (l *Loader) loadStream(source string, r io.ReadSeeker) Outcome {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		out := Outcome{Source: source, Attempts: []StrategyError{{Strategy: "seek", Err: err}}}
		l.reportExhausted(out)
		return out
	}

	open := func() (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	}
	reset := func() error {
		_, err := r.Seek(start, io.SeekStart)
		return err
	}
	return l.run(source, open, reset)
}

// run folds over the strategies and returns the first success.
func (l *Loader) run(source string, open func() (io.ReadCloser, error), reset func() error) Outcome {
	start := time.Now()
	defer func() {
		if l.metrics != nil {
			l.metrics.LoadLatencyObserve(time.Since(start).Seconds())
		}
	}()

	out := Outcome{Source: source}
	for _, s := range l.strategies {
		if l.metrics != nil {
			l.metrics.LoadAttemptInc(s.Name)
		}

		model, err := l.attempt(s, open)
		if err == nil {
			out.Model = model
			out.Strategy = s.Name
			if p, ok := model.(interface{ Substitutions() []string }); ok {
				out.Substitutions = p.Substitutions()
			}
			if l.metrics != nil {
				l.metrics.LoadSuccessInc(s.Name)
			}
			log.Info().
				Str("source", source).
				Str("strategy", s.Name).
				Int("failed_attempts", len(out.Attempts)).
				Msg("artifact loaded")
			return out
		}

		out.Attempts = append(out.Attempts, StrategyError{Strategy: s.Name, Err: err})
		if l.metrics != nil {
			l.metrics.LoadFailureInc(s.Name)
		}
		log.Debug().Err(err).Str("source", source).Str("strategy", s.Name).Msg("load strategy failed")

		if reset != nil {
			if rerr := reset(); rerr != nil {
				out.Attempts = append(out.Attempts, StrategyError{Strategy: "rewind", Err: rerr})
				break
			}
		}
	}

	l.reportExhausted(out)
	return out
}

// attempt runs one strategy, converting panics into errors.
func (l *Loader) attempt(s Strategy, open func() (io.ReadCloser, error)) (model ml.PredictorInterface, err error) {
	defer func() {
		if p := recover(); p != nil {
			model = nil
			err = fmt.Errorf("strategy panicked: %v", p)
		}
	}()

	rc, err := open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	model, err = s.Decode(rc)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, errors.New("strategy produced no model")
	}
	return model, nil
}

func (l *Loader) reportExhausted(out Outcome) {
	if l.metrics != nil {
		l.metrics.LoadExhaustedInc()
	}
	log.Warn().Err(out.Err()).Str("source", out.Source).Msg("artifact could not be loaded")
}
