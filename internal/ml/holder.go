package ml

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrModelAlreadyLoaded is returned when installing over a ready model.
	ErrModelAlreadyLoaded = errors.New("a model is already loaded")
	// ErrPredictionDisabled is returned while no usable model is installed.
	ErrPredictionDisabled = errors.New("prediction features are disabled: no usable model loaded")
)

// ModelState is the availability state of the served model.
type ModelState int

const (
	// StateUnloaded means no load has been attempted yet.
	StateUnloaded ModelState = iota
	// StateReady means a model is installed; it is never replaced afterwards.
	StateReady
	// StateAwaitingArtifact means the local artifact could not be loaded and
	// the operator is invited to upload one.
	StateAwaitingArtifact
	// StateDisabled means the supplied artifact could not be loaded either.
	StateDisabled
)

func (s ModelState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateReady:
		return "ready"
	case StateAwaitingArtifact:
		return "awaiting_artifact"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the holder.
type Status struct {
	State             string     `json:"state"`
	PredictionEnabled bool       `json:"prediction_enabled"`
	Strategy          string     `json:"strategy,omitempty"`
	Source            string     `json:"source,omitempty"`
	Substitutions     []string   `json:"substitutions,omitempty"`
	LoadedAt          *time.Time `json:"loaded_at,omitempty"`
	LastError         string     `json:"last_error,omitempty"`
}

// Holder owns the served model and its availability state.
type Holder struct {
	mu            sync.RWMutex
	state         ModelState
	model         PredictorInterface
	strategy      string
	source        string
	substitutions []string
	loadedAt      time.Time
	lastErr       error
}

// NewHolder creates a holder in StateUnloaded.
func NewHolder() *Holder {
	return &Holder{}
}

// Install stores a successfully loaded model and enables prediction.
func (h *Holder) Install(model PredictorInterface, strategy, source string, substitutions []string) error {
	if model == nil {
		return errors.New("cannot install a nil model")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateReady {
		return ErrModelAlreadyLoaded
	}

	h.state = StateReady
	h.model = model
	h.strategy = strategy
	h.source = source
	h.substitutions = substitutions
	h.loadedAt = time.Now()
	h.lastErr = nil

	log.Info().
		Str("strategy", strategy).
		Str("source", source).
		Strs("substitutions", substitutions).
		Msg("model installed")
	return nil
}

// MarkPathFailed records that the local artifact could not be loaded.
func (h *Holder) MarkPathFailed(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != StateUnloaded {
		return
	}
	h.state = StateAwaitingArtifact
	h.lastErr = err
	log.Warn().Err(err).Msg("local artifact unavailable, waiting for an uploaded artifact")
}

// MarkUploadFailed records that a supplied artifact could not be loaded.
func (h *Holder) MarkUploadFailed(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateReady {
		return
	}
	h.state = StateDisabled
	h.lastErr = err
	log.Error().Err(err).Msg("supplied artifact could not be loaded, prediction disabled")
}

// State returns the current state.
func (h *Holder) State() ModelState {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// PredictionEnabled reports whether predictions may be served.
func (h *Holder) PredictionEnabled() bool {
	return h.State() == StateReady
}

// Model returns the installed model or ErrPredictionDisabled.
func (h *Holder) Model() (PredictorInterface, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.state != StateReady {
		return nil, ErrPredictionDisabled
	}
	return h.model, nil
}

// Status returns a snapshot for display.
func (h *Holder) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := Status{
		State:             h.state.String(),
		PredictionEnabled: h.state == StateReady,
		Strategy:          h.strategy,
		Source:            h.source,
		Substitutions:     h.substitutions,
	}
	if !h.loadedAt.IsZero() {
		loadedAt := h.loadedAt
		st.LoadedAt = &loadedAt
	}
	if h.lastErr != nil {
		st.LastError = h.lastErr.Error()
	}
	return st
}
