// Package dashboard serves the message-classification dashboard.
//
// It renders a single HTML page for one profile (sentiment or spam), exposes
// a JSON API for single and bulk prediction, model upload and result export,
// and streams the running session counters to connected browsers over a
// WebSocket. Prediction routes answer 503 until a model is installed.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"msgclf/internal/artifact"
	"msgclf/internal/common"
	"msgclf/internal/metrics"
	"msgclf/internal/ml"
	"msgclf/internal/session"
	"msgclf/internal/storage"
)

const (
	sessionCookie   = "msgclf_session"
	sessionIdleTTL  = 12 * time.Hour
	janitorInterval = 10 * time.Minute
)

// MetricsInterface defines metrics methods needed by the dashboard
type MetricsInterface interface {
	Label(label string) metrics.MetricsCounter
	UploadsRejected() metrics.MetricsCounter
	Errors() metrics.MetricsCounter
	WSClients() metrics.MetricsGauge
	SetModelReady(ready bool)
}

// Config holds the dashboard settings.
type Config struct {
	Profile        string
	Addr           string
	ModelPath      string
	ExportName     string
	MaxUploadBytes int64
	CacheSize      int
	// MetricsHandler serves /metrics; promhttp.Handler() when nil.
	MetricsHandler http.Handler
}

// Server is the dashboard HTTP server.
type Server struct {
	config   Config
	holder   *ml.Holder
	loader   *artifact.Loader
	adapter  *ml.Adapter
	store    storage.ResultStore
	sessions *session.Registry
	metrics  MetricsInterface
	validate *validator.Validate
	hub      *hub

	router      http.Handler
	server      *http.Server
	stopChannel chan struct{}
	isRunning   bool
	mu          sync.Mutex
}

// NewServer wires the dashboard around an existing holder, loader and
// adapter. metrics may be nil.
func NewServer(config Config, holder *ml.Holder, loader *artifact.Loader, adapter *ml.Adapter,
	store storage.ResultStore, m MetricsInterface,
) *Server {
	if config.ExportName == "" {
		config.ExportName = common.DefaultSentimentExport
	}
	if config.MaxUploadBytes <= 0 {
		config.MaxUploadBytes = common.DefaultMaxUploadBytes
	}
	if config.MetricsHandler == nil {
		config.MetricsHandler = promhttp.Handler()
	}

	s := &Server{
		config:      config,
		holder:      holder,
		loader:      loader,
		adapter:     adapter,
		store:       store,
		sessions:    session.NewRegistry(),
		metrics:     m,
		validate:    validator.New(),
		hub:         newHub(m),
		stopChannel: make(chan struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleDashboard).Methods("GET")
	r.HandleFunc("/api/model", s.handleModelStatus).Methods("GET")
	r.HandleFunc("/api/model", s.handleModelUpload).Methods("POST")
	r.HandleFunc("/api/predict", s.handlePredict).Methods("POST")
	r.HandleFunc("/api/batch", s.handleBatch).Methods("POST")
	r.HandleFunc("/api/export/{id}", s.handleExport).Methods("GET")
	r.HandleFunc("/api/stats", s.handleStats).Methods("GET")
	r.HandleFunc("/api/stats", s.handleStatsReset).Methods("DELETE")
	r.HandleFunc("/ws", s.handleWebSocket).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", config.MetricsHandler).Methods("GET")
	s.router = r

	s.server = &http.Server{
		Addr:              config.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("dashboard is already running")
	}

	go s.sessionJanitor()

	go func() {
		log.Info().
			Str("address", s.server.Addr).
			Str("profile", s.config.Profile).
			Msg("Starting dashboard server")

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Dashboard server failed")
		}
	}()

	s.isRunning = true
	return nil
}

// Stop closes WebSocket clients and shuts the server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	close(s.stopChannel)
	s.hub.closeAll()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown dashboard server")
		return err
	}

	s.isRunning = false
	log.Info().Msg("Dashboard stopped")
	return nil
}

// sessionJanitor drops idle sessions until the server stops.
func (s *Server) sessionJanitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.sessions.Expire(sessionIdleTTL); n > 0 {
				log.Debug().Int("expired", n).Msg("Idle sessions dropped")
			}
		case <-s.stopChannel:
			return
		}
	}
}

// Install puts a successfully loaded model into service, wrapped in a
// prediction cache when one is configured.
func (s *Server) Install(out artifact.Outcome, source string) error {
	if !out.OK() {
		return out.Err()
	}

	model := out.Model
	if s.config.CacheSize > 0 {
		cached, err := ml.NewCachedPredictor(model, s.config.CacheSize)
		if err != nil {
			return fmt.Errorf("wrap model in cache: %w", err)
		}
		model = cached
	}

	if source == "" {
		source = out.Source
	}
	if err := s.holder.Install(model, out.Strategy, source, out.Substitutions); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SetModelReady(true)
	}
	return nil
}

// session returns the caller's counters, issuing a cookie for new sessions.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Stats, string) {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil {
		id = c.Value
	}

	stats, sid := s.sessions.Get(id)
	if sid != id {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sid,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return stats, sid
}

func (s *Server) countLabels(results []ml.PredictionResult) {
	if s.metrics == nil {
		return
	}
	for _, r := range results {
		if r.OK() {
			s.metrics.Label(r.Label).Inc()
		}
	}
}

func (s *Server) rejectUpload() {
	if s.metrics != nil {
		s.metrics.UploadsRejected().Inc()
	}
}

func (s *Server) countError() {
	if s.metrics != nil {
		s.metrics.Errors().Inc()
	}
}

type errorResponse struct {
	Error       string        `json:"error"`
	Remediation string        `json:"remediation,omitempty"`
	Attempts    []attemptView `json:"attempts,omitempty"`
}

type attemptView struct {
	Strategy string `json:"strategy"`
	Error    string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// disabled answers a prediction request made while no model is in service.
func (s *Server) disabled(w http.ResponseWriter) {
	writeJSON(w, http.StatusServiceUnavailable, errorResponse{
		Error:       ml.ErrPredictionDisabled.Error(),
		Remediation: s.remediation(),
	})
}

func (s *Server) remediation() string {
	return fmt.Sprintf(
		"Upload a model artifact (%s) on the dashboard, or place one at %s and restart. "+
			"A working demo artifact can be written with: msgclf-artifact demo -profile %s -out %s",
		joinExtensions(), s.config.ModelPath, s.config.Profile, s.config.ModelPath)
}

func attemptsView(attempts []artifact.StrategyError) []attemptView {
	out := make([]attemptView, len(attempts))
	for i, a := range attempts {
		out[i] = attemptView{Strategy: a.Strategy, Error: a.Err.Error()}
	}
	return out
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}
