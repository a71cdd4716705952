package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"msgclf/internal/artifact"
	"msgclf/internal/cfg"
	"msgclf/internal/dashboard"
	"msgclf/internal/metrics"
	"msgclf/internal/ml"
	"msgclf/internal/storage"
)

const purgeInterval = 5 * time.Minute

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	// Setup logging
	zerolog.SetGlobalLevel(c.Level())
	if c.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize components
	m := metrics.New()
	mw := metrics.NewWrapper(m)
	store := initializeStorage(c)
	defer store.Close()

	labels, err := ml.LabelsForProfile(c.Profile, c.FlaggedValues)
	if err != nil {
		log.Fatal().Err(err).Msg("label mapping")
	}

	loader := artifact.NewLoader(
		artifact.WithDefaultPath(c.ModelPath),
		artifact.WithMetrics(mw),
		artifact.WithHTTPClient(artifact.NewHTTPClient(c.FetchTimeout)),
		artifact.WithMaxBytes(c.MaxUploadBytes),
	)
	adapter := ml.NewAdapter(ml.AdapterConfig{Labels: labels, Workers: c.BatchWorkers}, mw)
	holder := ml.NewHolder()

	srv := dashboard.NewServer(dashboard.Config{
		Profile:        c.Profile,
		Addr:           c.Addr(),
		ModelPath:      c.ModelPath,
		ExportName:     c.ExportFileName(),
		MaxUploadBytes: c.MaxUploadBytes,
		CacheSize:      c.CacheSize,
	}, holder, loader, adapter, store, mw)

	loadInitialModel(ctx, c, loader, holder, srv)

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("dashboard start failed")
	}

	// Start background goroutines
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		storage.RunPurger(ctx, store, c.ResultTTL, purgeInterval)
	}()

	// Wait for shutdown signal
	waitForShutdown(ctx, cancel, &wg)

	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("dashboard stop failed")
	}
}

// initializeStorage opens the result store, falling back to memory when the
// data directory is unset or unusable.
func initializeStorage(c cfg.Settings) storage.ResultStore {
	store, err := storage.Open(c.ResultsPath())
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, keeping results in memory")
		return storage.NewMemory()
	}
	if c.ResultsPath() != "" {
		log.Info().Str("path", c.ResultsPath()).Dur("ttl", c.ResultTTL).Msg("result store opened")
	}
	return store
}

// loadInitialModel tries the local artifact, then the remote one when
// configured. If both fail the dashboard starts degraded and waits for an
// uploaded artifact.
func loadInitialModel(ctx context.Context, c cfg.Settings, loader *artifact.Loader, holder *ml.Holder, srv *dashboard.Server) {
	out := loader.LoadFromPath("")
	if out.OK() {
		if err := srv.Install(out, ""); err != nil {
			log.Error().Err(err).Msg("model install failed")
		}
		return
	}
	log.Warn().Err(out.Err()).Str("path", c.ModelPath).Msg("local artifact could not be loaded")

	if c.ArtifactURL != "" {
		remote := loader.LoadFromURL(ctx, c.ArtifactURL)
		if remote.OK() {
			if err := srv.Install(remote, ""); err != nil {
				log.Error().Err(err).Msg("model install failed")
			}
			return
		}
		log.Warn().Err(remote.Err()).Str("url", c.ArtifactURL).Msg("remote artifact could not be loaded")
	}

	holder.MarkPathFailed(out.Err())
}

// waitForShutdown waits for shutdown signals and handles graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}
