package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jo-hoe/clipcast/internal/clips"
	appcfg "github.com/jo-hoe/clipcast/internal/config"
	"github.com/jo-hoe/clipcast/internal/pipeline"
	"github.com/jo-hoe/clipcast/internal/scrape"
	"github.com/jo-hoe/clipcast/internal/script"
	"github.com/jo-hoe/clipcast/internal/script/aiproxy"
	scriptmock "github.com/jo-hoe/clipcast/internal/script/mock"
	"github.com/jo-hoe/clipcast/internal/server"
	"github.com/jo-hoe/clipcast/internal/storage"
	"github.com/jo-hoe/clipcast/internal/tts"
	"github.com/jo-hoe/clipcast/internal/tts/elevenlabs"
	ttsmock "github.com/jo-hoe/clipcast/internal/tts/mock"
	"github.com/jo-hoe/clipcast/internal/worker"
)

func main() {
	// Load config first so the log level is configurable
	cfg, err := appcfg.Load("")
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	// Store (SQLite)
	store, err := clips.NewSQLiteStore(cfg.Server.DatabasePath)
	if err != nil {
		logger.Error("sqlite open", "err", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	// Audio artifacts
	artifacts := storage.NewLocalStore(cfg.Server.StorageDir, cfg.Server.PublicBaseURL)

	// Script writer
	var writer script.Writer
	switch cfg.LLM.Provider {
	case "mock":
		writer = scriptmock.New(cfg.LLM.Mock)
	case "aiproxy":
		writer = aiproxy.New(cfg.LLM.AIProxy)
	default:
		logger.Error("unsupported llm provider", "provider", cfg.LLM.Provider)
		os.Exit(1)
	}

	// Speech synthesizer
	var synth tts.Synthesizer
	switch cfg.TTS.Provider {
	case "mock":
		synth = ttsmock.New(cfg.TTS.Mock)
	case "elevenlabs":
		synth = elevenlabs.New(cfg.TTS.ElevenLabs)
	default:
		logger.Error("unsupported tts provider", "provider", cfg.TTS.Provider)
		os.Exit(1)
	}

	// Processing worker
	p := pipeline.New(logger, scrape.New(cfg.Scrape), writer, synth, artifacts)
	w := worker.New(logger, store, p, cfg.Worker)
	rootCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		w.Run(rootCtx)
	}()

	// HTTP server
	svc := &server.Service{
		Log:       logger,
		Cfg:       cfg,
		Store:     store,
		Artifacts: artifacts,
		AudioDir:  artifacts.Dir(),
	}
	httpSrv := server.NewHTTPServer(svc)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "address", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err.Error() != "http: Server closed" {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for signal or server error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "err", err)
		}
	}

	// Graceful shutdown
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	cancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("worker did not stop within shutdown grace")
	}
	logger.Info("server stopped")
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
