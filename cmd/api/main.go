package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slidedeck-ai/internal/app"
	"slidedeck-ai/internal/config"
	"slidedeck-ai/internal/http"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API turns uploaded documents into grounded slide decks.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: Slidedeck AI API
//   description: |
//     Generates slide decks from PDF, text and markdown documents. Every bullet
//     carries provenance back to the source chunks it was drawn from.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
//   - multipart/form-data
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	tuning, err := config.LoadTuning(cfg.PipelineConfig)
	if err != nil {
		log.Fatalf("Failed to load pipeline tuning: %v", err)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, tuning)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		_ = a.Close()
	}()
	slog.Info("Pipeline initialized",
		"provider", cfg.LLMProvider,
		"vector_backend", cfg.VectorBackend,
		"llm_max_in_flight", cfg.LLMMaxInFlight,
		"section_parallelism", cfg.SectionParallelism,
	)

	// Create router with dependencies
	deps := &http.Deps{
		DeckService:   a.DeckService(cfg.OutputDir),
		VectorStore:   a.Vectors,
		DB:            a.DB,
		Collection:    cfg.QdrantCollection,
		ChunkDefaults: cfg.ChunkParams,
	}
	router := http.NewRouter(deps)

	addr := ":" + cfg.APIPort
	server := &nethttp.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Starting API server", "addr", addr)
		slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Fatalf("API server failed to start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
}
