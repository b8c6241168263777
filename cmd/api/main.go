package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/duotalk/duo-talk-gm/internal/artifacts"
	"github.com/duotalk/duo-talk-gm/internal/config"
	"github.com/duotalk/duo-talk-gm/internal/handlers"
	"github.com/duotalk/duo-talk-gm/internal/logger"
	"github.com/duotalk/duo-talk-gm/internal/middleware"
	"github.com/duotalk/duo-talk-gm/internal/services"
	"github.com/duotalk/duo-talk-gm/pkg/gm"
	"github.com/duotalk/duo-talk-gm/pkg/scenario"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg)

	log.Info("Starting GM API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"data_dir", cfg.DataDir,
		"retry_budget", cfg.RetryBudget)

	registry, err := scenario.LoadRegistry(filepath.Join(cfg.DataDir, "registry.yaml"))
	if err != nil {
		log.Error("Failed to load scenario registry", "error", err)
		os.Exit(1)
	}
	log.Info("Scenario registry loaded", "scenarios", registry.IDs())

	storage := services.NewRedisStorage(cfg.RedisURL, registry, log)
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer storageCancel()

	if err := storage.WaitForConnection(storageCtx); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	artifactWriter := artifacts.NewWriter(cfg.ArtifactDir, log)

	// HTTP framing: no generator is injected, so preflight soft-retry
	// verdicts are returned to the caller instead of retried in-turn.
	stepper := gm.NewStepper(log, cfg.RetryBudget, nil)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(storage, log)
	mux.Handle("/health", healthHandler)

	stepHandler := handlers.NewStepHandler(stepper, storage, artifactWriter, log)
	mux.Handle("/v1/step", stepHandler)

	sessionHandler := handlers.NewSessionHandler(storage, stepper, artifactWriter, log)
	mux.Handle("/v1/sessions", sessionHandler)
	mux.Handle("/v1/sessions/", sessionHandler)

	scenarioHandler := handlers.NewScenarioHandler(log, storage)
	mux.Handle("/v1/scenarios", scenarioHandler)
	mux.Handle("/v1/scenarios/", scenarioHandler)

	handler := middleware.Logger(mux)
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	if err := storage.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Server exited")
}
