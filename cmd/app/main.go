package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"meditation/internal/api/v1/router"
	"meditation/internal/config"
	"meditation/internal/logger"

	"github.com/joho/godotenv"
)

// @title Meditation Programs API
// @version 1.0
// @description Program catalog, viewer sessions and the admin program editor.
// @host localhost:8080
// @BasePath /v1
// @Schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	logger := logger.New()

	// 1. Load configuration
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background workers outlive the signal until the server has drained.
	runCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// 2. Build router (and get the background components)
	r, rt, err := router.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to build router: %v", err)
	}
	defer rt.Close()

	// 3. Start the change feed and viewer session upkeep
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		rt.Broker.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		rt.Listener.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		rt.Viewers.RunSweeper(runCtx, time.Minute, logger)
	}()
	if _, err := rt.Broker.Subscribe(runCtx, rt.Viewers.Reconcile); err != nil {
		logger.Error().Err(err).Msg("Viewer sessions will not follow program changes")
	}

	// 4. Create HTTP server
	srv := newServer(":"+cfg.Port, r, stopWorkers)

	go func() {
		logger.Info().Msgf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Msgf("Listen: %s", err)
		}
	}()

	// 5. Graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Msgf("Server forced to shutdown: %v", err)
	}
	stopWorkers()
	wg.Wait()
	logger.Info().Msg("Server shut down gracefully")
}
