package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/webmonitor/config"
	"sjsage522/webmonitor/helpers"
	"sjsage522/webmonitor/internal"
	"sjsage522/webmonitor/logger"
	"sjsage522/webmonitor/services/scheduler"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("check_interval", cfg.CheckInterval).
		Int("workers", cfg.WorkerCount).
		Str("fetcher", cfg.FetcherMode).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	deps, err := internal.NewDependencies(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer deps.Cleanup()

	errorLog := helpers.NewLogger(cfg.ErrorLogFile)
	checker := deps.NewChecker(cfg, errorLog)

	var trimmer scheduler.StreamTrimmer
	if deps.Publisher != nil {
		trimmer = deps.Publisher
	}

	s := scheduler.NewScheduler(deps.Store, checker, trimmer, errorLog, cfg.CheckInterval, cfg.WorkerCount)

	schedulerDone := make(chan struct{})
	go func() {
		log.Info().Msg("Starting web monitor scheduler")
		s.Run(ctx)
		close(schedulerDone)
	}()

	// Wait for shutdown signal
	sig := <-sigChan
	log.Info().
		Str("signal", sig.String()).
		Msg("Received shutdown signal")
	cancel()

	// Graceful shutdown: in-flight checks finish before services close
	log.Info().Msg("Shutting down gracefully...")
	<-schedulerDone
}
