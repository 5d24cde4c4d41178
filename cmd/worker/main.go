package main

import (
	"context"
	"database/sql"
	"os/signal"
	"syscall"
	"time"

	"meditation/internal/config"
	"meditation/internal/logger"
	"meditation/internal/pgmq"
	"meditation/internal/storage"
	"meditation/internal/worker/cleanup"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

func main() {
	// Initialize logger
	logger := logger.New()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	// Load config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize DB connection
	db, err := sql.Open("pgx", cfg.DBConnectionString)
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB connection: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Msgf("Failed to ping DB: %v", err)
	}
	logger.Info().Msg("Database connection established")

	// Initialize PGMQ client
	pgmqClient := pgmq.New(db)
	if err := pgmqClient.EnsureQueues(ctx, cfg.CleanupQueueName, cfg.CleanupDeadLetterQueueName); err != nil {
		logger.Fatal().Msgf("Failed to prepare queues: %v", err)
	}
	logger.Info().Msg("PGMQ client initialized")

	// Initialize blob store
	s3Client, err := storage.NewS3Client(ctx, cfg)
	if err != nil {
		logger.Fatal().Msgf("Failed to load S3 config: %v", err)
	}
	blobs := storage.NewS3Store(s3Client, cfg.S3Bucket, cfg.PublicObjectBaseURL(), logger)

	worker := cleanup.NewWorker(pgmqClient, blobs, cleanup.Options{
		Queue:           cfg.CleanupQueueName,
		DeadLetterQueue: cfg.CleanupDeadLetterQueueName,
		PollTimeoutSec:  cfg.CleanupPollTimeoutSec,
		PollMaxMsg:      cfg.CleanupPollMaxMsg,
		MaxRetries:      cfg.CleanupMaxRetries,
		BackoffInitial:  time.Duration(cfg.CleanupBackoffInitialSec) * time.Second,
		BackoffMax:      time.Duration(cfg.CleanupBackoffMaxSec) * time.Second,
	}, logger)

	if err := worker.Run(ctx); err != nil {
		logger.Fatal().Msgf("cleanup worker failed: %v", err)
	}
	logger.Info().Msg("cleanup worker stopped gracefully")
}
