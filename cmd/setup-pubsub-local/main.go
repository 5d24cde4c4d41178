package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"meditation/internal/config"
	"meditation/internal/logger"
	"meditation/internal/pubsub"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/docopt/docopt-go"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

func main() {
	usage := `Provision the program events topic on the Pub/Sub emulator.

Usage:
    setup-pubsub-local [--reset] [--push=<url>]
    setup-pubsub-local -h | --help

Options:
    -h --help       Show this screen.
    --reset         Delete every topic and subscription on the emulator first.
    --push=<url>    Push endpoint for the events subscription [default: ].`

	opts, err := docopt.ParseArgs(usage, os.Args[1:], "")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	reset, _ := opts.Bool("--reset")
	push, _ := opts.String("--push")

	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, relying on system environment variables.")
	}

	logger := logger.New()
	logger.Info().Msg("Starting Pub/Sub setup for the local environment.")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}
	if cfg.GCPProjectID == "" {
		logger.Fatal().Msg("GCP_PROJECT_ID is not set in the environment.")
	}
	if cfg.PubSubEmulatorHost == "" {
		logger.Fatal().Msg("PUBSUB_EMULATOR_HOST must be set for local environment.")
	}

	plan, err := pubsub.PlanFor(cfg.PubSubProgramsTopic, push)
	if err != nil {
		logger.Fatal().Err(err).Msg("PUBSUB_PROGRAMS_TOPIC is not set in the environment.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := gpubsub.NewClient(ctx, cfg.GCPProjectID,
		option.WithEndpoint(cfg.PubSubEmulatorHost),
		option.WithoutAuthentication(),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Pub/Sub client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close pubsub client")
		}
	}()

	p := pubsub.NewProvisioner(client, logger)
	if reset {
		if err := p.Reset(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to reset emulator")
		}
	}
	if err := p.Apply(ctx, plan); err != nil {
		logger.Fatal().Err(err).Msg("Failed to provision program events")
	}

	logger.Info().Str("topic", plan.Topic).Str("subscription", plan.Subscription).Msg("Pub/Sub setup for local environment complete.")
}
