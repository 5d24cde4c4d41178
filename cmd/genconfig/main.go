package main

import (
	"bytes"
	"os"
	"path/filepath"

	"meditation/internal/clientconfig"
	"meditation/internal/logger"

	"github.com/docopt/docopt-go"
	"github.com/joho/godotenv"
)

const version = "1.0.0"

func main() {
	usage := `Generate the browser runtime config.

Reads the environment (and an optional env file) and writes a script that
assigns the public client configuration to window.appConfig.

Usage:
    genconfig [--env=<file>] [--out=<path>]
    genconfig -h | --help
    genconfig --version

Options:
    -h --help       Show this screen.
    --version       Show version.
    --env=<file>    Env file to load [default: .env].
    --out=<path>    Output file [default: public/app-config.js].`

	log := logger.New()

	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid arguments")
	}
	envFile, _ := opts.String("--env")
	out, _ := opts.String("--out")

	if err := godotenv.Load(envFile); err != nil {
		log.Warn().Str("file", envFile).Msg("Warning: no env file found")
	}

	cfg, err := clientconfig.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading client config")
	}

	var buf bytes.Buffer
	if err := clientconfig.Render(&buf, cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to render client config")
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create output directory")
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		log.Fatal().Err(err).Msg("Failed to write client config")
	}
	log.Info().Str("path", out).Msg("Client config generated")
}
