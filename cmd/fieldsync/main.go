// Package main is the entry point for the fieldsync agent.
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/fieldops/fieldsync/cmd/fieldsync/app"
)

func main() {
	// A missing .env file is normal outside development
	_ = godotenv.Load()

	// stdout is reserved for command output such as version --format json
	logger := newLogger(os.Stderr, logSettingsFromEnv())
	slog.SetDefault(logger)

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
