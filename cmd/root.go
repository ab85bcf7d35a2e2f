// Package cmd provides the coursekit CLI.
//
// Commands:
//   - serve: HTTP API server (ingests the docs folder at startup)
//   - ask: answer a single question from the terminal
//   - ingest: index transcript files without serving
//   - version: build information
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/coursekit/coursekit/internal/app"
	"github.com/coursekit/coursekit/internal/config"
	"github.com/coursekit/coursekit/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "coursekit",
	Short: "Question answering over course transcripts",
	Long: `Coursekit answers natural-language questions over a corpus of course
transcripts. It combines semantic retrieval with a tool-calling language
model agent: the model decides, turn by turn, whether to search course
content or fetch a course outline before answering.`,
	SilenceUsage: true,
}

// Execute runs the CLI. A .env file in the working directory is loaded first
// so API keys can live outside the shell profile.
func Execute() error {
	_ = godotenv.Load()
	return rootCmd.Execute()
}

// loadApp loads and validates configuration, installs the logger, and
// assembles the application.
func loadApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	slog.SetDefault(logger)

	return app.New(cfg, logger)
}
