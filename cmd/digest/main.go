// Package main provides the digest CLI: summarize arXiv papers, run the watch
// list and browse the report archive.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/helixir/paper-digest-service/internal/app"
	"github.com/helixir/paper-digest-service/internal/config"
)

// Version is set at build time via ldflags.
var Version = "dev"

var (
	configPath string
	envFile    string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "digest",
	Short: "Summarize arXiv papers with a language model",
	Long: `digest resolves an arXiv reference, downloads the paper, splits its
text into chunks, summarizes them with a language model and renders the
consolidated report as Markdown, JSON or YAML.

Settings come from config.yaml, DIGEST_* environment variables and an
optional .env file. API keys are read from the environment only.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./config.yaml, ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	rootCmd.Version = Version
}

// loadConfig reads the env file, then the configuration. CLI logs go to
// stderr so stdout carries only rendered output. Commands that never call
// the language model pass needLLM false.
func loadConfig(needLLM bool) (*config.Config, zerolog.Logger, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, zerolog.Nop(), fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	load := config.LoadFile
	if !needLLM {
		load = config.LoadFileWithoutLLM
	}
	cfg, err := load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger := app.NewLoggerTo(cfg.Logging, os.Stderr).With().Str("component", "cli").Logger()
	return cfg, logger, nil
}
