package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vnmchuo/teleaon-gateway/config"
	"github.com/vnmchuo/teleaon-gateway/internal/logging"
	"github.com/vnmchuo/teleaon-gateway/internal/telemetry"
)

// errReported marks a failure the command already printed.
var errReported = errors.New("reported")

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "gateway",
	Short:         "Teleaon LLM gateway",
	Long:          `Normalizes chat completions across OpenRouter, Anthropic, OpenAI, Gemini, Groq and DeepSeek behind one HTTP API.`,
	Version:       telemetry.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger, err = logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		return nil
	},
	// With no subcommand the server starts.
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context(), cfg, logger)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(testCmd)
}
