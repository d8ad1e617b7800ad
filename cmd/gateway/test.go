package main

import (
	"context"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vnmchuo/teleaon-gateway/internal/connection"
	"github.com/vnmchuo/teleaon-gateway/internal/provider"
)

var (
	testProvider string
	testAPIKey   string
	testAPIBase  string
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Check a provider API key against its list-models endpoint",
	Example: `  gateway test --provider groq --api-key $GROQ_API_KEY
  gateway test --provider gemini --api-key $GEMINI_API_KEY --api-base https://generativelanguage.googleapis.com/v1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		timeout := cfg.HTTPTimeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(cmdContext(cmd), timeout)
		defer cancel()

		transport := provider.NewTransport(&http.Client{}, nil)
		tester := connection.NewTester(connection.Endpoints(cfg), transport, logger)

		color.Blue("Testing %s...", testProvider)
		res := tester.Test(ctx, testProvider, testAPIKey, testAPIBase)
		if !res.Success {
			color.Red("%s", res.Message)
			return errReported
		}
		color.Green("%s", res.Message)
		return nil
	},
}

func init() {
	testCmd.Flags().StringVar(&testProvider, "provider", "", "provider name, e.g. openai or gemini")
	testCmd.Flags().StringVar(&testAPIKey, "api-key", "", "API key to check")
	testCmd.Flags().StringVar(&testAPIBase, "api-base", "", "override the provider's base URL")
	_ = testCmd.MarkFlagRequired("provider")
	_ = testCmd.MarkFlagRequired("api-key")
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
