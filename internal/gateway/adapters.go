package gateway

import (
	"log/slog"

	"github.com/vnmchuo/teleaon-gateway/config"
	"github.com/vnmchuo/teleaon-gateway/internal/provider"
	"github.com/vnmchuo/teleaon-gateway/internal/provider/anthropic"
	"github.com/vnmchuo/teleaon-gateway/internal/provider/gemini"
	"github.com/vnmchuo/teleaon-gateway/internal/provider/openai"
	"github.com/vnmchuo/teleaon-gateway/internal/provider/openrouter"
)

// Adapters builds one adapter per Kind from the configured endpoints.
func Adapters(cfg *config.Config, transport *provider.Transport, logger *slog.Logger) map[Kind]provider.Provider {
	return map[Kind]provider.Provider{
		OpenRouter: openrouter.New(cfg.BaseURL(config.OpenRouter), openrouter.Branding{
			Referer: cfg.OpenRouter.Referer,
			Title:   cfg.OpenRouter.Title,
		}, transport),
		Anthropic: anthropic.New(cfg.BaseURL(config.Anthropic), transport),
		OpenAI:    openai.New(cfg.BaseURL(config.OpenAI), transport),
		Gemini: gemini.New(cfg.BaseURL(config.Gemini), transport,
			gemini.WithLogger(logger),
			gemini.WithDiagnostics(cfg.GeminiDiagnostics),
		),
		Groq:     openai.NewCompatible(config.Groq, cfg.BaseURL(config.Groq), transport),
		DeepSeek: openai.NewCompatible(config.DeepSeek, cfg.BaseURL(config.DeepSeek), transport),
	}
}
