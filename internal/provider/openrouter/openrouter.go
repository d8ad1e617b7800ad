// Package openrouter wires the OpenRouter chat endpoint. OpenRouter routes
// cross-vendor model ids itself, so the model is passed through unchanged.
package openrouter

import (
	"github.com/vnmchuo/teleaon-gateway/internal/provider"
	"github.com/vnmchuo/teleaon-gateway/internal/provider/openai"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Branding holds the static attribution headers OpenRouter asks clients to send.
type Branding struct {
	Referer string
	Title   string
}

func New(baseURL string, branding Branding, transport *provider.Transport) provider.Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return openai.NewChatProvider("openrouter", "OpenRouter", baseURL, transport,
		openai.WithHeader("HTTP-Referer", branding.Referer),
		openai.WithHeader("X-Title", branding.Title),
	)
}
