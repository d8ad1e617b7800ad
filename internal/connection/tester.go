// Package connection checks a vendor API key against the vendor's list-models
// endpoint without running a completion.
package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/vnmchuo/teleaon-gateway/config"
	"github.com/vnmchuo/teleaon-gateway/internal/logging"
	"github.com/vnmchuo/teleaon-gateway/internal/provider"
)

const anthropicVersion = "2023-06-01"

// Result is always returned, success or not.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Tester struct {
	endpoints map[string]string
	transport *provider.Transport
	logger    *slog.Logger
}

// Endpoints derives the list-models URL of every configured provider.
func Endpoints(cfg *config.Config) map[string]string {
	out := make(map[string]string, len(cfg.Providers))
	for name := range cfg.Providers {
		base := cfg.BaseURL(name)
		if name == config.Gemini {
			out[name] = base + "/v1beta/models"
			continue
		}
		out[name] = base + "/models"
	}
	return out
}

func NewTester(endpoints map[string]string, transport *provider.Transport, logger *slog.Logger) *Tester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tester{endpoints: endpoints, transport: transport, logger: logger}
}

// Test issues one GET against apiBase, or the provider's default endpoint when
// apiBase is empty. The key never appears in the returned message.
func (t *Tester) Test(ctx context.Context, providerName, apiKey, apiBase string) Result {
	name := strings.ToLower(providerName)

	base := apiBase
	if base == "" {
		base = t.endpoints[name]
	}
	if base == "" {
		return Result{Success: false, Message: "Unknown provider"}
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	switch name {
	case config.Anthropic:
		header.Set("x-api-key", apiKey)
		header.Set("anthropic-version", anthropicVersion)
	case config.Gemini:
		// key travels in the query string
	default:
		header.Set("Authorization", "Bearer "+apiKey)
	}

	target := testURL(name, base, apiKey)
	t.logger.Info("testing provider connection",
		"provider", name,
		"url", logging.Redact(target, apiKey, url.QueryEscape(apiKey)),
		"api_key", logging.MaskKey(apiKey),
	)

	res, err := t.transport.Do(ctx, provider.Call{
		Provider: name,
		Method:   http.MethodGet,
		URL:      target,
		Header:   header,
	})
	if err != nil {
		msg := redact("Test failed: "+err.Error(), apiKey)
		t.logger.Warn("provider connection test error", "provider", name, "error", msg)
		return Result{Success: false, Message: msg}
	}

	if res.OK() {
		return Result{Success: true, Message: "Connection successful!"}
	}

	msg := redact(fmt.Sprintf("Connection failed: %d - %s", res.StatusCode, failureDetail(res.Body)), apiKey)
	t.logger.Info("provider connection test failed", "provider", name, "status", res.StatusCode)
	return Result{Success: false, Message: msg}
}

// testURL points base at the models listing. Gemini additionally takes the
// key as a query parameter.
func testURL(name, base, apiKey string) string {
	if name == config.Gemini {
		u := base
		if !strings.Contains(u, "/models") {
			u = strings.TrimSuffix(u, "/") + "/models"
		}
		return u + "?key=" + url.QueryEscape(apiKey)
	}
	if strings.Contains(base, "/models") {
		return base
	}
	return strings.TrimSuffix(base, "/") + "/models"
}

// failureDetail prefers error.message, then message, then the first 100
// characters of the raw body.
func failureDetail(body []byte) string {
	var parsed struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		var nested struct {
			Message string `json:"message"`
		}
		if len(parsed.Error) > 0 && json.Unmarshal(parsed.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return truncate(string(body), 100)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func redact(s, apiKey string) string {
	return logging.Redact(s, apiKey, url.QueryEscape(apiKey))
}
