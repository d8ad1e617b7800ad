package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/vnmchuo/teleaon-gateway/internal/logging"
	"github.com/vnmchuo/teleaon-gateway/internal/provider"
)

const (
	DefaultBaseURL  = "https://generativelanguage.googleapis.com"
	FallbackModel   = "gemini-1.5-flash"
	maxOutputTokens = 2048
)

// Attempt is one (model, API version) pair the adapter tries.
type Attempt struct {
	Model   string
	Version string
}

type GeminiProvider struct {
	baseURL     string
	transport   *provider.Transport
	logger      *slog.Logger
	diagnostics bool
}

type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"system_instruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata"`
	ModelVersion  string               `json:"modelVersion"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type listModelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

type Option func(*GeminiProvider)

// WithLogger sets the logger used for attempt and diagnostic output.
func WithLogger(l *slog.Logger) Option {
	return func(p *GeminiProvider) { p.logger = l }
}

// WithDiagnostics toggles the list-models call made after the last attempt fails.
func WithDiagnostics(enabled bool) Option {
	return func(p *GeminiProvider) { p.diagnostics = enabled }
}

func New(baseURL string, transport *provider.Transport, opts ...Option) *GeminiProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	p := &GeminiProvider{
		baseURL:     baseURL,
		transport:   transport,
		logger:      slog.Default(),
		diagnostics: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ResolveModel strips a google/ prefix and pins gemini-2.0-flash ids to the
// experimental release.
func ResolveModel(model string) string {
	m := strings.Replace(model, "google/", "", 1)
	if strings.Contains(m, "gemini-2.0-flash") {
		m = "gemini-2.0-flash-exp"
	}
	return m
}

// Plan lists the attempts in order: the requested model on v1beta, then the
// stable fallback on v1. Only a 404 moves on to the next attempt.
func Plan(requested string) []Attempt {
	return []Attempt{
		{Model: ResolveModel(requested), Version: "v1beta"},
		{Model: FallbackModel, Version: "v1"},
	}
}

func (p *GeminiProvider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	body := p.mapRequest(req)
	attempts := Plan(req.Model)

	var lastErr error
	for i, a := range attempts {
		resp, err := p.try(ctx, req.APIKey, a, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if i == len(attempts)-1 {
			break
		}
		if !provider.IsNotFound(err) {
			return nil, err
		}
		p.logger.Info("gemini model not found, trying fallback",
			"model", a.Model, "version", a.Version, "next_model", attempts[i+1].Model, "next_version", attempts[i+1].Version)
	}

	p.logger.Error("gemini fallback failed", "error", logging.Redact(lastErr.Error(), req.APIKey))
	if p.diagnostics {
		p.diagnose(ctx, req.APIKey)
	}
	return nil, lastErr
}

func (p *GeminiProvider) try(ctx context.Context, apiKey string, a Attempt, body geminiRequest) (*provider.Response, error) {
	p.logger.Debug("gemini attempt", "model", a.Model, "version", a.Version)

	res, err := p.transport.Do(ctx, provider.Call{
		Provider: "Gemini",
		URL:      fmt.Sprintf("%s/%s/models/%s:generateContent?key=%s", p.baseURL, a.Version, a.Model, url.QueryEscape(apiKey)),
		Body:     body,
	})
	if err != nil {
		return nil, err
	}
	if err := res.Err("Gemini"); err != nil {
		return nil, err
	}

	var geminiResp geminiResponse
	if err := provider.DecodeJSON("Gemini", res, &geminiResp); err != nil {
		return nil, err
	}

	out := &provider.Response{Model: geminiResp.ModelVersion}
	if out.Model == "" {
		out.Model = a.Model
	}
	if len(geminiResp.Candidates) > 0 && len(geminiResp.Candidates[0].Content.Parts) > 0 {
		out.Content = geminiResp.Candidates[0].Content.Parts[0].Text
	}
	if u := geminiResp.UsageMetadata; u != nil {
		out.Usage = &provider.Usage{
			PromptTokens:     u.PromptTokenCount,
			CompletionTokens: u.CandidatesTokenCount,
			TotalTokens:      u.TotalTokenCount,
		}
	}
	return out, nil
}

// diagnose logs which models the key can see. Its outcome never reaches the caller.
func (p *GeminiProvider) diagnose(ctx context.Context, apiKey string) {
	res, err := p.transport.Do(ctx, provider.Call{
		Provider: "Gemini",
		Method:   http.MethodGet,
		URL:      fmt.Sprintf("%s/v1beta/models?key=%s", p.baseURL, url.QueryEscape(apiKey)),
	})
	if err != nil {
		p.logger.Warn("gemini diagnostic list models failed", "error", logging.Redact(err.Error(), apiKey, url.QueryEscape(apiKey)))
		return
	}
	if !res.OK() {
		p.logger.Warn("gemini diagnostic list models failed", "status", res.StatusCode)
		return
	}

	var list listModelsResponse
	if err := provider.DecodeJSON("Gemini", res, &list); err != nil {
		p.logger.Warn("gemini diagnostic list models failed", "error", err)
		return
	}
	names := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		names = append(names, m.Name)
	}
	p.logger.Info("gemini diagnostic: models available for this key", "models", names)
}

func (p *GeminiProvider) mapRequest(req *provider.Request) geminiRequest {
	system, hasSystem, rest := provider.SystemPrompt(req.Messages)

	contents := make([]geminiContent, len(rest))
	for i, m := range rest {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents[i] = geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		}
	}

	gr := geminiRequest{
		Contents:         contents,
		GenerationConfig: generationConfig{MaxOutputTokens: maxOutputTokens},
	}
	if hasSystem {
		gr.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	return gr
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}
