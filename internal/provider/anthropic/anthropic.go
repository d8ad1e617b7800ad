package anthropic

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vnmchuo/teleaon-gateway/internal/provider"
)

const (
	DefaultBaseURL = "https://api.anthropic.com/v1"
	DefaultModel   = "claude-3-5-sonnet-20240620"
	APIVersion     = "2023-06-01"
	maxTokens      = 4096
)

// Legacy short names mapped to dated model ids.
var aliases = map[string]string{
	"claude-opus-4-5": "claude-3-opus-20240229",
	"claude-sonnet-4": "claude-3-5-sonnet-20240620",
}

type AnthropicProvider struct {
	baseURL   string
	transport *provider.Transport
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Content []anthropicContent `json:"content"`
	Model   string             `json:"model"`
	Usage   *anthropicUsage    `json:"usage"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func New(baseURL string, transport *provider.Transport) *AnthropicProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &AnthropicProvider{
		baseURL:   baseURL,
		transport: transport,
	}
}

// ResolveModel strips an anthropic/ prefix, replaces other vendors' ids with
// DefaultModel and maps legacy short names.
func ResolveModel(model string) string {
	m, ok := provider.StripVendorPrefix(model, "anthropic")
	if !ok {
		m = DefaultModel
	}
	if dated, ok := aliases[m]; ok {
		m = dated
	}
	return m
}

func (p *AnthropicProvider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	anthropicReq := p.mapRequest(req)

	header := http.Header{}
	header.Set("x-api-key", req.APIKey)
	header.Set("anthropic-version", APIVersion)

	res, err := p.transport.Do(ctx, provider.Call{
		Provider: "Anthropic",
		URL:      fmt.Sprintf("%s/messages", p.baseURL),
		Header:   header,
		Body:     anthropicReq,
	})
	if err != nil {
		return nil, err
	}
	if err := res.Err("Anthropic"); err != nil {
		return nil, err
	}

	var anthropicResp anthropicResponse
	if err := provider.DecodeJSON("Anthropic", res, &anthropicResp); err != nil {
		return nil, err
	}

	out := &provider.Response{Model: anthropicResp.Model}
	if out.Model == "" {
		out.Model = anthropicReq.Model
	}
	if len(anthropicResp.Content) > 0 {
		out.Content = anthropicResp.Content[0].Text
	}
	if u := anthropicResp.Usage; u != nil {
		out.Usage = &provider.Usage{
			PromptTokens:     u.InputTokens,
			CompletionTokens: u.OutputTokens,
			TotalTokens:      u.InputTokens + u.OutputTokens,
		}
	}
	return out, nil
}

func (p *AnthropicProvider) mapRequest(req *provider.Request) anthropicRequest {
	system, _, rest := provider.SystemPrompt(req.Messages)

	messages := make([]anthropicMessage, 0, len(rest))
	for _, m := range rest {
		messages = append(messages, anthropicMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	return anthropicRequest{
		Model:     ResolveModel(req.Model),
		MaxTokens: maxTokens,
		System:    system,
		Messages:  messages,
	}
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}
