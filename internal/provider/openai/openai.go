package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vnmchuo/teleaon-gateway/internal/provider"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o"
)

// ChatProvider speaks the OpenAI chat/completions dialect. It backs the OpenAI,
// OpenRouter and generic OpenAI-compatible adapters, which differ only in
// endpoint, headers and model resolution.
type ChatProvider struct {
	id        string // lower-case provider key
	display   string // vendor name used in errors and spans
	baseURL   string
	headers   http.Header
	resolve   func(model string) string
	transport *provider.Transport
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage"`
	Model   string       `json:"model"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Option customises a ChatProvider.
type Option func(*ChatProvider)

// WithHeader adds a static header to every call.
func WithHeader(key, value string) Option {
	return func(p *ChatProvider) { p.headers.Set(key, value) }
}

// WithResolver replaces the model resolution rule.
func WithResolver(resolve func(string) string) Option {
	return func(p *ChatProvider) { p.resolve = resolve }
}

// NewChatProvider builds an adapter for any chat/completions endpoint under baseURL.
func NewChatProvider(id, display, baseURL string, transport *provider.Transport, opts ...Option) *ChatProvider {
	p := &ChatProvider{
		id:        id,
		display:   display,
		baseURL:   baseURL,
		headers:   http.Header{},
		resolve:   func(m string) string { return m },
		transport: transport,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// New returns the direct OpenAI adapter.
func New(baseURL string, transport *provider.Transport) *ChatProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return NewChatProvider("openai", "OpenAI", baseURL, transport, WithResolver(ResolveModel))
}

// ResolveModel keeps openai/ ids (prefix stripped) and bare ids, and replaces
// any other vendor's id with DefaultModel.
func ResolveModel(model string) string {
	if m, ok := provider.StripVendorPrefix(model, "openai"); ok {
		return m
	}
	return DefaultModel
}

func (p *ChatProvider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	model := p.resolve(req.Model)

	header := p.headers.Clone()
	header.Set("Authorization", fmt.Sprintf("Bearer %s", req.APIKey))

	res, err := p.transport.Do(ctx, provider.Call{
		Provider: p.display,
		URL:      fmt.Sprintf("%s/chat/completions", p.baseURL),
		Header:   header,
		Body:     p.mapRequest(model, req),
	})
	if err != nil {
		return nil, err
	}
	if err := res.Err(p.display); err != nil {
		return nil, err
	}

	var chatResp chatResponse
	if err := provider.DecodeJSON(p.display, res, &chatResp); err != nil {
		return nil, err
	}

	out := &provider.Response{Model: chatResp.Model}
	if out.Model == "" {
		out.Model = model
	}
	if len(chatResp.Choices) > 0 {
		out.Content = chatResp.Choices[0].Message.Content
	}
	if chatResp.Usage != nil {
		out.Usage = &provider.Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		}
	}
	return out, nil
}

func (p *ChatProvider) mapRequest(model string, req *provider.Request) chatRequest {
	messages := make([]chatMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = chatMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}

	return chatRequest{
		Model:    model,
		Messages: messages,
	}
}

func (p *ChatProvider) Name() string {
	return p.id
}
