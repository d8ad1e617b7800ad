package provider

import (
	"context"
	"log/slog"

	"github.com/vnmchuo/teleaon-gateway/internal/logging"
)

// Request is the uniform chat-completion request every adapter accepts.
type Request struct {
	Messages []Message `json:"messages"`
	Model    string    `json:"model"`
	APIKey   string    `json:"apiKey"`
	Provider string    `json:"provider"`
	Stream   bool      `json:"stream,omitempty"`
}

type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Response is the uniform result. Model is the vendor-resolved id actually used.
type Response struct {
	Content string `json:"content"`
	Model   string `json:"model"`
	Usage   *Usage `json:"usage,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Provider is implemented by every vendor adapter.
type Provider interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
	Name() string
}

// Validate checks the invariants the gateway enforces before any dispatch.
func (r *Request) Validate() error {
	if len(r.Messages) == 0 {
		return &ValidationError{Message: "Messages array is required"}
	}
	if r.APIKey == "" {
		return &ValidationError{Message: "API key is required"}
	}
	return nil
}

// Clone returns a copy that shares no slices with r.
func (r *Request) Clone() *Request {
	c := *r
	c.Messages = append([]Message(nil), r.Messages...)
	return &c
}

// LogValue keeps the API key masked whenever a request is logged.
func (r *Request) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", r.Provider),
		slog.String("model", r.Model),
		slog.Int("messages", len(r.Messages)),
		slog.Bool("stream", r.Stream),
		slog.String("api_key", logging.MaskKey(r.APIKey)),
	)
}

// SystemPrompt returns the first system message and the remaining messages in order.
func SystemPrompt(messages []Message) (system string, found bool, rest []Message) {
	for _, m := range messages {
		if m.Role == "system" {
			if !found {
				system, found = m.Content, true
			}
			continue
		}
		rest = append(rest, m)
	}
	return system, found, rest
}
