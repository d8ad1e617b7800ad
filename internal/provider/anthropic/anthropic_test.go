package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vnmchuo/teleaon-gateway/internal/provider"
)

func TestComplete_Mock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("Expected x-api-key header, got %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != APIVersion {
			t.Errorf("Expected anthropic-version header, got %q", r.Header.Get("anthropic-version"))
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("Anthropic calls must not carry a bearer token")
		}

		resp := anthropicResponse{
			ID:      "msg_123",
			Content: []anthropicContent{{Type: "text", Text: "Hello from Claude mock!"}},
			Usage:   &anthropicUsage{InputTokens: 10, OutputTokens: 20},
			Model:   "claude-3-5-sonnet-20240620",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := New(server.URL, provider.NewTransport(server.Client(), nil))

	req := &provider.Request{
		Model:    "anthropic/claude-3-5-sonnet-20240620",
		APIKey:   "test-key",
		Messages: []provider.Message{{Role: "user", Content: "hi"}},
	}

	resp, err := p.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Content != "Hello from Claude mock!" {
		t.Errorf("Expected 'Hello from Claude mock!', got %s", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 30 {
		t.Errorf("Expected 30 total tokens, got %+v", resp.Usage)
	}
}

func TestSystemMessageExtraction(t *testing.T) {
	var capturedReq anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &capturedReq)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer server.Close()

	p := New(server.URL, provider.NewTransport(server.Client(), nil))

	req := &provider.Request{
		Model:  "openai/gpt-4o",
		APIKey: "test-key",
		Messages: []provider.Message{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "again"},
		},
	}

	resp, err := p.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if capturedReq.System != "You are a helpful assistant." {
		t.Errorf("Expected system prompt to be extracted, got %q", capturedReq.System)
	}
	if len(capturedReq.Messages) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(capturedReq.Messages))
	}
	if capturedReq.Messages[1].Role != "assistant" {
		t.Errorf("Roles should pass through, got %s", capturedReq.Messages[1].Role)
	}
	if capturedReq.MaxTokens != 4096 {
		t.Errorf("Expected max_tokens 4096, got %d", capturedReq.MaxTokens)
	}
	if capturedReq.Model != DefaultModel {
		t.Errorf("Cross-vendor model should fall back to %s, got %s", DefaultModel, capturedReq.Model)
	}
	if resp.Model != DefaultModel {
		t.Errorf("Response should report the resolved model, got %s", resp.Model)
	}
	if resp.Usage != nil {
		t.Errorf("Expected no usage, got %+v", resp.Usage)
	}
}

func TestComplete_VendorErrorKeepsRawBody(t *testing.T) {
	raw := `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(raw))
	}))
	defer server.Close()

	p := New(server.URL, provider.NewTransport(server.Client(), nil))
	_, err := p.Complete(context.Background(), &provider.Request{
		Model:    "claude-3-haiku-20240307",
		APIKey:   "bad",
		Messages: []provider.Message{{Role: "user", Content: "hi"}},
	})

	var pe *provider.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected ProviderError, got %v", err)
	}
	if err.Error() != "Anthropic API error: 401 - "+raw {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestResolveModel(t *testing.T) {
	cases := map[string]string{
		"anthropic/claude-3-5-sonnet-20240620": "claude-3-5-sonnet-20240620",
		"openai/gpt-4o":                        DefaultModel,
		"claude-3-haiku-20240307":              "claude-3-haiku-20240307",
		"anthropic/claude-opus-4-5":            "claude-3-opus-20240229",
		"claude-sonnet-4":                      "claude-3-5-sonnet-20240620",
	}
	for in, want := range cases {
		if got := ResolveModel(in); got != want {
			t.Errorf("ResolveModel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestName(t *testing.T) {
	p := New("", nil)
	if p.Name() != "anthropic" {
		t.Errorf("Expected 'anthropic', got %s", p.Name())
	}
}
