package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vnmchuo/teleaon-gateway/internal/provider"
)

func newStub(t *testing.T, status int, reply string, captured *chatRequest, header *http.Header) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if captured != nil {
			_ = json.NewDecoder(r.Body).Decode(captured)
		}
		if header != nil {
			*header = r.Header.Clone()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
}

func userRequest(model string) *provider.Request {
	return &provider.Request{
		Model:  model,
		APIKey: "test-key",
		Messages: []provider.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hi"},
		},
	}
}

func TestComplete_Mock(t *testing.T) {
	var captured chatRequest
	var header http.Header
	server := newStub(t, http.StatusOK, `{
		"id": "test-id",
		"model": "gpt-4o-mini-2024-07-18",
		"choices": [{"message": {"role": "assistant", "content": "Hello from OpenAI mock!"}}],
		"usage": {"prompt_tokens": 15, "completion_tokens": 25, "total_tokens": 40}
	}`, &captured, &header)
	defer server.Close()

	p := New(server.URL, provider.NewTransport(server.Client(), nil))

	resp, err := p.Complete(context.Background(), userRequest("openai/gpt-4o-mini"))
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if resp.Content != "Hello from OpenAI mock!" {
		t.Errorf("Expected 'Hello from OpenAI mock!', got %s", resp.Content)
	}
	if resp.Model != "gpt-4o-mini-2024-07-18" {
		t.Errorf("Expected vendor model, got %s", resp.Model)
	}
	if resp.Usage == nil || resp.Usage.PromptTokens != 15 || resp.Usage.CompletionTokens != 25 || resp.Usage.TotalTokens != 40 {
		t.Errorf("Unexpected usage %+v", resp.Usage)
	}
	if captured.Model != "gpt-4o-mini" {
		t.Errorf("Expected prefix stripped, got %s", captured.Model)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" {
		t.Errorf("System message should travel inside messages: %+v", captured.Messages)
	}
	if header.Get("Authorization") != "Bearer test-key" {
		t.Errorf("Unexpected Authorization header %q", header.Get("Authorization"))
	}
}

func TestComplete_NoUsageNoModel(t *testing.T) {
	server := newStub(t, http.StatusOK, `{"choices": []}`, nil, nil)
	defer server.Close()

	p := New(server.URL, provider.NewTransport(server.Client(), nil))
	resp, err := p.Complete(context.Background(), userRequest("anthropic/claude-3-opus"))
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Usage != nil {
		t.Errorf("Expected no usage, got %+v", resp.Usage)
	}
	if resp.Content != "" {
		t.Errorf("Expected empty content, got %q", resp.Content)
	}
	if resp.Model != DefaultModel {
		t.Errorf("Expected fallback to resolved model %s, got %s", DefaultModel, resp.Model)
	}
}

func TestComplete_VendorError(t *testing.T) {
	server := newStub(t, http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, nil, nil)
	defer server.Close()

	p := New(server.URL, provider.NewTransport(server.Client(), nil))
	_, err := p.Complete(context.Background(), userRequest("gpt-4o"))

	var pe *provider.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected ProviderError, got %v", err)
	}
	if pe.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", pe.StatusCode)
	}
	if !strings.HasPrefix(err.Error(), "OpenAI API error: 401 - ") {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestResolveModel(t *testing.T) {
	cases := map[string]string{
		"openai/gpt-4o-mini":        "gpt-4o-mini",
		"gpt-3.5-turbo":             "gpt-3.5-turbo",
		"anthropic/claude-sonnet-4": DefaultModel,
		"meta-llama/llama-3.1-405b": DefaultModel,
	}
	for in, want := range cases {
		if got := ResolveModel(in); got != want {
			t.Errorf("ResolveModel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolveCompatibleModel(t *testing.T) {
	cases := []struct{ vendor, model, want string }{
		{"groq", "anthropic/claude-sonnet-4", "llama-3.1-70b-versatile"},
		{"groq", "groq/mixtral-8x7b-32768", "mixtral-8x7b-32768"},
		{"groq", "llama3-8b-8192", "llama3-8b-8192"},
		{"deepseek", "openai/gpt-4o", "deepseek-chat"},
		{"deepseek", "deepseek/deepseek-reasoner", "deepseek-reasoner"},
		{"together", "meta-llama/Llama-3-70b", "Llama-3-70b"},
	}
	for _, c := range cases {
		if got := ResolveCompatibleModel(c.vendor, c.model); got != c.want {
			t.Errorf("ResolveCompatibleModel(%q, %q) = %q, want %q", c.vendor, c.model, got, c.want)
		}
	}
}

func TestCompatible_GroqDefaultsCrossVendorModel(t *testing.T) {
	var captured chatRequest
	server := newStub(t, http.StatusOK, `{"choices":[{"message":{"content":"ok"}}]}`, &captured, nil)
	defer server.Close()

	p := NewCompatible("Groq", server.URL, provider.NewTransport(server.Client(), nil))
	resp, err := p.Complete(context.Background(), userRequest("anthropic/claude-sonnet-4"))
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if captured.Model != "llama-3.1-70b-versatile" {
		t.Errorf("Expected groq default, got %s", captured.Model)
	}
	if resp.Model != "llama-3.1-70b-versatile" {
		t.Errorf("Expected resolved model in response, got %s", resp.Model)
	}
	if p.Name() != "groq" {
		t.Errorf("Expected 'groq', got %s", p.Name())
	}
}

func TestCompatible_ErrorNamesVendor(t *testing.T) {
	server := newStub(t, http.StatusTooManyRequests, "slow down", nil, nil)
	defer server.Close()

	p := NewCompatible("deepseek", server.URL, provider.NewTransport(server.Client(), nil))
	_, err := p.Complete(context.Background(), userRequest("deepseek-chat"))
	if err == nil || err.Error() != "DeepSeek API error: 429 - slow down" {
		t.Errorf("Unexpected error %v", err)
	}
}

func TestName(t *testing.T) {
	p := New("", nil)
	if p.Name() != "openai" {
		t.Errorf("Expected 'openai', got %s", p.Name())
	}
}
