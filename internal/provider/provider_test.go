package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStripVendorPrefix(t *testing.T) {
	cases := []struct {
		model, vendor, want string
		ok                  bool
	}{
		{"anthropic/claude-3-5-sonnet-20240620", "anthropic", "claude-3-5-sonnet-20240620", true},
		{"claude-3-haiku-20240307", "anthropic", "claude-3-haiku-20240307", true},
		{"openai/gpt-4o", "anthropic", "", false},
		{"groq/llama3-8b-8192", "groq", "llama3-8b-8192", true},
		{"meta-llama/llama-3-70b", "groq", "", false},
	}
	for _, c := range cases {
		got, ok := StripVendorPrefix(c.model, c.vendor)
		if got != c.want || ok != c.ok {
			t.Errorf("StripVendorPrefix(%q, %q) = (%q, %v), want (%q, %v)", c.model, c.vendor, got, ok, c.want, c.ok)
		}
	}
}

func TestValidate(t *testing.T) {
	req := &Request{APIKey: "k"}
	var ve *ValidationError
	if err := req.Validate(); !errors.As(err, &ve) || ve.Message != "Messages array is required" {
		t.Errorf("Expected messages validation error, got %v", err)
	}

	req = &Request{Messages: []Message{{Role: "user", Content: "hi"}}}
	if err := req.Validate(); !errors.As(err, &ve) || ve.Message != "API key is required" {
		t.Errorf("Expected api key validation error, got %v", err)
	}

	req.APIKey = "k"
	if err := req.Validate(); err != nil {
		t.Errorf("Expected valid request, got %v", err)
	}
}

func TestClone_DoesNotShareMessages(t *testing.T) {
	req := &Request{Messages: []Message{{Role: "user", Content: "hi"}}}
	c := req.Clone()
	c.Messages[0].Content = "changed"
	if req.Messages[0].Content != "hi" {
		t.Error("Clone shared the messages slice")
	}
}

func TestSystemPrompt(t *testing.T) {
	system, found, rest := SystemPrompt([]Message{
		{Role: "system", Content: "first"},
		{Role: "user", Content: "hi"},
		{Role: "system", Content: "second"},
		{Role: "assistant", Content: "hello"},
	})
	if !found || system != "first" {
		t.Errorf("Expected first system prompt, got %q (found=%v)", system, found)
	}
	if len(rest) != 2 || rest[0].Role != "user" || rest[1].Role != "assistant" {
		t.Errorf("Unexpected remaining messages: %+v", rest)
	}
}

func TestTransport_Do(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Test") != "1" {
			t.Errorf("Expected X-Test header")
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"a":1`) {
			t.Errorf("Unexpected body %s", body)
		}
		w.WriteHeader(http.StatusTeapot)
		fmt.Fprint(w, "short and stout")
	}))
	defer server.Close()

	tr := NewTransport(server.Client(), nil)
	res, err := tr.Do(context.Background(), Call{
		Provider: "Test",
		URL:      server.URL,
		Header:   http.Header{"X-Test": {"1"}},
		Body:     map[string]int{"a": 1},
	})
	if err != nil {
		t.Fatalf("Do failed: %v", err)
	}
	if res.OK() {
		t.Error("Expected non-OK result")
	}

	err = res.Err("Test")
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusTeapot {
		t.Fatalf("Expected ProviderError 418, got %v", err)
	}
	if err.Error() != "Test API error: 418 - short and stout" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestTransport_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewTransport(nil, nil).Do(context.Background(), Call{Provider: "Test", URL: url})
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("Expected NetworkError, got %v", err)
	}
	if !IsServerSide(err) {
		t.Error("Network errors should count as server side")
	}
}

func TestErrorHelpers(t *testing.T) {
	notFound := &ProviderError{Provider: "Gemini", StatusCode: 404, Body: "nope"}
	if !IsNotFound(fmt.Errorf("wrapped: %w", notFound)) {
		t.Error("Expected wrapped 404 to be detected")
	}
	if IsServerSide(notFound) {
		t.Error("404 is not a server side failure")
	}
	if !IsServerSide(&ProviderError{StatusCode: 502}) {
		t.Error("502 is a server side failure")
	}

	unknown := &UnknownProviderError{Provider: "mistral", Err: notFound}
	want := `Unknown provider "mistral" fell back to OpenRouter and failed: Gemini API error: 404 - nope`
	if unknown.Error() != want {
		t.Errorf("Unexpected message %q", unknown.Error())
	}
	if !errors.Is(unknown, notFound) {
		t.Error("UnknownProviderError should unwrap to its cause")
	}
}

func TestTransport_NetworkErrorHidesQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := server.URL
	server.Close()

	_, err := NewTransport(nil, nil).Do(context.Background(), Call{Provider: "Gemini", URL: base + "/v1/models?key=super-secret"})
	if err == nil {
		t.Fatal("Expected an error")
	}
	if strings.Contains(err.Error(), "super-secret") {
		t.Errorf("Error leaked the key: %v", err)
	}
}
