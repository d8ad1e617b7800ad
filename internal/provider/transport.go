package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Doer is the only HTTP capability adapters need. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Call describes one outbound vendor request.
type Call struct {
	Provider string // display name, e.g. "Anthropic"
	Method   string
	URL      string
	Header   http.Header
	Body     any // JSON-encoded when non-nil
}

// Result is the raw vendor reply.
type Result struct {
	StatusCode int
	Body       []byte
}

func (r *Result) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err converts a non-2xx result into a ProviderError.
func (r *Result) Err(provider string) error {
	if r.OK() {
		return nil
	}
	return &ProviderError{Provider: provider, StatusCode: r.StatusCode, Body: string(r.Body)}
}

// Transport issues vendor calls and records a span for each one.
type Transport struct {
	client Doer
	tracer trace.Tracer
}

func NewTransport(client Doer, tracer trace.Tracer) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("provider")
	}
	return &Transport{client: client, tracer: tracer}
}

// Do sends the call and returns status and body. Transport failures come back
// as *NetworkError; a non-2xx status is not an error at this level.
func (t *Transport) Do(ctx context.Context, call Call) (*Result, error) {
	ctx, span := t.tracer.Start(ctx, "provider."+call.Provider, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	// The URL may carry a key in its query string, so only the host is recorded.
	if u, err := url.Parse(call.URL); err == nil {
		span.SetAttributes(attribute.String("server.address", u.Host))
	}
	span.SetAttributes(attribute.String("gateway.provider", call.Provider))

	var body io.Reader
	if call.Body != nil {
		payload, err := json.Marshal(call.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", call.Provider, err)
		}
		body = bytes.NewReader(payload)
	}

	method := call.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, call.URL, body)
	if err != nil {
		return nil, &NetworkError{Provider: call.Provider, Err: withoutURL(err)}
	}
	for k, vs := range call.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if call.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		span.SetStatus(codes.Error, "transport failure")
		return nil, &NetworkError{Provider: call.Provider, Err: withoutURL(err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetStatus(codes.Error, "read failure")
		return nil, &NetworkError{Provider: call.Provider, Err: err}
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}

	return &Result{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// DecodeJSON unmarshals a successful vendor body.
func DecodeJSON(provider string, res *Result, v any) error {
	if err := json.Unmarshal(res.Body, v); err != nil {
		return fmt.Errorf("decode %s response: %w", provider, err)
	}
	return nil
}

// withoutURL drops the request URL from a *url.Error so that a key carried in
// the query string never ends up in an error message.
func withoutURL(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	host := ""
	if u, perr := url.Parse(uerr.URL); perr == nil {
		host = u.Host
	}
	if host == "" {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return fmt.Errorf("%s %s: %w", uerr.Op, host, uerr.Err)
}
