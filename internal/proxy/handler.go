package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vnmchuo/teleaon-gateway/internal/connection"
	"github.com/vnmchuo/teleaon-gateway/internal/gateway"
	"github.com/vnmchuo/teleaon-gateway/internal/logging"
	"github.com/vnmchuo/teleaon-gateway/internal/provider"
	"github.com/vnmchuo/teleaon-gateway/internal/usage"
)

// TimestampLayout is the ISO-8601 form used by the health endpoint.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const (
	defaultUsageWindow = 24 * time.Hour
	defaultUsageLimit  = 100
	maxUsageLimit      = 1000
	maxErrorText       = 500
)

type Completer interface {
	Complete(ctx context.Context, req *provider.Request) (*provider.Response, error)
}

type ConnectionTester interface {
	Test(ctx context.Context, providerName, apiKey, apiBase string) connection.Result
}

type Recorder interface {
	Enqueue(rec *usage.Record) bool
}

type Handler struct {
	gateway Completer
	tester  ConnectionTester
	tracer  trace.Tracer
	logger  *slog.Logger

	recorder Recorder      // optional
	store    usage.Store   // optional
	counter  usage.Counter // optional

	now func() time.Time
}

type HandlerOption func(*Handler)

// WithUsage enables usage recording and the usage endpoints. Any argument may be nil.
func WithUsage(recorder Recorder, store usage.Store, counter usage.Counter) HandlerOption {
	return func(h *Handler) {
		h.recorder = recorder
		h.store = store
		h.counter = counter
	}
}

func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

func NewHandler(gateway Completer, tester ConnectionTester, tracer trace.Tracer, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		gateway: gateway,
		tester:  tester,
		tracer:  tracer,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "proxy.completion")
	defer span.End()

	resp, err := h.complete(ctx, r, req, span)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleStream answers with one SSE frame carrying the whole response (or
// {"error": ...}) followed by the [DONE] sentinel. Tokens are not forwarded
// incrementally.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "proxy.stream")
	defer span.End()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	var frame any
	resp, err := h.complete(ctx, r, req, span)
	if err != nil {
		frame = map[string]string{"error": err.Error()}
	} else {
		frame = resp
	}

	data, _ := json.Marshal(frame)
	fmt.Fprintf(w, "data: %s\n\n", data)
	fmt.Fprint(w, "data: [DONE]\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

type testConnectionRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
	APIBase  string `json:"apiBase,omitempty"`
}

func (h *Handler) HandleTestConnection(w http.ResponseWriter, r *http.Request) {
	var body testConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, connection.Result{Success: false, Message: "invalid request body"})
		return
	}
	if body.Provider == "" || body.APIKey == "" {
		writeJSON(w, http.StatusBadRequest, connection.Result{Success: false, Message: "Provider and API key are required"})
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "proxy.test_connection")
	defer span.End()
	span.SetAttributes(attribute.String("gateway.provider", body.Provider))

	res := h.tester.Test(ctx, body.Provider, body.APIKey, body.APIBase)
	span.SetAttributes(attribute.Bool("gateway.success", res.Success))

	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": h.now().UTC().Format(TimestampLayout),
	})
}

const banner = `<h1>Teleaon Bot API Server</h1><p>The server is running! Use <code>/api/health</code> to check status.</p>`

func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(banner))
}

// HandleUsage lists stored usage records. Defaults to the last 24 hours and 100 rows.
func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "usage store not configured"})
		return
	}

	now := h.now()
	from := now.Add(-defaultUsageWindow)
	to := now

	q := r.URL.Query()
	if s := q.Get("from"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid 'from' date format (use RFC3339)"})
			return
		}
		from = t
	}
	if s := q.Get("to"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid 'to' date format (use RFC3339)"})
			return
		}
		to = t
	}

	limit := defaultUsageLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxUsageLimit {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("limit must be between 1 and %d", maxUsageLimit)})
			return
		}
		limit = n
	}

	records, err := h.store.List(r.Context(), from, to, limit)
	if err != nil {
		h.logger.Error("usage query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"from":    from,
		"to":      to,
		"count":   len(records),
		"records": records,
	})
}

// HandleUsageSummary returns the per-provider counters for one UTC day (default today).
func (h *Handler) HandleUsageSummary(w http.ResponseWriter, r *http.Request) {
	if h.counter == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "usage counters not configured"})
		return
	}

	day := h.now().UTC()
	if s := r.URL.Query().Get("date"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid 'date' format (use YYYY-MM-DD)"})
			return
		}
		day = t
	}

	providers, err := h.counter.Summary(r.Context(), day)
	if err != nil {
		h.logger.Error("usage summary failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"date":      day.Format(time.DateOnly),
		"providers": providers,
	})
}

// decode reads and validates a chat request, writing the 400 itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (*provider.Request, bool) {
	var req provider.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return nil, false
	}

	h.logger.Info("chat request received", "request", &req)

	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return nil, false
	}
	return &req, true
}

// complete runs the gateway and records usage. Error text returned to the
// caller has the request's key removed.
func (h *Handler) complete(ctx context.Context, r *http.Request, req *provider.Request, span trace.Span) (*provider.Response, error) {
	requestID := chimiddleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = uuid.New().String()
	}
	span.SetAttributes(
		attribute.String("request_id", requestID),
		attribute.String("gateway.provider", req.Provider),
		attribute.String("gateway.model", req.Model),
	)

	start := h.now()
	resp, err := h.gateway.Complete(ctx, req)
	latency := h.now().Sub(start)

	rec := &usage.Record{
		ID:        uuid.New().String(),
		RequestID: requestID,
		Provider:  req.Provider,
		Model:     req.Model,
		LatencyMs: latency.Milliseconds(),
		Success:   err == nil,
		CreatedAt: start.UTC(),
	}

	if err != nil {
		err = errors.New(logging.Redact(err.Error(), req.APIKey))
		span.SetStatus(codes.Error, "completion failed")
		h.logger.Error("completion failed", "request_id", requestID, "provider", req.Provider, "error", err)
		rec.Error = truncate(err.Error(), maxErrorText)
		h.record(rec)
		return nil, err
	}

	rec.Model = resp.Model
	if resp.Usage != nil {
		rec.PromptTokens = resp.Usage.PromptTokens
		rec.CompletionTokens = resp.Usage.CompletionTokens
	}
	h.record(rec)

	h.logger.Info("completion succeeded", "request_id", requestID, "provider", req.Provider, "model", resp.Model, "latency_ms", rec.LatencyMs)
	return resp, nil
}

func (h *Handler) record(rec *usage.Record) {
	if h.recorder == nil {
		return
	}
	rec.Provider = strings.ToLower(rec.Provider)
	if rec.Provider == "" {
		rec.Provider = gateway.DefaultProvider
	}
	h.recorder.Enqueue(rec)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
