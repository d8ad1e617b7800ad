package proxy

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vnmchuo/teleaon-gateway/internal/auth"
)

// NewRouter mounts every gateway endpoint. adminToken guards the usage
// endpoints; empty leaves them open.
func NewRouter(h *Handler, adminToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS)

	r.Get("/", h.HandleRoot)
	r.Get("/api/health", h.HandleHealth)

	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/completion", h.HandleCompletion)
		r.Post("/stream", h.HandleStream)
	})
	r.Post("/api/providers/test", h.HandleTestConnection)

	r.Group(func(r chi.Router) {
		r.Use(auth.NewAdminMiddleware(adminToken, logger))
		r.Get("/api/usage", h.HandleUsage)
		r.Get("/api/usage/summary", h.HandleUsageSummary)
	})

	return r
}

// RequestLogger logs one line per request. Bodies are never logged.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"request_id", chimiddleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}
