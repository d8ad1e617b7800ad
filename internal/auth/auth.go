// Package auth guards the operator endpoints with a static admin token.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

type Middleware func(next http.Handler) http.Handler

// NewAdminMiddleware accepts "Authorization: Bearer <token>" or
// "X-Admin-Token: <token>". An empty token leaves the routes open.
func NewAdminMiddleware(token string, logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	want := sha256.Sum256([]byte(token))

	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := presentedToken(r)
			if presented == "" {
				unauthorized(w, "missing admin token")
				return
			}

			got := sha256.Sum256([]byte(presented))
			if subtle.ConstantTimeCompare(got[:], want[:]) != 1 {
				logger.Warn("admin token rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
				unauthorized(w, "invalid admin token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func presentedToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.Header.Get("X-Admin-Token")
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized: " + msg})
}
