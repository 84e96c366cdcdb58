package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const authedKey contextKey = "authenticated"

// isAuthenticated reports whether the request carried a valid bearer token.
func isAuthenticated(ctx context.Context) bool {
	v, _ := ctx.Value(authedKey).(bool)
	return v
}

// publicRead reports whether the route is readable without a token. Public
// reads still filter to is_public records in the handlers.
func publicRead(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	p := r.URL.Path
	switch {
	case p == "/v1/health", p == "/v1/vtis":
		return true
	case strings.HasPrefix(p, "/v1/vtis/"):
		rest := strings.TrimPrefix(p, "/v1/vtis/")
		return !strings.Contains(rest, "/") || strings.HasSuffix(rest, "/history")
	}
	return false
}

// AuthMiddleware enforces bearer-token auth on mutating and private routes.
// With an empty token auth is disabled and every request is trusted.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authedKey, true)))
			return
		}

		presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1 {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), authedKey, true)))
			return
		}

		if publicRead(r) {
			next.ServeHTTP(w, r)
			return
		}

		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
	})
}

// statusRecorder captures the response code for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequestLogger logs one line per request with method, path, status, and
// duration.
func RequestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// Recovery turns handler panics into 500s instead of dropping the connection.
func Recovery(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("handler panic", "path", r.URL.Path, "panic", rec)
				http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
