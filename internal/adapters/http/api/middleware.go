package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/okian/nebula/internal/domain/identity"
	"github.com/okian/nebula/pkg/logger"
	"github.com/okian/nebula/pkg/metrics"
)

const (
	bearerPrefix = "Bearer "
	corsMethods  = "GET, POST, DELETE, PUT, OPTIONS"
	corsHeaders  = "Content-Type, Authorization"
)

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Milliseconds())
		statusCodeStr := strconv.Itoa(wrapped.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)
	}
}

// RecoverMiddleware turns handler panics into a 500 envelope.
func RecoverMiddleware(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error(r.Context(), "handler panicked",
						logger.String("path", r.URL.Path),
						logger.Any("panic", rec),
						logger.String("stack", string(debug.Stack())),
					)
					writeFail(w, http.StatusInternalServerError, ErrInternal.Error())
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware applies the origin allow-list. Requests without an Origin
// header pass through untouched; disallowed preflights get 403.
func CORSMiddleware(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			if !slices.Contains(allowed, origin) {
				if preflight {
					writeFail(w, http.StatusForbidden, "Not allowed by CORS")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if preflight {
				w.Header().Set("Access-Control-Allow-Methods", corsMethods)
				w.Header().Set("Access-Control-Allow-Headers", corsHeaders)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Introspector resolves bearer tokens.
type Introspector interface {
	Introspect(ctx context.Context, accessToken string) (identity.Attributes, error)
}

// BearerAuth rejects requests without a valid access token and attaches the
// caller to the request context.
func BearerAuth(idp Introspector) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				writeFail(w, http.StatusUnauthorized, ErrUnauthorized.Error())
				return
			}
			attrs, err := idp.Introspect(r.Context(), strings.TrimPrefix(header, bearerPrefix))
			if err != nil {
				writeFail(w, http.StatusUnauthorized, identity.ErrInvalidToken.Error())
				return
			}
			ctx := WithUser(r.Context(), User{
				UserID:   attrs.Sub,
				UserName: attrs.PreferredUsername,
				Name:     attrs.Name,
				Email:    attrs.Email,
			})
			next(w, r.WithContext(ctx))
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
