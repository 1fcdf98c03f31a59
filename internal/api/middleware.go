package api

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vetdesk/waiting-room/internal/waitingroom"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs HTTP requests with method, path, status, duration, and request ID
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		requestID := GetRequestID(r.Context())

		log.Printf(
			"method=%s path=%s status=%d duration=%s request_id=%s",
			r.Method,
			r.URL.Path,
			wrapped.statusCode,
			duration,
			requestID,
		)
	})
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// roleCapabilities maps the caller's role, as asserted by the fronting auth
// layer, onto queue-engine capabilities. The core never sees roles, only
// capabilities.
var roleCapabilities = map[string][]waitingroom.Capability{
	"receptionist": {waitingroom.CapAdmit, waitingroom.CapPrioritize, waitingroom.CapAnnotate, waitingroom.CapRead},
	"vet":          {waitingroom.CapTransition, waitingroom.CapAnnotate, waitingroom.CapRead},
	"admin": {
		waitingroom.CapAdmit, waitingroom.CapTransition, waitingroom.CapPrioritize,
		waitingroom.CapAnnotate, waitingroom.CapDelete, waitingroom.CapRead,
	},
}

// CapabilityMiddleware reads the X-Roles header (comma separated) and puts
// the union of the granted capabilities on the request context.
func CapabilityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var caps []waitingroom.Capability
		for _, role := range strings.Split(r.Header.Get("X-Roles"), ",") {
			role = strings.TrimSpace(strings.ToLower(role))
			caps = append(caps, roleCapabilities[role]...)
		}

		ctx := waitingroom.WithCapabilities(r.Context(), caps...)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
