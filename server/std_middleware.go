package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-token-trust/internal/config"
	"github.com/rs/zerolog/log"
)

// Middleware wraps a handler.
type Middleware = func(http.HandlerFunc) http.HandlerFunc

type contextKey string

const requestIDKey contextKey = "request_id"

const headerRequestID = "X-Request-ID"

// HeaderInternalKey carries the shared secret on service to service calls.
const HeaderInternalKey = "X-Internal-Key"

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...Middleware) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// APIMiddleware is the standard JSON API chain followed by any route
// specific middleware.
func (s *Server) APIMiddleware(mw ...Middleware) []Middleware {
	return StandardMiddleware(s.env, s.config, mw...)
}

// StandardMiddleware returns request id, logging, recovery and CORS handling
// followed by mw.
func StandardMiddleware(env string, cors config.CorsConfig, mw ...Middleware) []Middleware {
	chained := []Middleware{
		RequestIDMiddleware,
		LoggingMiddleware(env),
		RecoverMiddleware,
		CorsMiddleware(cors),
	}
	return append(chained, mw...)
}

// NoContentHandler answers 204, used for CORS preflight routes.
func NoContentHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// RequestIDFromContext returns the id assigned by RequestIDMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// RequestIDMiddleware propagates an incoming X-Request-ID or assigns one.
func RequestIDMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		w.Header().Set(headerRequestID, id)
		next(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// LoggingMiddleware logs one line per request. DEV adds colour to the
// status.
func LoggingMiddleware(env string) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next(recorder, r)

			event := log.Info()
			if recorder.status >= http.StatusInternalServerError {
				event = log.Error()
			}
			status := fmt.Sprint(recorder.status)
			if env == "DEV" {
				status = statusColor(recorder.status) + status + ResetColor
			}
			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("status", status).
				Dur("duration", time.Since(start)).
				Str("request_id", RequestIDFromContext(r.Context())).
				Msg("request")
		}
	}
}

// RecoverMiddleware turns a handler panic into a 500.
func RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("request_id", RequestIDFromContext(r.Context())).
					Msg("recovered from panic")
				WriteJSONError(w, "server_error", "Internal server error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

func CorsMiddleware(cors config.CorsConfig) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// No Origin header = same-origin request, no CORS headers needed
			if origin == "" {
				next(w, r)
				return
			}

			allowedOrigins := cors.GetAllowedOrigins()
			isAllowed := allowedOrigins.IsAllowedOrigin(origin)
			isWildcard := allowedOrigins.IsAllowedOrigin("*")

			w.Header().Add("Vary", "Origin")
			if isAllowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			} else if isWildcard {
				// Don't set Allow-Credentials with wildcard
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			if r.Method == http.MethodOptions {
				if isAllowed || isWildcard {
					w.Header().Set("Access-Control-Allow-Methods", cors.GetAllowedMethods())
					w.Header().Set("Access-Control-Allow-Headers", cors.GetAllowedHeaders())
					w.Header().Set("Access-Control-Max-Age", "86400")
				}
				// A disallowed origin gets no CORS headers and the browser blocks it
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next(w, r)
		}
	}
}

// RequireInternalKey guards service to service routes with a shared key.
// An empty key leaves the route open.
func RequireInternalKey(key string) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if key == "" {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(HeaderInternalKey)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				log.Warn().Str("path", r.URL.Path).Msg("rejected internal call without a valid key")
				WriteJSONError(w, "unauthorized", "Invalid internal API key", http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}
}
