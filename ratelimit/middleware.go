package ratelimit

import (
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-token-trust/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ClientIP resolves the originating address: the first X-Forwarded-For hop
// when present, else the transport peer.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

// Middleware rejects requests over the limit for op with 429 and a
// Retry-After header.
func (f *FixedWindow) Middleware(op Operation) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			addr := ClientIP(r)
			err := f.Check(op, addr)
			var limitErr *LimitError
			if !errors.As(err, &limitErr) {
				next(w, r)
				return
			}

			metrics.RateLimited.WithLabelValues(string(op)).Inc()
			log.Warn().Err(err).Str("operation", string(op)).Str("client", addr).Msg("request throttled")

			seconds := int(math.Ceil(limitErr.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(max(seconds, 1)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "rate_limited",
				"error_description": "Rate limit exceeded",
			})
		}
	}
}
