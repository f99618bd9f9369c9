// Package metrics holds the Prometheus collectors shared by both services.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_tokens_issued_total",
		Help: "Tokens minted by the issuer, by kind (access, refresh).",
	}, []string{"kind"})

	RefreshRedemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_refresh_redemptions_total",
		Help: "Refresh token redemptions, by result.",
	}, []string{"result"})

	TokenValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_validations_total",
		Help: "Access token validations, by result.",
	}, []string{"result"})

	KeyFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_public_key_fetches_total",
		Help: "Public key fetches from the issuer, by result.",
	}, []string{"result"})

	KeyFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "auth_public_key_fetch_duration_seconds",
		Help:    "Time spent fetching the public key.",
		Buckets: prometheus.DefBuckets,
	})

	KeyRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_signing_key_rotations_total",
		Help: "Signing key replacements on the issuer.",
	})

	Reconciliations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_identity_reconciliations_total",
		Help: "Identity reconciliations, by outcome.",
	}, []string{"outcome"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_rate_limited_total",
		Help: "Requests rejected by the rate limiter, by operation.",
	}, []string{"operation"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HealthHandler answers 200 while health returns nil and 503 otherwise.
func HealthHandler(health func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if health != nil {
			if err := health(ctx); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}
}
