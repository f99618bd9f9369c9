// Package backend is a consumer service: it trusts access tokens minted by
// the issuer and keeps a local replica of each caller's identity.
package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-token-trust/identity"
	"github.com/jrsteele09/go-token-trust/internal/config"
	"github.com/jrsteele09/go-token-trust/internal/metrics"
	"github.com/jrsteele09/go-token-trust/server"
	"github.com/jrsteele09/go-token-trust/verifier"
)

const (
	RouteMe      = "/api/me"
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"
)

const MsgInactiveUser = "Inactive user"

type Server struct {
	env        string
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	validator  *verifier.Validator
	reconciler *identity.Reconciler
	health     func(context.Context) error
}

type Option func(*Server)

func WithHealthCheck(health func(context.Context) error) Option {
	return func(s *Server) {
		s.health = health
	}
}

func New(c config.Config, validator *verifier.Validator, reconciler *identity.Reconciler, options ...Option) (*Server, error) {
	if validator == nil || reconciler == nil {
		return nil, fmt.Errorf("[backend New] validator and reconciler are required")
	}
	s := &Server{
		env:        c.GetEnv(),
		mux:        http.NewServeMux(),
		config:     c,
		validator:  validator,
		reconciler: reconciler,
	}
	for _, opt := range options {
		opt(s)
	}

	s.initRoutes()
	if s.env == "DEV" {
		server.LogRoutes(s.routes)
	}
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) register(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) initRoutes() {
	std := server.StandardMiddleware(s.env, s.config)
	s.register("GET "+RouteMe, server.ChainMiddleware(s.MeHandler(), append(std, s.RequireIdentity)...))
	s.register("OPTIONS /", server.ChainMiddleware(server.NoContentHandler, std...))

	s.register("GET "+RouteHealth, metrics.HealthHandler(s.health))
	if s.config.GetMetricsEnabled() {
		s.register("GET "+RouteMetrics, metrics.Handler())
	}
}

// MeHandler returns the caller's local identity.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		local, ok := IdentityFromContext(r.Context())
		if !ok {
			server.WriteUnauthorized(w)
			return
		}
		server.WriteJSON(w, http.StatusOK, local)
	}
}
