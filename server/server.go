package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-token-trust/auth"
	"github.com/jrsteele09/go-token-trust/internal/config"
	"github.com/jrsteele09/go-token-trust/ratelimit"
	"github.com/rs/zerolog/log"
)

// Server is the issuer's HTTP surface.
type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	auth    *auth.Service
	limiter *ratelimit.FixedWindow
	health  func(context.Context) error
}

type Option func(*Server)

// WithHealthCheck sets the probe behind /health, typically a store ping.
func WithHealthCheck(health func(context.Context) error) Option {
	return func(s *Server) {
		s.health = health
	}
}

// WithRateLimiter replaces the limiter built from configuration.
func WithRateLimiter(limiter *ratelimit.FixedWindow) Option {
	return func(s *Server) {
		s.limiter = limiter
	}
}

func New(c config.Config, authService *auth.Service, options ...Option) (*Server, error) {
	if authService == nil {
		return nil, fmt.Errorf("[Server New] auth service is required")
	}

	s := &Server{
		env:    c.GetEnv(),
		mux:    http.NewServeMux(),
		config: c,
		auth:   authService,
	}
	for _, opt := range options {
		opt(s)
	}

	if s.limiter == nil {
		limiter, err := ratelimit.NewFromConfig(c)
		if err != nil {
			return nil, fmt.Errorf("[Server New] failed to configure rate limits: %w", err)
		}
		s.limiter = limiter
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered patterns.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	LogRoutes(s.routes)
}

// LogRoutes prints "METHOD /path" patterns with coloured methods.
func LogRoutes(routes []string) {
	for _, route := range routes {
		method, path, ok := strings.Cut(route, " ")
		if !ok {
			method, path = "", route
		}
		color, known := methodColors[method]
		if !known {
			color = Gray
		}
		log.Info().Msgf("[%s %-7s%s] %s", color, method, ResetColor, path)
	}
}
