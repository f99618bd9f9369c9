package server

import (
	"github.com/jrsteele09/go-token-trust/internal/metrics"
	"github.com/jrsteele09/go-token-trust/ratelimit"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("POST "+RouteAuthRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware(s.limiter.Middleware(ratelimit.OpRegister))...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware(s.limiter.Middleware(ratelimit.OpLogin))...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware(s.limiter.Middleware(ratelimit.OpRefresh))...))
	s.RegisterRouteHandler("GET "+RouteAuthMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware()...))

	internalKey := RequireInternalKey(s.config.GetInternalAPIKey())
	s.RegisterRouteHandler("POST "+RouteInternalValidate, ChainMiddleware(s.ValidateHandler(), s.APIMiddleware(internalKey)...))
	s.RegisterRouteHandler("GET "+RouteInternalUser, ChainMiddleware(s.InternalUserHandler(), s.APIMiddleware(internalKey)...))
	s.RegisterRouteHandler("GET "+RouteInternalPublicKey, ChainMiddleware(s.PublicKeyHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWellKnownJWKS, ChainMiddleware(s.JWKSHandler(), s.APIMiddleware()...))

	// CORS preflight for every route.
	s.RegisterRouteHandler("OPTIONS /", ChainMiddleware(NoContentHandler, s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteHealth, metrics.HealthHandler(s.health))
	if s.config.GetMetricsEnabled() {
		s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
	}
}
