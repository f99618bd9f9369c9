package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Public auth routes
	RouteAuthRegister = "/auth/register"
	RouteAuthLogin    = "/auth/login"
	RouteAuthRefresh  = "/auth/refresh"
	RouteAuthMe       = "/auth/me"

	// Service to service routes
	RouteInternalValidate  = "/internal/validate"
	RouteInternalUser      = "/internal/users/{id}"
	RouteInternalPublicKey = "/internal/public-key"

	// Key distribution
	RouteWellKnownJWKS = "/.well-known/jwks.json"

	// Operations
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"
)

const contentTypeJSON = "application/json; charset=utf-8"
