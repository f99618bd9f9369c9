package backend

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-token-trust/identity"
	"github.com/jrsteele09/go-token-trust/server"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityFromContext returns the identity resolved by RequireIdentity.
func IdentityFromContext(ctx context.Context) (*identity.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*identity.Identity)
	return id, ok && id != nil
}

// RequireIdentity validates the bearer token, reconciles the caller into the
// local store and rejects inactive identities.
func (s *Server) RequireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := server.BearerToken(r)
		if !ok {
			server.WriteUnauthorized(w)
			return
		}

		claims, err := s.validator.Validate(r.Context(), raw)
		if err != nil {
			server.WriteUnauthorized(w)
			return
		}
		remote, err := identity.RemoteIdentityFromClaims(claims)
		if err != nil {
			server.WriteUnauthorized(w)
			return
		}

		result, err := s.reconciler.Reconcile(r.Context(), remote)
		if err != nil {
			log.Err(err).
				Str("email", remote.Email).
				Str("request_id", server.RequestIDFromContext(r.Context())).
				Msg("identity reconciliation failed")
			server.WriteJSONError(w, "server_error", server.MsgInternalError, http.StatusInternalServerError)
			return
		}
		if !result.Identity.Active {
			server.WriteJSONError(w, "inactive_user", MsgInactiveUser, http.StatusBadRequest)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), identityKey, result.Identity)))
	}
}
