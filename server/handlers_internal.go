package server

import (
	"net/http"
	"strconv"

	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
	"github.com/jrsteele09/go-token-trust/token/keys"
	"github.com/rs/zerolog/log"
)

// ValidateRequest is the body of POST /internal/validate.
type ValidateRequest struct {
	Token string `json:"token"`
}

// ValidateResponse reports whether a token is valid and, if so, its claims.
type ValidateResponse struct {
	Valid  bool    `json:"valid"`
	UserID int64   `json:"user_id,omitempty"`
	Email  string  `json:"email,omitempty"`
	Name   *string `json:"name,omitempty"`
	Admin  bool    `json:"is_admin,omitempty"`
}

// ValidateHandler introspects a token for services that cannot verify it
// locally. Invalid tokens are reported in the body, not the status.
func (s *Server) ValidateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ValidateRequest
		if err := DecodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}

		claims, err := s.auth.ValidateToken(r.Context(), req.Token)
		if apperr.Is(err, apperr.ErrInvalidToken) {
			WriteJSON(w, http.StatusOK, ValidateResponse{Valid: false})
			return
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		id, err := claims.SubjectID()
		if err != nil {
			WriteJSON(w, http.StatusOK, ValidateResponse{Valid: false})
			return
		}
		WriteJSON(w, http.StatusOK, ValidateResponse{
			Valid:  true,
			UserID: id,
			Email:  claims.Email,
			Name:   claims.Name,
			Admin:  claims.Admin,
		})
	}
}

func (s *Server) InternalUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			WriteJSONError(w, "invalid_request", "User id must be an integer", http.StatusUnprocessableEntity)
			return
		}
		user, err := s.auth.GetUser(r.Context(), id)
		if apperr.Is(err, apperr.ErrUserNotFound) {
			WriteJSONError(w, "not_found", "User not found", http.StatusNotFound)
			return
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, user)
	}
}

// PublicKeyHandler serves the current verification key. It is read on every
// request so a rotated key is visible immediately.
func (s *Server) PublicKeyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pemText, err := s.auth.Issuer().PublicKeyPEM()
		if err != nil {
			log.Err(err).Msg("failed to export public key")
			WriteJSONError(w, "server_error", MsgInternalError, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		WriteJSON(w, http.StatusOK, keys.PublicKeyResponse{
			PublicKey: pemText,
			Algorithm: keys.RS256,
		})
	}
}

func (s *Server) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jwks, err := s.auth.Issuer().JWKS()
		if err != nil {
			log.Err(err).Msg("failed to build JWKS")
			WriteJSONError(w, "server_error", MsgInternalError, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		WriteJSON(w, http.StatusOK, jwks)
	}
}
