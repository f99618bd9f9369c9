package server

import (
	"net/http"

	"github.com/jrsteele09/go-token-trust/auth"
	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
)

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterRequest
		if err := DecodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		user, err := s.auth.Register(r.Context(), req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusCreated, user)
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginRequest
		if err := DecodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp, err := s.auth.Login(r.Context(), req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		WriteJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RefreshRequest
		if err := DecodeJSON(r, &req); err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp, err := s.auth.Refresh(r.Context(), req)
		if apperr.Is(err, apperr.ErrUserNotFound) || apperr.Is(err, apperr.ErrUserInactive) {
			WriteJSONError(w, "invalid_grant", "User not found or inactive", http.StatusUnauthorized)
			return
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		WriteJSON(w, http.StatusOK, resp)
	}
}

// MeHandler returns the user the bearer token was issued to.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := BearerToken(r)
		if !ok {
			WriteUnauthorized(w)
			return
		}
		user, err := s.auth.CurrentUser(r.Context(), raw)
		if apperr.Is(err, apperr.ErrUserNotFound) {
			WriteUnauthorized(w)
			return
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if !user.Active {
			WriteJSONError(w, "inactive_user", MsgUserInactive, http.StatusUnauthorized)
			return
		}
		WriteJSON(w, http.StatusOK, user)
	}
}
