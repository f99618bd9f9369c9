package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
	"github.com/rs/zerolog/log"
)

const maxRequestBytes = 1 << 20

// Caller visible error descriptions.
const (
	MsgInvalidCredentials = "Incorrect email or password"
	MsgUserInactive       = "User account is deactivated"
	MsgEmailRegistered    = "Email already registered"
	MsgCouldNotValidate   = "Could not validate credentials"
	MsgInvalidRefresh     = "Invalid refresh token"
	MsgRefreshExpired     = "Refresh token expired"
	MsgInternalError      = "Internal server error"
	MsgInvalidBody        = "Invalid request body"
)

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	WriteJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}

// WriteUnauthorized is the single response for every token failure.
func WriteUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteJSONError(w, "invalid_token", MsgCouldNotValidate, http.StatusUnauthorized)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// DecodeJSON reads a bounded JSON body into v.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(v); err != nil {
		return apperr.Wrapf(apperr.ErrInvalidRequest, "decode body: %v", err)
	}
	return nil
}

// writeServiceError maps service errors onto status codes. Anything not
// recognised is logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case apperr.Is(err, apperr.ErrInvalidToken):
		WriteUnauthorized(w)
	case apperr.Is(err, apperr.ErrInvalidCredentials):
		WriteJSONError(w, "invalid_credentials", MsgInvalidCredentials, http.StatusUnauthorized)
	case apperr.Is(err, apperr.ErrUserInactive):
		WriteJSONError(w, "inactive_user", MsgUserInactive, http.StatusUnauthorized)
	case apperr.Is(err, apperr.ErrUserExists):
		WriteJSONError(w, "email_exists", MsgEmailRegistered, http.StatusConflict)
	case apperr.Is(err, apperr.ErrWeakPassword):
		WriteJSONError(w, "weak_password", err.Error(), http.StatusBadRequest)
	case apperr.Is(err, apperr.ErrInvalidRequest):
		WriteJSONError(w, "invalid_request", err.Error(), http.StatusUnprocessableEntity)
	case apperr.Is(err, apperr.ErrRefreshTokenNotFound):
		WriteJSONError(w, "invalid_grant", MsgInvalidRefresh, http.StatusUnauthorized)
	case apperr.Is(err, apperr.ErrRefreshTokenExpired):
		WriteJSONError(w, "invalid_grant", MsgRefreshExpired, http.StatusUnauthorized)
	default:
		log.Err(err).Str("path", r.URL.Path).Str("request_id", RequestIDFromContext(r.Context())).Msg("request failed")
		WriteJSONError(w, "server_error", MsgInternalError, http.StatusInternalServerError)
	}
}
