package errors

import (
	"errors"
	"fmt"
)

// Common error types shared by the issuer and consumer services
var (
	// Credential errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user is inactive")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrWeakPassword       = errors.New("password does not meet policy")

	// Token errors. ErrInvalidToken is the single caller-visible outcome,
	// the others are diagnostic reasons carried alongside it.
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
	ErrWrongIssuer    = errors.New("token issuer mismatch")
	ErrWrongSignature = errors.New("token signature invalid")
	ErrKeyUnavailable = errors.New("verification key unavailable")

	// Refresh token errors
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")

	// Store errors
	ErrNotFound              = errors.New("not found")
	ErrConflict              = errors.New("conflict")
	ErrInternalInconsistency = errors.New("record missing after uniqueness conflict")

	// Configuration errors
	ErrWeakSecret = errors.New("weak secret")
	ErrWeakKey    = errors.New("signing key too weak")

	// Request errors
	ErrRateLimited    = errors.New("rate limit exceeded")
	ErrInvalidRequest = errors.New("invalid request")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
