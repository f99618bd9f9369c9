package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-token-trust/internal/config"
	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
	"github.com/jrsteele09/go-token-trust/internal/metrics"
	"github.com/jrsteele09/go-token-trust/token"
	"github.com/jrsteele09/go-token-trust/token/keys"
	"github.com/rs/zerolog/log"
)

// ValidationError is returned for every rejected token. It always matches
// errors.ErrInvalidToken; Reason holds the diagnostic cause.
type ValidationError struct {
	Reason error
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %v", apperr.ErrInvalidToken, e.Reason)
	}
	return fmt.Sprintf("%v: %v: %v", apperr.ErrInvalidToken, e.Reason, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

func (e *ValidationError) Is(target error) bool {
	return target == apperr.ErrInvalidToken
}

// Validator checks RS256 access tokens against a KeySource.
type Validator struct {
	keys    KeySource
	issuer  string
	nowFunc func() time.Time
}

type ValidatorOption func(*Validator)

// WithIssuer sets the iss value tokens must carry.
func WithIssuer(issuer string) ValidatorOption {
	return func(v *Validator) {
		v.issuer = issuer
	}
}

func WithNowFunc(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.nowFunc = now
	}
}

func NewValidator(source KeySource, options ...ValidatorOption) *Validator {
	v := &Validator{keys: source}
	for _, opt := range options {
		opt(v)
	}
	if v.issuer == "" {
		v.issuer = config.DefaultIssuer
	}
	if v.nowFunc == nil {
		v.nowFunc = time.Now
	}
	return v
}

// Validate verifies signature, expiry and issuer of raw and returns its
// claims. The subject must be a decimal id and the email present.
func (v *Validator) Validate(ctx context.Context, raw string) (*token.Claims, error) {
	claims, err := v.validate(ctx, raw)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) && errors.Is(ve.Reason, apperr.ErrKeyUnavailable) {
			log.Err(err).Msg("token rejected, verification key unavailable")
		} else {
			log.Debug().Err(err).Msg("token rejected")
		}
		metrics.TokenValidations.WithLabelValues(reasonLabel(err)).Inc()
		return nil, err
	}
	metrics.TokenValidations.WithLabelValues("ok").Inc()
	return claims, nil
}

func (v *Validator) validate(ctx context.Context, raw string) (*token.Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &ValidationError{Reason: apperr.ErrTokenMalformed, Err: errors.New("empty token")}
	}

	// Structure and algorithm are checked before the key is needed so junk
	// tokens never reach the issuer.
	unverified, _, err := jwt.NewParser().ParseUnverified(raw, &token.Claims{})
	if err != nil {
		return nil, &ValidationError{Reason: apperr.ErrTokenMalformed, Err: err}
	}
	if alg := unverified.Method.Alg(); alg != keys.RS256 {
		return nil, &ValidationError{Reason: apperr.ErrWrongSignature, Err: fmt.Errorf("signing method %s not accepted", alg)}
	}

	key, err := v.keys.GetKey(ctx, false)
	if err != nil {
		return nil, &ValidationError{Reason: apperr.ErrKeyUnavailable, Err: err}
	}

	claims := &token.Claims{}
	_, err = jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{keys.RS256}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.nowFunc),
	)
	if err != nil {
		return nil, &ValidationError{Reason: classify(err), Err: err}
	}

	if _, err := claims.SubjectID(); err != nil {
		return nil, &ValidationError{Reason: apperr.ErrTokenMalformed, Err: err}
	}
	if claims.Email == "" {
		return nil, &ValidationError{Reason: apperr.ErrTokenMalformed, Err: errors.New("email claim missing")}
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return apperr.ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperr.ErrWrongSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperr.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return apperr.ErrWrongIssuer
	default:
		return apperr.ErrTokenMalformed
	}
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, apperr.ErrKeyUnavailable):
		return "key_unavailable"
	case errors.Is(err, apperr.ErrTokenExpired):
		return "expired"
	case errors.Is(err, apperr.ErrWrongIssuer):
		return "wrong_issuer"
	case errors.Is(err, apperr.ErrWrongSignature):
		return "wrong_signature"
	default:
		return "malformed"
	}
}
