package verifier_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
	"github.com/jrsteele09/go-token-trust/internal/utils"
	"github.com/jrsteele09/go-token-trust/token"
	"github.com/jrsteele09/go-token-trust/token/keys"
	"github.com/jrsteele09/go-token-trust/verifier"
	"github.com/stretchr/testify/require"
)

type validatorFixture struct {
	keyPair   *keys.KeyPair
	issuer    *token.Issuer
	validator *verifier.Validator
	now       time.Time
}

func setupValidatorFixture(t *testing.T) *validatorFixture {
	t.Helper()
	kp, _ := testKeyPairs(t)
	now := time.Unix(1_735_732_800, 0)
	fetcher := &fakeFetcher{key: publicKey(t, kp)}
	return &validatorFixture{
		keyPair: kp,
		issuer: token.NewIssuer(keys.NewProvider(keys.WithKeyPair(kp)),
			token.WithNowFunc(func() time.Time { return now })),
		validator: verifier.NewValidator(verifier.NewKeyCache(fetcher),
			verifier.WithNowFunc(func() time.Time { return now.Add(time.Minute) })),
		now: now,
	}
}

func (f *validatorFixture) sign(t *testing.T, kp *keys.KeyPair, claims *token.Claims) string {
	t.Helper()
	raw, err := keys.NewKeyPairSigner(kp).Sign(claims)
	require.NoError(t, err)
	return raw
}

func (f *validatorFixture) claims() *token.Claims {
	return &token.Claims{
		Email: "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "auth-service",
			Subject:   "123",
			IssuedAt:  jwt.NewNumericDate(f.now),
			ExpiresAt: jwt.NewNumericDate(f.now.Add(time.Hour)),
		},
	}
}

func TestValidator_AcceptsIssuedToken(t *testing.T) {
	f := setupValidatorFixture(t)

	raw, err := f.issuer.IssueAccessToken(token.Subject{ID: 123, Email: "a@x.com", Name: utils.Ptr("Ada")}, 0)
	require.NoError(t, err)

	claims, err := f.validator.Validate(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, "123", claims.Subject)
	require.Equal(t, "a@x.com", claims.Email)
	require.Equal(t, "Ada", *claims.Name)
	require.False(t, claims.Admin)
}

func TestValidator_Rejections(t *testing.T) {
	f := setupValidatorFixture(t)
	_, otherKey := testKeyPairs(t)

	tests := []struct {
		name   string
		raw    func() string
		reason error
	}{
		{
			name:   "empty",
			raw:    func() string { return "" },
			reason: apperr.ErrTokenMalformed,
		},
		{
			name:   "garbage",
			raw:    func() string { return "not.a.jwt" },
			reason: apperr.ErrTokenMalformed,
		},
		{
			name:   "signed by another key",
			raw:    func() string { return f.sign(t, otherKey, f.claims()) },
			reason: apperr.ErrWrongSignature,
		},
		{
			name: "wrong issuer",
			raw: func() string {
				c := f.claims()
				c.Issuer = "some-other-service"
				return f.sign(t, f.keyPair, c)
			},
			reason: apperr.ErrWrongIssuer,
		},
		{
			name: "expired",
			raw: func() string {
				c := f.claims()
				c.ExpiresAt = jwt.NewNumericDate(f.now)
				return f.sign(t, f.keyPair, c)
			},
			reason: apperr.ErrTokenExpired,
		},
		{
			name: "missing exp",
			raw: func() string {
				c := f.claims()
				c.ExpiresAt = nil
				return f.sign(t, f.keyPair, c)
			},
			reason: apperr.ErrTokenMalformed,
		},
		{
			name: "non decimal subject",
			raw: func() string {
				c := f.claims()
				c.Subject = "user-123"
				return f.sign(t, f.keyPair, c)
			},
			reason: apperr.ErrTokenMalformed,
		},
		{
			name: "missing email",
			raw: func() string {
				c := f.claims()
				c.Email = ""
				return f.sign(t, f.keyPair, c)
			},
			reason: apperr.ErrTokenMalformed,
		},
		{
			name: "symmetric algorithm",
			raw: func() string {
				raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, f.claims()).SignedString([]byte("shared-secret"))
				require.NoError(t, err)
				return raw
			},
			reason: apperr.ErrWrongSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := f.validator.Validate(context.Background(), tt.raw())
			require.Nil(t, claims)
			require.ErrorIs(t, err, apperr.ErrInvalidToken)
			require.ErrorIs(t, err, tt.reason)

			var ve *verifier.ValidationError
			require.ErrorAs(t, err, &ve)
			require.Equal(t, tt.reason, ve.Reason)
		})
	}
}

func TestValidator_ExpiresAtBoundary(t *testing.T) {
	kp, _ := testKeyPairs(t)
	issuedAt := time.Unix(1_735_732_800, 0)
	issuer := token.NewIssuer(keys.NewProvider(keys.WithKeyPair(kp)),
		token.WithNowFunc(func() time.Time { return issuedAt }))
	raw, err := issuer.IssueAccessToken(token.Subject{ID: 1, Email: "a@x.com"}, time.Minute)
	require.NoError(t, err)

	source := verifier.NewKeyCache(nil, verifier.WithStaticKey(publicKey(t, kp)))

	before := verifier.NewValidator(source, verifier.WithNowFunc(func() time.Time { return issuedAt.Add(59 * time.Second) }))
	_, err = before.Validate(context.Background(), raw)
	require.NoError(t, err)

	after := verifier.NewValidator(source, verifier.WithNowFunc(func() time.Time { return issuedAt.Add(61 * time.Second) }))
	_, err = after.Validate(context.Background(), raw)
	require.ErrorIs(t, err, apperr.ErrTokenExpired)
}

func TestValidator_KeyUnavailable(t *testing.T) {
	f := setupValidatorFixture(t)
	raw, err := f.issuer.IssueAccessToken(token.Subject{ID: 1, Email: "a@x.com"}, 0)
	require.NoError(t, err)

	validator := verifier.NewValidator(verifier.NewKeyCache(&fakeFetcher{err: errors.New("timeout")}))

	_, err = validator.Validate(context.Background(), raw)
	require.ErrorIs(t, err, apperr.ErrInvalidToken)
	require.ErrorIs(t, err, apperr.ErrKeyUnavailable)
}

func TestValidator_StructuralRejectionSkipsKeyFetch(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("issuer down")}
	validator := verifier.NewValidator(verifier.NewKeyCache(fetcher))

	hs256, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		raw    string
		reason error
	}{
		{name: "no segments", raw: "not-a-jwt", reason: apperr.ErrTokenMalformed},
		{name: "bad base64", raw: "a.b.c", reason: apperr.ErrTokenMalformed},
		{name: "symmetric algorithm", raw: hs256, reason: apperr.ErrWrongSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.Validate(context.Background(), tt.raw)
			require.ErrorIs(t, err, apperr.ErrInvalidToken)
			require.ErrorIs(t, err, tt.reason)
			require.NotErrorIs(t, err, apperr.ErrKeyUnavailable)
		})
	}
	require.Zero(t, fetcher.calls.Load())
}

func TestValidator_CustomIssuer(t *testing.T) {
	kp, _ := testKeyPairs(t)
	issuer := token.NewIssuer(keys.NewProvider(keys.WithKeyPair(kp)), token.WithIssuer("billing-auth"))
	raw, err := issuer.IssueAccessToken(token.Subject{ID: 5, Email: "e@x.com"}, 0)
	require.NoError(t, err)

	_, err = verifier.NewValidator(issuer).Validate(context.Background(), raw)
	require.ErrorIs(t, err, apperr.ErrWrongIssuer)

	_, err = verifier.NewValidator(issuer, verifier.WithIssuer("billing-auth")).Validate(context.Background(), raw)
	require.NoError(t, err)
}

func TestValidator_FollowsRotationAfterClear(t *testing.T) {
	kp, other := testKeyPairs(t)
	provider := keys.NewProvider(keys.WithKeyPair(kp))
	issuer := token.NewIssuer(provider)

	fetcher := &fakeFetcher{key: publicKey(t, kp)}
	cache := verifier.NewKeyCache(fetcher)
	validator := verifier.NewValidator(cache)
	ctx := context.Background()

	_, err := cache.GetKey(ctx, false)
	require.NoError(t, err)

	require.NoError(t, provider.Rotate(other))
	fetcher.set(publicKey(t, other), nil)

	raw, err := issuer.IssueAccessToken(token.Subject{ID: 1, Email: "a@x.com"}, 0)
	require.NoError(t, err)

	_, err = validator.Validate(ctx, raw)
	require.ErrorIs(t, err, apperr.ErrWrongSignature, "cached key predates the rotation")

	cache.Clear()
	_, err = validator.Validate(ctx, raw)
	require.NoError(t, err)
}
