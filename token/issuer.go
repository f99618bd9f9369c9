package token

import (
	"context"
	"crypto/rsa"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-token-trust/internal/config"
	"github.com/jrsteele09/go-token-trust/internal/metrics"
	"github.com/jrsteele09/go-token-trust/token/keys"
	"github.com/pkg/errors"
)

// Issuer mints RS256 access tokens with the key held by its Provider. It is
// also the authority for the matching public key.
type Issuer struct {
	keys              *keys.Provider
	issuer            string
	accessTokenExpiry time.Duration
	nowFunc           func() time.Time
}

type IssuerOption func(*Issuer)

func WithIssuer(issuer string) IssuerOption {
	return func(i *Issuer) {
		i.issuer = issuer
	}
}

func WithAccessTokenExpiry(expiry time.Duration) IssuerOption {
	return func(i *Issuer) {
		i.accessTokenExpiry = expiry
	}
}

func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowFunc = now
	}
}

func NewIssuer(provider *keys.Provider, options ...IssuerOption) *Issuer {
	i := &Issuer{keys: provider}
	for _, opt := range options {
		opt(i)
	}

	if i.issuer == "" {
		i.issuer = config.DefaultIssuer
	}
	if i.accessTokenExpiry <= 0 {
		i.accessTokenExpiry = time.Hour
	}
	if i.nowFunc == nil {
		i.nowFunc = time.Now
	}
	return i
}

// Name returns the iss value stamped on tokens.
func (i *Issuer) Name() string {
	return i.issuer
}

// AccessTokenExpiry returns the default access token lifetime.
func (i *Issuer) AccessTokenExpiry() time.Duration {
	return i.accessTokenExpiry
}

// IssueAccessToken signs a claim set for sub. A ttl of zero or less uses the
// configured default.
func (i *Issuer) IssueAccessToken(sub Subject, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = i.accessTokenExpiry
	}
	kp, err := i.keys.Current()
	if err != nil {
		return "", errors.Wrap(err, "[Issuer.IssueAccessToken] signing key")
	}

	now := i.nowFunc()
	claims := &Claims{
		Email: sub.Email,
		Name:  sub.Name,
		Admin: sub.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   strconv.FormatInt(sub.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := keys.NewKeyPairSigner(kp).Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Issuer.IssueAccessToken] sign")
	}
	metrics.TokensIssued.WithLabelValues("access").Inc()
	return signed, nil
}

// PublicKey returns the verification half of the current signing key,
// generating the pair if needed.
func (i *Issuer) PublicKey() (*rsa.PublicKey, error) {
	kp, err := i.keys.Current()
	if err != nil {
		return nil, err
	}
	return kp.RSAPublicKey()
}

// GetKey lets the issuer verify its own tokens through the same Validator a
// consumer uses. The key is always current so forceRefresh is moot.
func (i *Issuer) GetKey(_ context.Context, _ bool) (*rsa.PublicKey, error) {
	return i.PublicKey()
}

// PublicKeyPEM returns the current public key as a PKIX PEM block.
func (i *Issuer) PublicKeyPEM() (string, error) {
	kp, err := i.keys.Current()
	if err != nil {
		return "", err
	}
	return kp.ExportPublicKeyPEM()
}

// JWKS returns the current key as a JSON Web Key Set.
func (i *Issuer) JWKS() (*keys.JWKS, error) {
	kp, err := i.keys.Current()
	if err != nil {
		return nil, err
	}
	return keys.NewKeyPairSigner(kp).GetJWKS()
}
