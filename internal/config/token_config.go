package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultIssuer is the iss claim stamped on every access token.
const DefaultIssuer = "auth-service"

const (
	issuerVar             = "JWT_ISSUER"
	accessTokenExpiryVar  = "ACCESS_TOKEN_EXPIRE_MINUTES"
	refreshTokenExpiryVar = "REFRESH_TOKEN_EXPIRE_DAYS"
	refreshTokenLengthVar = "REFRESH_TOKEN_LENGTH"
	privateKeyVar         = "JWT_PRIVATE_KEY"
	privateKeyFileVar     = "JWT_PRIVATE_KEY_FILE"
	keyBitsVar            = "JWT_KEY_BITS"
)

type TokenConfig interface {
	GetIssuer() string
	GetDefaultAccessTokenExpiry() time.Duration
	GetDefaultRefreshTokenExpiry() time.Duration
	GetRefreshTokenLength() int
	GetPrivateKeyPEM() string
	GetPrivateKeyFile() string
	GetKeyBits() int
}

type Tokens struct {
	v *viper.Viper
}

var _ TokenConfig = Tokens{}

func (t Tokens) GetIssuer() string {
	return t.v.GetString(issuerVar)
}

func (t Tokens) GetDefaultAccessTokenExpiry() time.Duration {
	return time.Duration(t.v.GetInt(accessTokenExpiryVar)) * time.Minute
}

func (t Tokens) GetDefaultRefreshTokenExpiry() time.Duration {
	return time.Duration(t.v.GetInt(refreshTokenExpiryVar)) * 24 * time.Hour
}

func (t Tokens) GetRefreshTokenLength() int {
	return t.v.GetInt(refreshTokenLengthVar) // bytes of entropy, 32 = 256 bits
}

// GetPrivateKeyPEM returns an injected PEM encoded RSA private key, or "" to
// let the issuer generate one on first use.
func (t Tokens) GetPrivateKeyPEM() string {
	return t.v.GetString(privateKeyVar)
}

// GetPrivateKeyFile returns a PEM file path that is loaded at start and
// watched for rotation.
func (t Tokens) GetPrivateKeyFile() string {
	return t.v.GetString(privateKeyFileVar)
}

func (t Tokens) GetKeyBits() int {
	return t.v.GetInt(keyBitsVar)
}
