package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	authServiceURLVar        = "AUTH_SERVICE_URL"
	publicKeyVar             = "JWT_PUBLIC_KEY"
	publicKeyCacheTTLVar     = "PUBLIC_KEY_CACHE_TTL"
	publicKeyFetchTimeoutVar = "PUBLIC_KEY_FETCH_TIMEOUT"
)

// ValidationConfig is read by services that verify tokens minted elsewhere.
type ValidationConfig interface {
	GetAuthServiceURL() string
	GetStaticPublicKeyPEM() string
	GetPublicKeyCacheTTL() time.Duration
	GetPublicKeyFetchTimeout() time.Duration
}

type Validation struct {
	v *viper.Viper
}

var _ ValidationConfig = Validation{}

func (c Validation) GetAuthServiceURL() string {
	return c.v.GetString(authServiceURLVar)
}

// GetStaticPublicKeyPEM returns a pinned verification key. When set the key
// is never fetched from the auth service.
func (c Validation) GetStaticPublicKeyPEM() string {
	return c.v.GetString(publicKeyVar)
}

func (c Validation) GetPublicKeyCacheTTL() time.Duration {
	return c.v.GetDuration(publicKeyCacheTTLVar)
}

func (c Validation) GetPublicKeyFetchTimeout() time.Duration {
	return c.v.GetDuration(publicKeyFetchTimeoutVar)
}
