package config

import (
	"fmt"
	"strings"

	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
	"github.com/spf13/viper"
)

const (
	internalAPIKeyVar   = "INTERNAL_API_KEY"
	passwordHashCostVar = "PASSWORD_HASH_COST"
)

// SecretMode decides whether a weak secret stops the process or only warns.
type SecretMode int

const (
	SecretModeStrict SecretMode = iota
	SecretModePermissive
)

func (m SecretMode) String() string {
	if m == SecretModePermissive {
		return "permissive"
	}
	return "strict"
}

// MinSecretLength is the floor applied on top of the pattern denylist.
const MinSecretLength = 32

// weakSecretPatterns flags obvious placeholders. It is a floor, not a full
// strength check.
var weakSecretPatterns = []string{
	"changeme",
	"password",
	"secret",
	"123456",
	"admin",
	"default",
	"test",
	"example",
}

type SecurityConfig interface {
	GetSecretMode() SecretMode
	GetInternalAPIKey() string
	GetPasswordHashCost() int
}

type Security struct {
	v *viper.Viper
}

var _ SecurityConfig = Security{}

// GetSecretMode is permissive only when DEBUG is on.
func (s Security) GetSecretMode() SecretMode {
	if s.v.GetBool(debugVar) {
		return SecretModePermissive
	}
	return SecretModeStrict
}

// GetInternalAPIKey returns the shared key guarding /internal routes. Empty
// leaves them open to the network layer.
func (s Security) GetInternalAPIKey() string {
	return s.v.GetString(internalAPIKeyVar)
}

func (s Security) GetPasswordHashCost() int {
	return s.v.GetInt(passwordHashCostVar)
}

// CheckSecret returns an error wrapping ErrWeakSecret when value is short or
// contains a placeholder pattern.
func CheckSecret(name, value string) error {
	if len(value) < MinSecretLength {
		return apperr.Wrapf(apperr.ErrWeakSecret, "%s shorter than %d characters", name, MinSecretLength)
	}
	lower := strings.ToLower(value)
	for _, pattern := range weakSecretPatterns {
		if strings.Contains(lower, pattern) {
			return apperr.Wrapf(apperr.ErrWeakSecret, "%s contains %q", name, pattern)
		}
	}
	return nil
}

// CheckSecrets validates every configured secret. In strict mode the first
// weak secret is returned as an error. In permissive mode weak secrets come
// back as warnings and the error is nil.
func CheckSecrets(c Config) (warnings []string, err error) {
	secrets := map[string]string{
		internalAPIKeyVar: c.GetInternalAPIKey(),
	}
	for name, value := range secrets {
		if value == "" {
			continue
		}
		if checkErr := CheckSecret(name, value); checkErr != nil {
			if c.GetSecretMode() == SecretModeStrict {
				return nil, fmt.Errorf("strict secret mode: %w", checkErr)
			}
			warnings = append(warnings, checkErr.Error())
		}
	}
	return warnings, nil
}
