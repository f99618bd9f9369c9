package config

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	SecurityConfig
	RateLimitConfig
	StoreConfig
	ValidationConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetMetricsEnabled() bool
	IsDebug() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Tokens
	Security
	RateLimits
	Store
	Validation
}

// Option adjusts the viper instance before values are read.
type Option func(v *viper.Viper)

// WithDefault overrides a default value, letting each binary pick its own port and name.
func WithDefault(key string, value any) Option {
	return func(v *viper.Viper) {
		v.SetDefault(key, value)
	}
}

// New builds a Config from environment variables and, when CONFIG_FILE is
// set, a config file. Environment variables win over the file.
func New(opts ...Option) Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	for _, opt := range opts {
		opt(v)
	}

	if file := v.GetString(configFileVar); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			log.Warn().Err(err).Str("file", file).Msg("config file not loaded")
		}
	}

	return newMainConfig(v)
}

func newMainConfig(v *viper.Viper) mainConfig {
	return mainConfig{
		EnvVars:    EnvVars{v: v},
		Cors:       Cors{v: v},
		Tokens:     Tokens{v: v},
		Security:   Security{v: v},
		RateLimits: RateLimits{v: v},
		Store:      Store{v: v},
		Validation: Validation{v: v},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(portEnvVar, "8080")
	v.SetDefault(appNameVar, "Auth Service")
	v.SetDefault(envVar, "DEV")
	v.SetDefault(logLevelVar, "info")
	v.SetDefault(debugVar, false)
	v.SetDefault(metricsEnabledVar, true)

	v.SetDefault(allowedOriginsVar, "http://localhost:5173,http://localhost:3000")

	v.SetDefault(issuerVar, DefaultIssuer)
	v.SetDefault(accessTokenExpiryVar, 60)
	v.SetDefault(refreshTokenExpiryVar, 7)
	v.SetDefault(refreshTokenLengthVar, 32)
	v.SetDefault(keyBitsVar, 2048)

	v.SetDefault(passwordHashCostVar, 12)

	v.SetDefault(rateLimitEnabledVar, true)
	for op, rate := range defaultRateLimits {
		v.SetDefault(rateLimitVar(op), rate)
	}

	v.SetDefault(databaseURLVar, "file:auth.db")
	v.SetDefault(dbMaxConnsVar, 10)
	v.SetDefault(dbQueryTimeoutVar, "5s")

	v.SetDefault(authServiceURLVar, "http://localhost:8001")
	v.SetDefault(publicKeyCacheTTLVar, "24h")
	v.SetDefault(publicKeyFetchTimeoutVar, "10s")
}
