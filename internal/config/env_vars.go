package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	configFileVar     = "CONFIG_FILE"
	portEnvVar        = "PORT"
	appNameVar        = "APP_NAME"
	envVar            = "ENV"
	logLevelVar       = "LOG_LEVEL"
	debugVar          = "DEBUG"
	metricsEnabledVar = "METRICS_ENABLED"
)

type EnvVars struct {
	v *viper.Viper
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.v.GetString(portEnvVar)
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.v.GetString(appNameVar)
}

func (e EnvVars) GetEnv() string {
	env := e.v.GetString(envVar)
	if env == "" {
		return "DEV"
	}
	return strings.ToUpper(env)
}

func (e EnvVars) GetLogLevel() string {
	return e.v.GetString(logLevelVar)
}

func (e EnvVars) GetMetricsEnabled() bool {
	return e.v.GetBool(metricsEnabledVar)
}

// IsDebug reports whether the process runs in debug mode. Debug mode relaxes
// secret checks from errors to warnings.
func (e EnvVars) IsDebug() bool {
	return e.v.GetBool(debugVar)
}
