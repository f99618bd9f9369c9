package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const rateLimitEnabledVar = "RATE_LIMIT_ENABLED"

// Rate limit defaults per operation, in "<count>/<period>" form.
var defaultRateLimits = map[string]string{
	"login":          "5/minute",
	"register":       "3/minute",
	"refresh":        "10/minute",
	"password_reset": "3/minute",
}

type RateLimitConfig interface {
	GetRateLimitEnabled() bool
	GetRateLimit(operation string) (limit int, window time.Duration, err error)
}

type RateLimits struct {
	v *viper.Viper
}

var _ RateLimitConfig = RateLimits{}

func (r RateLimits) GetRateLimitEnabled() bool {
	return r.v.GetBool(rateLimitEnabledVar)
}

// GetRateLimit reads RATE_LIMIT_<OPERATION>, e.g. RATE_LIMIT_LOGIN=5/minute.
func (r RateLimits) GetRateLimit(operation string) (int, time.Duration, error) {
	value := r.v.GetString(rateLimitVar(operation))
	if value == "" {
		return 0, 0, fmt.Errorf("no rate limit configured for %q", operation)
	}
	return ParseRate(value)
}

func rateLimitVar(operation string) string {
	return "RATE_LIMIT_" + strings.ToUpper(operation)
}

// ParseRate parses "<count>/<period>" where period is second, minute, hour
// or day, optionally plural.
func ParseRate(value string) (int, time.Duration, error) {
	countStr, periodStr, ok := strings.Cut(strings.TrimSpace(value), "/")
	if !ok {
		return 0, 0, fmt.Errorf("rate %q: expected <count>/<period>", value)
	}
	count, err := strconv.Atoi(strings.TrimSpace(countStr))
	if err != nil || count <= 0 {
		return 0, 0, fmt.Errorf("rate %q: count must be a positive integer", value)
	}

	var window time.Duration
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(periodStr)), "s") {
	case "second":
		window = time.Second
	case "minute":
		window = time.Minute
	case "hour":
		window = time.Hour
	case "day":
		window = 24 * time.Hour
	default:
		return 0, 0, fmt.Errorf("rate %q: unknown period %q", value, periodStr)
	}
	return count, window, nil
}
