// Package ratelimit bounds call rates per operation and client address.
package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-token-trust/internal/config"
	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
	"github.com/pkg/errors"
)

// Operation names a throttled endpoint family.
type Operation string

const (
	OpLogin         Operation = "login"
	OpRegister      Operation = "register"
	OpRefresh       Operation = "refresh"
	OpPasswordReset Operation = "password_reset"
)

// Operations lists every operation read from configuration.
var Operations = []Operation{OpLogin, OpRegister, OpRefresh, OpPasswordReset}

// Rule allows Limit calls per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

type windowKey struct {
	op   Operation
	addr string
}

type window struct {
	start time.Time
	count int
}

// FixedWindow counts calls per (operation, address) in fixed windows that
// start at the first call. Operations without a rule are never limited.
type FixedWindow struct {
	rules   map[Operation]Rule
	nowFunc func() time.Time

	mu        sync.Mutex
	windows   map[windowKey]*window
	lastSweep time.Time
}

type Option func(*FixedWindow)

func WithRule(op Operation, limit int, per time.Duration) Option {
	return func(f *FixedWindow) {
		f.rules[op] = Rule{Limit: limit, Window: per}
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(f *FixedWindow) {
		f.nowFunc = now
	}
}

func NewFixedWindow(options ...Option) *FixedWindow {
	f := &FixedWindow{
		rules:   make(map[Operation]Rule),
		windows: make(map[windowKey]*window),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(f)
	}
	return f
}

// NewFromConfig builds a limiter with a rule per known operation. With
// RATE_LIMIT_ENABLED=false the limiter allows everything.
func NewFromConfig(cfg config.RateLimitConfig, options ...Option) (*FixedWindow, error) {
	if !cfg.GetRateLimitEnabled() {
		return NewFixedWindow(options...), nil
	}
	rules := make([]Option, 0, len(Operations)+len(options))
	for _, op := range Operations {
		limit, per, err := cfg.GetRateLimit(string(op))
		if err != nil {
			return nil, errors.Wrapf(err, "[ratelimit.NewFromConfig] %s", op)
		}
		rules = append(rules, WithRule(op, limit, per))
	}
	return NewFixedWindow(append(rules, options...)...), nil
}

// Rule returns the rule for op, if any.
func (f *FixedWindow) Rule(op Operation) (Rule, bool) {
	rule, ok := f.rules[op]
	return rule, ok
}

// Allow records a call and reports whether it is within the limit. When it
// is not, retryAfter is the time left in the current window.
func (f *FixedWindow) Allow(op Operation, addr string) (allowed bool, retryAfter time.Duration) {
	rule, ok := f.rules[op]
	if !ok || rule.Limit <= 0 {
		return true, 0
	}

	now := f.nowFunc()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweep(now)

	key := windowKey{op: op, addr: addr}
	w, ok := f.windows[key]
	if !ok || !now.Before(w.start.Add(rule.Window)) {
		w = &window{start: now}
		f.windows[key] = w
	}
	if w.count >= rule.Limit {
		return false, w.start.Add(rule.Window).Sub(now)
	}
	w.count++
	return true, 0
}

// LimitError reports a rejected call. It matches errors.ErrRateLimited.
type LimitError struct {
	Operation  Operation
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %s, retry after %s", apperr.ErrRateLimited, e.Operation, e.RetryAfter)
}

func (e *LimitError) Is(target error) bool {
	return target == apperr.ErrRateLimited
}

// Check is Allow expressed as an error: nil when allowed, a *LimitError
// otherwise.
func (f *FixedWindow) Check(op Operation, addr string) error {
	allowed, retryAfter := f.Allow(op, addr)
	if allowed {
		return nil
	}
	return &LimitError{Operation: op, RetryAfter: retryAfter}
}

// sweep drops expired windows at most once per longest rule window.
func (f *FixedWindow) sweep(now time.Time) {
	var longest time.Duration
	for _, rule := range f.rules {
		longest = max(longest, rule.Window)
	}
	if now.Sub(f.lastSweep) < longest {
		return
	}
	for key, w := range f.windows {
		if !now.Before(w.start.Add(f.rules[key.op].Window)) {
			delete(f.windows, key)
		}
	}
	f.lastSweep = now
}

// Len returns the number of live windows.
func (f *FixedWindow) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.windows)
}
