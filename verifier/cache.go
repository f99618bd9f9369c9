// Package verifier validates access tokens on the consumer side with a
// cached copy of the issuer's public key.
package verifier

import (
	"context"
	"crypto/rsa"
	"sync"
	"time"

	"github.com/jrsteele09/go-token-trust/internal/config"
	"github.com/jrsteele09/go-token-trust/internal/metrics"
	"github.com/jrsteele09/go-token-trust/token/keys"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL bounds how long a fetched key is trusted.
const DefaultCacheTTL = 24 * time.Hour

// KeySource yields the key tokens are verified against. forceRefresh asks
// for a fresh copy where the source caches.
type KeySource interface {
	GetKey(ctx context.Context, forceRefresh bool) (*rsa.PublicKey, error)
}

// KeyFetcher retrieves the issuer's current public key.
type KeyFetcher interface {
	FetchKey(ctx context.Context) (*rsa.PublicKey, error)
}

// KeyCache is a TTL cache in front of a KeyFetcher. A static key bypasses the
// cache and the fetcher entirely.
type KeyCache struct {
	fetcher KeyFetcher
	static  *rsa.PublicKey
	ttl     time.Duration
	nowFunc func() time.Time

	// inflight collapses concurrent fetches, failures included, into one call.
	inflight singleflight.Group

	mu        sync.Mutex // guards key and fetchedAt
	key       *rsa.PublicKey
	fetchedAt time.Time
}

const fetchKey = "public-key"

var _ KeySource = (*KeyCache)(nil)

type KeyCacheOption func(*KeyCache)

// WithStaticKey pins the verification key. It never expires and is never
// refetched.
func WithStaticKey(key *rsa.PublicKey) KeyCacheOption {
	return func(c *KeyCache) {
		c.static = key
	}
}

func WithTTL(ttl time.Duration) KeyCacheOption {
	return func(c *KeyCache) {
		c.ttl = ttl
	}
}

func WithCacheNowFunc(now func() time.Time) KeyCacheOption {
	return func(c *KeyCache) {
		c.nowFunc = now
	}
}

func NewKeyCache(fetcher KeyFetcher, options ...KeyCacheOption) *KeyCache {
	c := &KeyCache{fetcher: fetcher}
	for _, opt := range options {
		opt(c)
	}
	if c.ttl <= 0 {
		c.ttl = DefaultCacheTTL
	}
	if c.nowFunc == nil {
		c.nowFunc = time.Now
	}
	return c
}

// NewKeyCacheFromConfig wires the cache from consumer configuration: a
// JWT_PUBLIC_KEY takes priority, otherwise keys are fetched from
// AUTH_SERVICE_URL.
func NewKeyCacheFromConfig(cfg config.ValidationConfig) (*KeyCache, error) {
	options := []KeyCacheOption{WithTTL(cfg.GetPublicKeyCacheTTL())}
	if pemText := cfg.GetStaticPublicKeyPEM(); pemText != "" {
		key, err := keys.ParsePublicKeyPEM(pemText)
		if err != nil {
			return nil, err
		}
		options = append(options, WithStaticKey(key))
	}
	fetcher := NewHTTPKeyFetcher(cfg.GetAuthServiceURL(), cfg.GetPublicKeyFetchTimeout())
	return NewKeyCache(fetcher, options...), nil
}

// GetKey returns the static key if configured. Otherwise the cached key is
// returned unless it is missing, older than the TTL or forceRefresh is set,
// in which case it is fetched. Concurrent callers share one fetch and its
// result. A failed fetch is reported as a *FetchError and no key is returned,
// even when a stale one is held. A caller whose ctx ends while waiting gets
// a *FetchError wrapping ctx.Err().
func (c *KeyCache) GetKey(ctx context.Context, forceRefresh bool) (*rsa.PublicKey, error) {
	if c.static != nil {
		return c.static, nil
	}

	if !forceRefresh {
		if key, ok := c.cached(); ok {
			return key, nil
		}
	}

	// The fetch outlives any single caller; the fetcher bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	result := c.inflight.DoChan(fetchKey, func() (any, error) {
		// A flight that finished just before this one may have filled the cache.
		if !forceRefresh {
			if key, ok := c.cached(); ok {
				return key, nil
			}
		}
		return c.fetch(fetchCtx)
	})

	select {
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*rsa.PublicKey), nil
	case <-ctx.Done():
		return nil, asFetchError(ctx.Err())
	}
}

func (c *KeyCache) cached() (*rsa.PublicKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key == nil || c.nowFunc().Sub(c.fetchedAt) > c.ttl {
		return nil, false
	}
	return c.key, true
}

func (c *KeyCache) fetch(ctx context.Context) (*rsa.PublicKey, error) {
	now := c.nowFunc()
	start := time.Now()
	key, err := c.fetcher.FetchKey(ctx)
	metrics.KeyFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.KeyFetches.WithLabelValues("error").Inc()
		c.mu.Lock()
		stale := c.key != nil
		c.mu.Unlock()
		log.Err(err).Bool("stale_key_held", stale).Msg("failed to fetch public key")
		return nil, asFetchError(err)
	}

	metrics.KeyFetches.WithLabelValues("ok").Inc()
	c.mu.Lock()
	c.key = key
	c.fetchedAt = now
	c.mu.Unlock()
	return key, nil
}

// Clear drops the cached key so the next GetKey fetches.
func (c *KeyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = nil
	c.fetchedAt = time.Time{}
}
