package verifier

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
	"github.com/jrsteele09/go-token-trust/token/keys"
)

// PublicKeyPath is where the issuer serves its current public key.
const PublicKeyPath = "/internal/public-key"

const (
	defaultFetchTimeout = 10 * time.Second
	maxKeyResponseBytes = 64 << 10
)

// FetchError reports a failed key fetch. Transport failures, bad statuses and
// unusable bodies are all reported the same way.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("fetch public key: %v", e.Err)
	}
	return fmt.Sprintf("fetch public key from %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == apperr.ErrKeyUnavailable
}

func asFetchError(err error) error {
	var fe *FetchError
	if apperr.As(err, &fe) {
		return err
	}
	return &FetchError{Err: err}
}

// HTTPKeyFetcher reads the key from the issuer's public key endpoint.
type HTTPKeyFetcher struct {
	url     string
	timeout time.Duration
	client  *http.Client
}

var _ KeyFetcher = (*HTTPKeyFetcher)(nil)

func NewHTTPKeyFetcher(baseURL string, timeout time.Duration) *HTTPKeyFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPKeyFetcher{
		url:     strings.TrimRight(baseURL, "/") + PublicKeyPath,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// URL returns the endpoint the fetcher reads from.
func (f *HTTPKeyFetcher) URL() string {
	return f.url
}

func (f *HTTPKeyFetcher) FetchKey(ctx context.Context) (*rsa.PublicKey, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	key, err := f.fetch(ctx)
	if err != nil {
		return nil, &FetchError{URL: f.url, Err: err}
	}
	return key, nil
}

func (f *HTTPKeyFetcher) fetch(ctx context.Context) (*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body keys.PublicKeyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxKeyResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if body.PublicKey == "" {
		return nil, fmt.Errorf("response has no public_key")
	}
	if body.Algorithm != "" && body.Algorithm != keys.RS256 {
		return nil, fmt.Errorf("unsupported algorithm %q", body.Algorithm)
	}
	return keys.ParsePublicKeyPEM(body.PublicKey)
}
