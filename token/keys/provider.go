package keys

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-token-trust/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Provider owns the issuer's signing key pair. With nothing injected the pair
// is generated exactly once on first use. Rotate swaps the pair atomically so
// readers never see a partial update.
type Provider struct {
	bits    int
	once    sync.Once
	initErr error
	current atomic.Pointer[KeyPair]
}

type ProviderOption func(*Provider)

// WithKeyPair injects an existing key pair, skipping lazy generation.
func WithKeyPair(kp *KeyPair) ProviderOption {
	return func(p *Provider) {
		p.current.Store(kp)
	}
}

// WithKeyBits sets the modulus size used for lazy generation.
func WithKeyBits(bits int) ProviderOption {
	return func(p *Provider) {
		p.bits = bits
	}
}

func NewProvider(options ...ProviderOption) *Provider {
	p := &Provider{bits: MinRSABits}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// NewProviderFromPEM builds a Provider around a PEM encoded private key.
func NewProviderFromPEM(privateKeyPEM string) (*Provider, error) {
	kp, err := LoadKeyPairFromPEM("", privateKeyPEM)
	if err != nil {
		return nil, err
	}
	return NewProvider(WithKeyPair(kp)), nil
}

// Current returns the active key pair, generating it on the first call when
// none was injected. Concurrent first callers all observe the same pair.
func (p *Provider) Current() (*KeyPair, error) {
	p.once.Do(func() {
		if p.current.Load() != nil {
			return
		}
		kp, err := GenerateRSAKeyPair("", p.bits)
		if err != nil {
			p.initErr = err
			return
		}
		if p.current.CompareAndSwap(nil, kp) {
			log.Info().Str("kid", kp.KeyID).Msg("generated signing key pair")
		}
	})

	if kp := p.current.Load(); kp != nil {
		return kp, nil
	}
	return nil, fmt.Errorf("signing key unavailable: %w", p.initErr)
}

// Rotate replaces the active key pair. Tokens signed by the previous pair stop
// verifying once consumers pick up the new public key.
func (p *Provider) Rotate(kp *KeyPair) error {
	if kp == nil {
		return fmt.Errorf("rotate: nil key pair")
	}
	if _, err := kp.RSAPublicKey(); err != nil {
		return fmt.Errorf("rotate: %w", err)
	}
	previous := p.current.Swap(kp)
	metrics.KeyRotations.Inc()

	event := log.Info().Str("kid", kp.KeyID)
	if previous != nil {
		event = event.Str("previous_kid", previous.KeyID)
	}
	event.Msg("signing key rotated")
	return nil
}

// LoadFile reads a PEM private key from path and rotates to it.
func (p *Provider) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read key file: %w", err)
	}
	kp, err := LoadKeyPairFromPEM("", string(data))
	if err != nil {
		return fmt.Errorf("load key file %s: %w", path, err)
	}
	return p.Rotate(kp)
}
