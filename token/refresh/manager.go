package refresh

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/jrsteele09/go-token-trust/internal/config"
	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
	"github.com/jrsteele09/go-token-trust/internal/metrics"
)

// Manager handles refresh token creation and redemption
type Manager struct {
	repo    Repo
	length  int
	expiry  time.Duration
	nowFunc func() time.Time
}

type ManagerOption func(*Manager)

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithExpiry overrides the configured refresh token lifetime.
func WithExpiry(expiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.expiry = expiry
	}
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, cfg config.TokenConfig, options ...ManagerOption) *Manager {
	m := &Manager{
		repo:   repo,
		length: cfg.GetRefreshTokenLength(),
		expiry: cfg.GetDefaultRefreshTokenExpiry(),
	}
	for _, opt := range options {
		opt(m)
	}

	if m.length < 32 {
		m.length = 32
	}
	if m.expiry <= 0 {
		m.expiry = 7 * 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

// Issue generates a refresh token for subjectID without persisting it. The
// plaintext goes to the client, the record to the store.
func (m *Manager) Issue(subjectID int64) (string, *StoredRefreshToken, error) {
	tokenBytes := make([]byte, m.length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}

	plaintext := base64.RawURLEncoding.EncodeToString(tokenBytes)
	now := m.nowFunc()
	return plaintext, &StoredRefreshToken{
		SubjectID: subjectID,
		TokenHash: HashToken(plaintext),
		ExpiresAt: now.Add(m.expiry),
		CreatedAt: now,
	}, nil
}

// Create issues and stores a refresh token, replacing any earlier token held
// by the subject (single refresh token per subject).
func (m *Manager) Create(ctx context.Context, subjectID int64) (string, error) {
	if err := m.repo.DeleteBySubject(ctx, subjectID); err != nil {
		return "", fmt.Errorf("failed to delete existing refresh token: %w", err)
	}

	plaintext, record, err := m.Issue(subjectID)
	if err != nil {
		return "", err
	}
	if err := m.repo.Create(ctx, record); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}
	metrics.TokensIssued.WithLabelValues("refresh").Inc()
	return plaintext, nil
}

// Redeem looks up the record for a presented plaintext token. The record is
// not modified.
func (m *Manager) Redeem(ctx context.Context, plaintext string) (*StoredRefreshToken, error) {
	if plaintext == "" {
		metrics.RefreshRedemptions.WithLabelValues("not_found").Inc()
		return nil, apperr.ErrRefreshTokenNotFound
	}

	record, err := m.repo.GetByHash(ctx, HashToken(plaintext))
	if apperr.Is(err, apperr.ErrNotFound) {
		metrics.RefreshRedemptions.WithLabelValues("not_found").Inc()
		return nil, apperr.ErrRefreshTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if !m.nowFunc().Before(record.ExpiresAt) {
		metrics.RefreshRedemptions.WithLabelValues("expired").Inc()
		return nil, apperr.ErrRefreshTokenExpired
	}
	metrics.RefreshRedemptions.WithLabelValues("ok").Inc()
	return record, nil
}
