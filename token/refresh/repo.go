package refresh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// StoredRefreshToken is the server side record of a refresh token. The
// plaintext handed to the client is never stored, only its SHA-256 hash.
type StoredRefreshToken struct {
	ID        int64
	SubjectID int64     // owning user
	TokenHash string    // hex(sha256(plaintext))
	ExpiresAt time.Time // absolute expiry
	CreatedAt time.Time
}

// Repo persists refresh token records keyed by hash.
type Repo interface {
	Create(ctx context.Context, rt *StoredRefreshToken) error
	// GetByHash returns errors.ErrNotFound when no record matches.
	GetByHash(ctx context.Context, tokenHash string) (*StoredRefreshToken, error)
	DeleteBySubject(ctx context.Context, subjectID int64) error
}

// HashToken returns the comparison hash stored for a plaintext token.
func HashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}
