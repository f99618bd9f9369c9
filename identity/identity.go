// Package identity mirrors identities authenticated by the issuer into a
// consumer's own store.
package identity

import (
	"context"
	"time"

	"github.com/jrsteele09/go-token-trust/token"
)

// Identity is a consumer-side replica of an issuer identity. It is keyed by
// Email; AuthSubjectID is only a reference to the issuer's id space.
type Identity struct {
	ID            int64     `json:"id"`
	AuthSubjectID int64     `json:"auth_service_id"`
	Email         string    `json:"email"`
	FullName      *string   `json:"full_name"`
	Admin         bool      `json:"is_admin"`
	Active        bool      `json:"is_active"`
	PasswordHash  string    `json:"-"` // always empty, credentials live on the issuer
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RemoteIdentity is the part of a validated token the reconciler consumes.
type RemoteIdentity struct {
	SubjectID int64
	Email     string
	FullName  *string
	Admin     bool
}

// RemoteIdentityFromClaims converts validated access token claims.
func RemoteIdentityFromClaims(claims *token.Claims) (RemoteIdentity, error) {
	id, err := claims.SubjectID()
	if err != nil {
		return RemoteIdentity{}, err
	}
	return RemoteIdentity{
		SubjectID: id,
		Email:     claims.Email,
		FullName:  claims.Name,
		Admin:     claims.Admin,
	}, nil
}

// Repo is the consumer's identity store. Insert must return
// errors.ErrConflict when the email is already taken and FindByEmail must
// return errors.ErrNotFound when nothing matches.
type Repo interface {
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	Insert(ctx context.Context, identity *Identity) error
	Update(ctx context.Context, identity *Identity) error
}
