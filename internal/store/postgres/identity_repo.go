package postgres

import (
	"context"

	"github.com/jrsteele09/go-token-trust/identity"
)

type IdentityRepo struct{ db *DB }

var _ identity.Repo = (*IdentityRepo)(nil)

func NewIdentityRepo(db *DB) *IdentityRepo { return &IdentityRepo{db: db} }

const (
	qIdentityByEmail = `
SELECT id, auth_subject_id, email, full_name, password_hash, is_admin, is_active, created_at, updated_at
FROM identities
WHERE email = $1;
`
	qIdentityInsert = `
INSERT INTO identities(auth_subject_id, email, full_name, password_hash, is_admin, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, updated_at;
`
	qIdentityUpdate = `
UPDATE identities
SET auth_subject_id = $2, full_name = $3, is_admin = $4, is_active = $5, updated_at = NOW()
WHERE id = $1
RETURNING updated_at;
`
)

func (r *IdentityRepo) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var id identity.Identity
	err := r.db.Pool.QueryRow(ctx, qIdentityByEmail, email).Scan(
		&id.ID, &id.AuthSubjectID, &id.Email, &id.FullName, &id.PasswordHash,
		&id.Admin, &id.Active, &id.CreatedAt, &id.UpdatedAt,
	)
	if err != nil {
		return nil, mapError(err, "identity lookup")
	}
	return &id, nil
}

func (r *IdentityRepo) Insert(ctx context.Context, id *identity.Identity) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.Pool.QueryRow(ctx, qIdentityInsert,
		id.AuthSubjectID, id.Email, id.FullName, id.PasswordHash, id.Admin, id.Active,
	).Scan(&id.ID, &id.CreatedAt, &id.UpdatedAt)
	return mapError(err, "identity insert")
}

func (r *IdentityRepo) Update(ctx context.Context, id *identity.Identity) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.Pool.QueryRow(ctx, qIdentityUpdate,
		id.ID, id.AuthSubjectID, id.FullName, id.Admin, id.Active,
	).Scan(&id.UpdatedAt)
	return mapError(err, "identity update")
}
