package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-token-trust/identity"
	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
)

type IdentityRepo struct {
	db *sql.DB
}

var _ identity.Repo = (*IdentityRepo)(nil)

func (s *Store) Identities() *IdentityRepo {
	return &IdentityRepo{db: s.db}
}

func (r *IdentityRepo) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	var (
		id                   identity.Identity
		fullName             sql.NullString
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, auth_subject_id, email, full_name, password_hash, is_admin, is_active, created_at, updated_at
		FROM identities
		WHERE email = ?;`,
		email,
	).Scan(&id.ID, &id.AuthSubjectID, &id.Email, &fullName, &id.PasswordHash, &id.Admin, &id.Active, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("identity lookup: %w", err)
	}
	if fullName.Valid {
		id.FullName = &fullName.String
	}
	id.CreatedAt, id.UpdatedAt = fromMillis(createdAt), fromMillis(updatedAt)
	return &id, nil
}

func (r *IdentityRepo) Insert(ctx context.Context, id *identity.Identity) error {
	now := toMillis(time.Now())
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO identities (auth_subject_id, email, full_name, password_hash, is_admin, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
		id.AuthSubjectID, id.Email, id.FullName, id.PasswordHash, id.Admin, id.Active, now, now,
	)
	if isUniqueViolation(err) {
		return apperr.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("identity insert: %w", err)
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("identity insert id: %w", err)
	}
	id.ID = newID
	id.CreatedAt, id.UpdatedAt = fromMillis(now), fromMillis(now)
	return nil
}

func (r *IdentityRepo) Update(ctx context.Context, id *identity.Identity) error {
	now := toMillis(time.Now())
	res, err := r.db.ExecContext(ctx, `
		UPDATE identities
		SET auth_subject_id = ?, full_name = ?, is_admin = ?, is_active = ?, updated_at = ?
		WHERE id = ?;`,
		id.AuthSubjectID, id.FullName, id.Admin, id.Active, now, id.ID,
	)
	if err != nil {
		return fmt.Errorf("identity update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	id.UpdatedAt = fromMillis(now)
	return nil
}
