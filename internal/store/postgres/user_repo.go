package postgres

import (
	"context"

	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
	"github.com/jrsteele09/go-token-trust/users"
)

type UserRepo struct{ db *DB }

var _ users.UserRepo = (*UserRepo)(nil)

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const (
	qUserInsert = `
INSERT INTO users(email, password_hash, full_name, is_admin, is_active)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at, updated_at;
`
	qUserByEmail = `
SELECT id, email, password_hash, full_name, is_admin, is_active, created_at, updated_at
FROM users
WHERE email = $1;
`
	qUserByID = `
SELECT id, email, password_hash, full_name, is_admin, is_active, created_at, updated_at
FROM users
WHERE id = $1;
`
	qUserSetActive = `
UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1;
`
)

func (r *UserRepo) Create(ctx context.Context, u *users.User) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.Pool.QueryRow(ctx, qUserInsert, u.Email, u.PasswordHash, u.FullName, u.Admin, u.Active).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return mapError(err, "user insert")
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.get(ctx, qUserByEmail, email)
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*users.User, error) {
	return r.get(ctx, qUserByID, id)
}

func (r *UserRepo) SetActive(ctx context.Context, id int64, active bool) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Pool.Exec(ctx, qUserSetActive, id, active)
	if err != nil {
		return mapError(err, "user update")
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *UserRepo) get(ctx context.Context, query string, arg any) (*users.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u users.User
	err := r.db.Pool.QueryRow(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Admin, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, mapError(err, "user lookup")
	}
	return &u, nil
}
