package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
	"github.com/jrsteele09/go-token-trust/users"
)

type UserRepo struct {
	db *sql.DB
}

var _ users.UserRepo = (*UserRepo)(nil)

func (s *Store) Users() *UserRepo {
	return &UserRepo{db: s.db}
}

const userColumns = `id, email, password_hash, full_name, is_admin, is_active, created_at, updated_at`

func (r *UserRepo) Create(ctx context.Context, u *users.User) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (email, password_hash, full_name, is_admin, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?);`,
		u.Email, u.PasswordHash, u.FullName, u.Admin, u.Active, toMillis(now), toMillis(now),
	)
	if isUniqueViolation(err) {
		return apperr.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("user insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user insert id: %w", err)
	}
	u.ID = id
	u.CreatedAt, u.UpdatedAt = fromMillis(toMillis(now)), fromMillis(toMillis(now))
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?;`, email))
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*users.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?;`, id))
}

// SetActive flips the active flag on an account.
func (r *UserRepo) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?;`,
		active, toMillis(time.Now()), id)
	if err != nil {
		return fmt.Errorf("user update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*users.User, error) {
	var (
		u                    users.User
		fullName             sql.NullString
		createdAt, updatedAt int64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &fullName, &u.Admin, &u.Active, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if fullName.Valid {
		u.FullName = &fullName.String
	}
	u.CreatedAt, u.UpdatedAt = fromMillis(createdAt), fromMillis(updatedAt)
	return &u, nil
}
