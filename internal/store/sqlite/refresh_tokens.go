package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
	"github.com/jrsteele09/go-token-trust/token/refresh"
)

type RefreshTokenRepo struct {
	db *sql.DB
}

var _ refresh.Repo = (*RefreshTokenRepo)(nil)

func (s *Store) RefreshTokens() *RefreshTokenRepo {
	return &RefreshTokenRepo{db: s.db}
}

func (r *RefreshTokenRepo) Create(ctx context.Context, rt *refresh.StoredRefreshToken) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?);`,
		rt.SubjectID, rt.TokenHash, toMillis(rt.ExpiresAt), toMillis(rt.CreatedAt),
	)
	if isUniqueViolation(err) {
		return apperr.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("refresh token insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("refresh token insert id: %w", err)
	}
	rt.ID = id
	return nil
}

func (r *RefreshTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*refresh.StoredRefreshToken, error) {
	var (
		rt                   refresh.StoredRefreshToken
		expiresAt, createdAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = ?;`,
		tokenHash,
	).Scan(&rt.ID, &rt.SubjectID, &rt.TokenHash, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("refresh token lookup: %w", err)
	}
	rt.ExpiresAt, rt.CreatedAt = fromMillis(expiresAt), fromMillis(createdAt)
	return &rt, nil
}

func (r *RefreshTokenRepo) DeleteBySubject(ctx context.Context, subjectID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?;`, subjectID); err != nil {
		return fmt.Errorf("refresh token delete: %w", err)
	}
	return nil
}
