package postgres

import (
	"context"

	"github.com/jrsteele09/go-token-trust/token/refresh"
)

type RefreshTokenRepo struct{ db *DB }

var _ refresh.Repo = (*RefreshTokenRepo)(nil)

func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

const (
	qRTCreate = `
INSERT INTO refresh_tokens(user_id, token_hash, expires_at, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id;
`
	qRTByHash = `
SELECT id, user_id, token_hash, expires_at, created_at
FROM refresh_tokens
WHERE token_hash = $1;
`
	qRTDeleteBySubject = `
DELETE FROM refresh_tokens WHERE user_id = $1;
`
)

func (r *RefreshTokenRepo) Create(ctx context.Context, t *refresh.StoredRefreshToken) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.Pool.QueryRow(ctx, qRTCreate, t.SubjectID, t.TokenHash, t.ExpiresAt, t.CreatedAt).Scan(&t.ID)
	return mapError(err, "refresh token insert")
}

func (r *RefreshTokenRepo) GetByHash(ctx context.Context, tokenHash string) (*refresh.StoredRefreshToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t refresh.StoredRefreshToken
	err := r.db.Pool.QueryRow(ctx, qRTByHash, tokenHash).
		Scan(&t.ID, &t.SubjectID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		return nil, mapError(err, "refresh token lookup")
	}
	return &t, nil
}

func (r *RefreshTokenRepo) DeleteBySubject(ctx context.Context, subjectID int64) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	_, err := r.db.Pool.Exec(ctx, qRTDeleteBySubject, subjectID)
	return mapError(err, "refresh token delete")
}
