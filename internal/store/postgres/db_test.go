package postgres

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	apperr "github.com/jrsteele09/go-token-trust/internal/errors"
)

func TestMapError(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "nil", in: nil, want: nil},
		{name: "no rows", in: pgx.ErrNoRows, want: apperr.ErrNotFound},
		{name: "wrapped no rows", in: fmt.Errorf("scan: %w", pgx.ErrNoRows), want: apperr.ErrNotFound},
		{name: "unique violation", in: &pgconn.PgError{Code: "23505"}, want: apperr.ErrConflict},
		{name: "other pg error", in: &pgconn.PgError{Code: "23503"}, want: boom},
		{name: "other", in: boom, want: boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.in, "op")
			switch {
			case tt.want == nil:
				require.NoError(t, got)
			case tt.want == boom:
				require.Error(t, got)
				require.NotErrorIs(t, got, apperr.ErrNotFound)
				require.NotErrorIs(t, got, apperr.ErrConflict)
				require.Contains(t, got.Error(), "op: ")
			default:
				require.ErrorIs(t, got, tt.want)
			}
		})
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.Len(t, files, 3)

	for _, f := range files {
		body, err := fs.ReadFile(migrations, f)
		require.NoError(t, err)
		require.Contains(t, string(body), "-- +goose Up")
		require.Contains(t, string(body), "-- +goose Down")
	}
}
