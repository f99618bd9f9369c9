package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-token-trust/internal/config"
	"github.com/jrsteele09/go-token-trust/internal/store"
	"github.com/jrsteele09/go-token-trust/users"
)

func TestIsPostgres(t *testing.T) {
	require.True(t, store.IsPostgres("postgres://u:p@localhost/db"))
	require.True(t, store.IsPostgres("postgresql://localhost/db"))
	require.False(t, store.IsPostgres("file:auth.db"))
	require.False(t, store.IsPostgres(":memory:"))
}

func TestOpen_SQLite(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:"+filepath.Join(t.TempDir(), "auth.db"))
	ctx := context.Background()

	b, err := store.Open(ctx, config.New())
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, "sqlite", b.Driver)
	require.NoError(t, b.Ping(ctx))

	u := &users.User{Email: "a@x.com", PasswordHash: "hash", Active: true}
	require.NoError(t, b.Users.Create(ctx, u))
	got, err := b.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", got.Email)
}
