// Package store opens the configured backend and exposes its repositories.
package store

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-token-trust/identity"
	"github.com/jrsteele09/go-token-trust/internal/config"
	"github.com/jrsteele09/go-token-trust/internal/store/postgres"
	"github.com/jrsteele09/go-token-trust/internal/store/sqlite"
	"github.com/jrsteele09/go-token-trust/token/refresh"
	"github.com/jrsteele09/go-token-trust/users"
)

// Backend bundles the repositories of one database.
type Backend struct {
	Driver        string
	Users         users.UserRepo
	RefreshTokens refresh.Repo
	Identities    identity.Repo

	ping  func(context.Context) error
	close func() error
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.ping(ctx)
}

func (b *Backend) Close() error {
	return b.close()
}

// IsPostgres reports whether url selects the postgres backend.
func IsPostgres(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}

// Open connects to DATABASE_URL. Postgres URLs get migrated with goose,
// anything else is treated as a sqlite DSN.
func Open(ctx context.Context, cfg config.StoreConfig) (*Backend, error) {
	url := cfg.GetDatabaseURL()
	if IsPostgres(url) {
		db, err := postgres.New(ctx, postgres.Config{
			URL:          url,
			MaxConns:     cfg.GetDBMaxConns(),
			QueryTimeout: cfg.GetDBQueryTimeout(),
		})
		if err != nil {
			return nil, errors.Wrap(err, "[store.Open] postgres")
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, errors.Wrap(err, "[store.Open] postgres migrate")
		}
		log.Info().Str("driver", "postgres").Msg("store opened")
		return &Backend{
			Driver:        "postgres",
			Users:         postgres.NewUserRepo(db),
			RefreshTokens: postgres.NewRefreshTokenRepo(db),
			Identities:    postgres.NewIdentityRepo(db),
			ping:          db.Ping,
			close:         func() error { db.Close(); return nil },
		}, nil
	}

	s, err := sqlite.Open(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "[store.Open] sqlite")
	}
	log.Info().Str("driver", "sqlite").Str("dsn", url).Msg("store opened")
	return &Backend{
		Driver:        "sqlite",
		Users:         s.Users(),
		RefreshTokens: s.RefreshTokens(),
		Identities:    s.Identities(),
		ping:          s.Ping,
		close:         s.Close,
	}, nil
}
