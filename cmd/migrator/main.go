package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-token-trust/internal/config"
	"github.com/jrsteele09/go-token-trust/internal/logging"
	"github.com/jrsteele09/go-token-trust/internal/store"
	"github.com/jrsteele09/go-token-trust/internal/store/postgres"
)

// Applies the postgres migrations to DATABASE_URL and exits.
func main() {
	c := config.New(config.WithDefault("APP_NAME", "Migrator"))
	logging.Setup(logging.Config{Level: c.GetLogLevel(), Pretty: c.GetEnv() == "DEV", App: c.GetAppName(), Env: c.GetEnv()})

	dsn := c.GetDatabaseURL()
	if !store.IsPostgres(dsn) {
		log.Error().Msg("DATABASE_URL must be a postgres URL, sqlite creates its schema on open")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{URL: dsn, QueryTimeout: c.GetDBQueryTimeout()})
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Error().Err(err).Msg("migrate up")
		db.Close()
		os.Exit(1)
	}
	log.Info().Msg("migrations: up OK")
}
