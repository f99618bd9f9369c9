package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-token-trust/backend"
	"github.com/jrsteele09/go-token-trust/identity"
	"github.com/jrsteele09/go-token-trust/internal/config"
	"github.com/jrsteele09/go-token-trust/internal/logging"
	"github.com/jrsteele09/go-token-trust/internal/store"
	"github.com/jrsteele09/go-token-trust/verifier"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("consumer stopped with error")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New(
		config.WithDefault("PORT", "8000"),
		config.WithDefault("APP_NAME", "Backend"),
		config.WithDefault("DATABASE_URL", "file:backend.db"),
	)
	logging.Setup(logging.Config{Level: c.GetLogLevel(), Pretty: c.GetEnv() == "DEV", App: c.GetAppName(), Env: c.GetEnv()})

	ctx := context.Background()
	db, err := store.Open(ctx, c)
	if err != nil {
		return err
	}
	defer db.Close()

	cache, err := verifier.NewKeyCacheFromConfig(c)
	if err != nil {
		return err
	}
	validator := verifier.NewValidator(cache, verifier.WithIssuer(c.GetIssuer()))

	handler, err := backend.New(c, validator, identity.NewReconciler(db.Identities), backend.WithHealthCheck(db.Ping))
	if err != nil {
		return err
	}

	displayAppname(c.GetAppName())
	log.Info().Str("auth_service", c.GetAuthServiceURL()).Bool("static_key", c.GetStaticPublicKeyPEM() != "").Msg("token validation configured")

	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case <-stop:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	figure.NewFigure(appname, "cybermedium", true).Print()
	fmt.Println()
}
