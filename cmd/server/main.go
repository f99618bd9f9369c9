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

	"github.com/jrsteele09/go-token-trust/auth"
	"github.com/jrsteele09/go-token-trust/internal/config"
	"github.com/jrsteele09/go-token-trust/internal/logging"
	"github.com/jrsteele09/go-token-trust/internal/store"
	"github.com/jrsteele09/go-token-trust/server"
	"github.com/jrsteele09/go-token-trust/token"
	"github.com/jrsteele09/go-token-trust/token/keys"
	"github.com/jrsteele09/go-token-trust/token/refresh"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("auth service stopped with error")
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

	c := config.New(config.WithDefault("PORT", "8001"), config.WithDefault("APP_NAME", "Auth Service"))
	logging.Setup(logging.Config{Level: c.GetLogLevel(), Pretty: c.GetEnv() == "DEV", App: c.GetAppName(), Env: c.GetEnv()})

	warnings, err := config.CheckSecrets(c)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		log.Warn().Str("mode", c.GetSecretMode().String()).Msg(w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend, err := store.Open(ctx, c)
	if err != nil {
		return err
	}
	defer backend.Close()

	provider, err := keyProvider(ctx, c)
	if err != nil {
		return err
	}
	issuer := token.NewIssuer(provider,
		token.WithIssuer(c.GetIssuer()),
		token.WithAccessTokenExpiry(c.GetDefaultAccessTokenExpiry()),
	)
	authService, err := auth.NewService(
		auth.Repos{Users: backend.Users, RefreshTokens: backend.RefreshTokens},
		issuer,
		refresh.NewManager(backend.RefreshTokens, c),
		auth.WithPasswordCost(c.GetPasswordHashCost()),
	)
	if err != nil {
		return err
	}

	handler, err := server.New(c, authService, server.WithHealthCheck(backend.Ping))
	if err != nil {
		return err
	}

	displayAppname(c.GetAppName())
	httpServer := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

// keyProvider prefers an inline PEM, then a watched key file, then a key
// generated on first use.
func keyProvider(ctx context.Context, c config.TokenConfig) (*keys.Provider, error) {
	if pemText := c.GetPrivateKeyPEM(); pemText != "" {
		return keys.NewProviderFromPEM(pemText)
	}
	if path := c.GetPrivateKeyFile(); path != "" {
		p := keys.NewProvider(keys.WithKeyBits(c.GetKeyBits()))
		if err := p.LoadFile(path); err != nil {
			return nil, err
		}
		if err := keys.WatchFile(ctx, path, p); err != nil {
			return nil, fmt.Errorf("watch key file: %w", err)
		}
		return p, nil
	}
	log.Warn().Msg("no signing key configured, generating an ephemeral key pair")
	return keys.NewProvider(keys.WithKeyBits(c.GetKeyBits())), nil
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
