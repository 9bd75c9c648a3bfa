package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/satbox/satbox-server/internal/config"
	"github.com/satbox/satbox-server/internal/identity"
	"github.com/satbox/satbox-server/internal/inbox"
	"github.com/satbox/satbox-server/internal/kv"
	"github.com/satbox/satbox-server/internal/payment"
	"github.com/satbox/satbox-server/internal/query"
	"github.com/satbox/satbox-server/internal/store"
	"github.com/satbox/satbox-server/internal/store/kvstore"
	transporthttp "github.com/satbox/satbox-server/internal/transport/http"
)

// App wires together storage, payment, query, and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	db, err := kv.NewLevelDB(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init keyspace: %w", err)
	}

	logger.Info().Str("data_dir", cfg.DataDir).Msg("keyspace opened")

	st := kvstore.New(db)
	registry := identity.NewKVRegistry(db)

	relay := payment.NewHTTPRelay(cfg.RelayURL, cfg.Network, cfg.RelayTimeout)
	verifier := payment.NewVerifier(relay, cfg.Network, cfg.PriceSats, logger)

	service := inbox.NewService(st, registry, verifier, cfg.MaxContentBytes, logger)
	engine := query.New(st, registry, cfg.PriceSats, cfg.MaxQueryOffset, logger)

	server := transporthttp.NewServer(service, engine, registry, cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the keyspace and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
