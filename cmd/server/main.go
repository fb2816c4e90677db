// TalentForge API server.
//
// Wires configuration, storage, the authentication core, and the HTTP
// surface, then serves until interrupted. Runs against Postgres when
// POSTGRES_* settings point at a reachable database, and falls back to
// the in-memory store in development so the service starts with zero
// local setup.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	appcfg "github.com/talentforge/talentforge-api/internal/config"
	"github.com/talentforge/talentforge-api/internal/httpapi"
	"github.com/talentforge/talentforge-api/internal/obs"
	"github.com/talentforge/talentforge-api/internal/users"
	"github.com/talentforge/talentforge-api/pkg/auth"
	"github.com/talentforge/talentforge-api/pkg/clients/postgres"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	bootLogger := zerolog.New(os.Stderr)
	cfg, err := appcfg.Load()
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("loading configuration")
	}
	if err := cfg.Validate(); err != nil {
		bootLogger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger := newLogger(cfg)
	logger.Info().Str("version", version).Str("environment", cfg.Environment).Msg("talentforge api starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, health, cleanup := buildStore(ctx, cfg, logger)
	defer cleanup()

	metrics := obs.New()

	gateOpts := []auth.GateOption{auth.WithObserver(metrics)}
	serverOpts := []httpapi.ServerOption{
		httpapi.WithVersion(version),
		httpapi.WithCORSOrigins(cfg.CORSOrigins),
	}
	if !cfg.IsProduction() {
		gateOpts = append(gateOpts, auth.WithExposedDetails())
		serverOpts = append(serverOpts, httpapi.WithErrorDetails())
	}
	if health != nil {
		serverOpts = append(serverOpts, httpapi.WithHealthChecker(health))
	}

	authenticator := auth.NewAuthenticator(cfg.Auth, store, logger)
	gate := auth.NewGate(authenticator, store, logger, gateOpts...)
	issuer := auth.NewTokenIssuer(cfg.Auth.LocalSecret, cfg.Auth.LocalTokenTTL)

	api := httpapi.NewServer(store, gate, issuer, logger, metrics, serverOpts...)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      api.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}

	logger.Info().Msg("talentforge api stopped")
}

func newLogger(cfg appcfg.AppConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = zerolog.New(os.Stderr)
	if !cfg.IsProduction() {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return out.Level(level).With().Timestamp().Str("service", "talentforge-api").Logger()
}

// buildStore connects to Postgres and applies the schema. In
// development a connection failure degrades to the in-memory store;
// elsewhere it is fatal.
func buildStore(ctx context.Context, cfg appcfg.AppConfig, logger zerolog.Logger) (users.Store, httpapi.HealthChecker, func()) {
	client, err := postgres.NewClient(ctx, cfg.Postgres)
	if err != nil {
		if cfg.IsProduction() {
			logger.Fatal().Err(err).Msg("connecting to postgres")
		}
		logger.Warn().Err(err).Msg("postgres unavailable, using in-memory store")
		return users.NewMemoryStore(), nil, func() {}
	}

	store := users.NewPostgresStore(client)
	if err := store.EnsureSchema(ctx); err != nil {
		client.Close()
		logger.Fatal().Err(err).Msg("applying database schema")
	}
	logger.Info().Str("database", cfg.Postgres.Database).Msg("connected to postgres")
	return store, client.Health, client.Close
}
