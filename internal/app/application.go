package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ghouse/internal/api"
	"ghouse/internal/auth"
	"ghouse/internal/bridge"
	"ghouse/internal/config"
	"ghouse/internal/database"
	"ghouse/internal/notify"
	"ghouse/internal/telegram"
	"ghouse/internal/websocket"
	dbconfig "ghouse/pkg/database"
	"ghouse/pkg/types"
)

const shutdownTimeout = 30 * time.Second

// Application owns every long-lived component and their wiring. Construction
// follows dependency order: database, registry, telegram, notify, bridge,
// websocket handler, API server, HTTP server.
type Application struct {
	cfg        *config.Config
	log        zerolog.Logger
	store      *database.Manager
	registry   *websocket.Registry
	deviceHub  *bridge.Bridge
	apiServer  *api.Server
	httpServer *http.Server
}

// NewLogger builds the root logger from the configured level, with console
// output in development and JSON elsewhere.
func NewLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.App.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var log zerolog.Logger
	if cfg.IsDevelopment() {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log = zerolog.New(os.Stderr)
	}
	return log.Level(level).With().Timestamp().Logger()
}

// New assembles the application from configuration. The MQTT bridge is not
// connected yet; Run dials the broker so a broker outage cannot prevent the
// HTTP API from serving.
func New(cfg *config.Config, log zerolog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbCfg := dbconfig.DefaultConfig()
	dbCfg.DatabasePath = cfg.Database.Path
	dbCfg.ConnMaxLifetime = cfg.Database.Timeout * 10
	store, err := database.NewManager(dbCfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if err := seedDefaultAdmin(cfg, store, log); err != nil {
		store.Close()
		return nil, err
	}

	registry := websocket.NewRegistry(log)
	tg := telegram.NewClient(cfg.Telegram, store, log)
	notifier := notify.NewService(store, registry, tg, log)
	deviceHub := bridge.NewBridge(cfg.MQTT, registry, store, notifier, log)

	tokens := auth.NewManager(cfg.JWT.Secret, cfg.JWT.AccessExpiry)
	wsHandler := websocket.NewHandler(registry, tokens, cfg.WebSocket, log)
	apiServer := api.NewServer(cfg, store, registry, deviceHub, notifier, tg, tokens, wsHandler.HandleWebSocket, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		cfg:        cfg,
		log:        log.With().Str("component", "app").Logger(),
		store:      store,
		registry:   registry,
		deviceHub:  deviceHub,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Run serves until the context is cancelled, then shuts everything down in
// reverse dependency order: HTTP server, bridge, database.
func (app *Application) Run(ctx context.Context) error {
	if err := app.deviceHub.Connect(); err != nil {
		// Telemetry resumes when the operator restarts with a live broker;
		// the REST API and stored data remain available meanwhile.
		app.log.Error().Err(err).Str("broker", app.cfg.MQTT.Broker).Msg("mqtt broker unreachable, running without live telemetry")
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.log.Info().Str("addr", app.httpServer.Addr).Msg("http server listening")
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		app.apiServer.RunLimiterCleanup(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
			app.log.Warn().Err(err).Msg("http shutdown error")
		}
		return nil
	})

	err := g.Wait()

	app.deviceHub.Stop()
	if closeErr := app.store.Close(); closeErr != nil {
		app.log.Warn().Err(closeErr).Msg("database close error")
	}
	app.log.Info().Msg("shutdown complete")
	return err
}

// Addr returns the HTTP listen address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}

// seedDefaultAdmin guarantees at least one login exists on a fresh database.
// The password comes from GHOUSE_ADMIN_PASSWORD when set; the fallback is
// only acceptable for development.
func seedDefaultAdmin(cfg *config.Config, store *database.Manager, log zerolog.Logger) error {
	password := os.Getenv("GHOUSE_ADMIN_PASSWORD")
	if password == "" {
		password = "admin"
		if !cfg.IsDevelopment() {
			log.Warn().Msg("GHOUSE_ADMIN_PASSWORD not set, default admin uses a weak password")
		}
	}

	err := store.EnsureUser(context.Background(), &types.User{
		Username:     "admin",
		Email:        "admin@ghouse.local",
		PasswordHash: auth.HashPassword(password),
		Role:         "admin",
		IsActive:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to seed default admin: %w", err)
	}
	return nil
}
