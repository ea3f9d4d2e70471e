package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "github.com/aussiebroadwan/portal/internal/session/http"
	"github.com/aussiebroadwan/portal/internal/session/provider"
	"github.com/aussiebroadwan/portal/internal/session/service"
	"github.com/aussiebroadwan/portal/internal/session/signout"
	"github.com/aussiebroadwan/portal/internal/session/store"
	"github.com/aussiebroadwan/portal/pkg/httpx"
	"github.com/aussiebroadwan/portal/pkg/metricsx"
	"github.com/aussiebroadwan/portal/pkg/sessionsdk"
	"github.com/aussiebroadwan/portal/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"

	signInCookieName = "portal_signin"
)

// Application encapsulates the session service with all its dependencies
type Application struct {
	cfg    Config
	oidc   OIDCConfig
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	keys     *Keys
	registry *prometheus.Registry
	metrics  *metricsx.Metrics

	authenticator *provider.Authenticator
	client        *provider.Client

	// Services
	sessionService      *service.SessionService
	housekeepingService *service.HousekeepingService
	trigger             *signout.Trigger

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
// Provider discovery happens here so a misconfigured issuer fails start-up.
func New(ctx context.Context, cfg Config, oidcCfg OIDCConfig) (*Application, error) {
	app := &Application{
		cfg:  cfg,
		oidc: oidcCfg,
		logger: slogx.New(slogx.Config{
			Service: "session-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	keys, err := InitKeys(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keys: %w", err)
	}
	app.keys = keys

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initProvider(ctx); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initMetrics()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("session service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			app.housekeepingService.Stop()
			_ = app.db.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application. In-flight refreshes run
// detached from their requests, so they finish or time out on their own.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down session service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing store", "error", err)
		return err
	}

	app.logger.Info("session service stopped")
	return nil
}

// initDatabase opens the configured store and applies migrations
func (app *Application) initDatabase() error {
	db, err := OpenStore(app.cfg, store.NewCodec(app.keys.Sealer))
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	app.db = db

	app.logger.Info("store ready", "driver", app.cfg.StoreDriver)
	return nil
}

func (app *Application) initProvider(ctx context.Context) error {
	authn, client, err := discoverProvider(ctx, app.oidc, nil)
	if err != nil {
		return fmt.Errorf("failed to discover identity provider: %w", err)
	}
	app.authenticator = authn
	app.client = client

	app.logger.Info("identity provider discovered", "issuer", app.oidc.ProviderURL)
	return nil
}

func (app *Application) initMetrics() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metricsx.New(app.registry)
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.sessionService = &service.SessionService{
		Store:          app.db,
		Exchanger:      app.client,
		Verifier:       app.authenticator,
		Metrics:        app.metrics,
		MaxAge:         app.cfg.MaxAge,
		RefreshTimeout: app.cfg.RefreshTimeout,
	}

	app.trigger = &signout.Trigger{
		Sessions:    app.sessionService,
		Cookie:      app.sessionCookie(),
		LandingPath: app.cfg.SignedOutPath,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) sessionCookie() httpx.Cookie {
	return httpx.Cookie{
		Name:   sessionsdk.CookieName,
		Domain: app.cfg.CookieDomain,
		Secure: app.cfg.CookieSecure,
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys.Signer,
		BuildVersion,
		app.db,
		app.metrics,
		app.registry,
		app.logger,
	)

	router.SessionService = app.sessionService
	router.Authenticator = app.authenticator
	router.SignIns = app.client
	router.Trigger = app.trigger
	router.Cookies = httpapi.Cookies{
		Session: app.sessionCookie(),
		SignIn: httpx.Cookie{
			Name:   signInCookieName,
			Path:   "/v1/auth",
			Domain: app.cfg.CookieDomain,
			Secure: app.cfg.CookieSecure,
		},
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
