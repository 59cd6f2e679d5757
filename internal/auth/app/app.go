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

	"github.com/clubdeck/clubdeck/internal/auth/cache"
	httpapi "github.com/clubdeck/clubdeck/internal/auth/http"
	"github.com/clubdeck/clubdeck/internal/auth/mailer"
	"github.com/clubdeck/clubdeck/internal/auth/provider"
	"github.com/clubdeck/clubdeck/internal/auth/service"
	"github.com/clubdeck/clubdeck/internal/auth/store"
	"github.com/clubdeck/clubdeck/internal/auth/store/drivers/sqlite"
	"github.com/clubdeck/clubdeck/pkg/cryptox"
	"github.com/clubdeck/clubdeck/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db    store.Store
	cache *cache.RedisCache

	// Services
	authService         *service.AuthService
	sessionService      *service.SessionService
	mfaService          *service.MFAService
	passwordService     *service.PasswordService
	linkingService      *service.LinkingService
	securityService     *service.SecurityService
	housekeepingService *service.HousekeepingService
	securityMonitor     *service.SecurityMonitor

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	// Set pepper path for password hashing
	cryptox.SetPepperPath(app.cfg.PepperFile)
	if app.cfg.MasterKeyPath != "" {
		cryptox.SetMasterKeyPath(app.cfg.MasterKeyPath)
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCache(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()
	app.securityMonitor.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()
	app.securityMonitor.Stop()

	if err := app.cache.Close(); err != nil {
		app.logger.Error("error closing session cache", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initCache connects the Redis session cache.
func (app *Application) initCache() error {
	c, err := cache.NewRedisCache(app.cfg.RedisAddr, app.cfg.RedisPassword, app.cfg.RedisDB)
	if err != nil {
		return fmt.Errorf("failed to initialize session cache: %w", err)
	}
	app.cache = c
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	mail := mailer.NewLogMailer(app.logger)

	app.sessionService = &service.SessionService{
		Store:         app.db,
		Cache:         app.cache,
		Logger:        app.logger,
		TTL:           app.cfg.SessionTTL,
		RememberMeTTL: app.cfg.RememberMeTTL,
	}
	app.securityService = &service.SecurityService{
		Store:       app.db,
		Logger:      app.logger,
		MaxFailures: app.cfg.MaxLoginFailures,
		Window:      app.cfg.LoginFailureWindow,
	}
	app.mfaService = &service.MFAService{
		Store:  app.db,
		Cache:  app.cache,
		Issuer: app.cfg.MFAIssuer,
	}
	app.linkingService = &service.LinkingService{Store: app.db}
	app.passwordService = &service.PasswordService{
		Store:    app.db,
		Mailer:   mail,
		Sessions: app.sessionService,
		Logger:   app.logger,
	}

	app.authService = &service.AuthService{
		Store:     app.db,
		Providers: app.buildProviders(),
		State:     provider.NewStateSigner(app.stateSecret(), 10*time.Minute),
		Linking:   app.linkingService,
		Sessions:  app.sessionService,
		MFA:       app.mfaService,
		Passwords: app.passwordService,
		Security:  app.securityService,
		Mailer:    mail,
		Logger:    app.logger,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.securityMonitor = service.NewSecurityMonitor(
		app.db,
		mail,
		app.logger,
		app.cfg.MonitorInterval,
	)
}

// buildProviders registers the local password provider plus every SSO
// authority with credentials configured.
func (app *Application) buildProviders() *provider.Registry {
	providers := []provider.Provider{provider.NewLocal(app.db)}

	for name, cfg := range map[string]SSOProviderConfig{
		"google":    app.cfg.Google,
		"microsoft": app.cfg.Microsoft,
	} {
		if !cfg.Configured() {
			continue
		}
		providers = append(providers, provider.NewSSO(provider.SSOConfig{
			Name:         name,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			AuthURL:      cfg.AuthURL,
			TokenURL:     cfg.TokenURL,
			UserInfoURL:  cfg.UserInfoURL,
			Scopes:       []string{"openid", "email", "profile"},
		}))
		app.logger.Info("sso provider registered", "provider", name)
	}

	return provider.NewRegistry(providers...)
}

// stateSecret returns the configured SSO state key, or a per-process random
// one. An ephemeral key means in-flight SSO round trips do not survive a
// restart, which is acceptable everywhere except multi-instance deployments.
func (app *Application) stateSecret() []byte {
	if app.cfg.StateSecret != "" {
		return []byte(app.cfg.StateSecret)
	}

	secret, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		panic(fmt.Sprintf("generate state secret: %v", err))
	}
	app.logger.Warn("AUTH_STATE_SECRET not set, using an ephemeral state signing key")
	return []byte(secret)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.cache, app.logger)

	router.AuthService = app.authService
	router.SessionService = app.sessionService
	router.MFAService = app.mfaService
	router.PasswordService = app.passwordService
	router.LinkingService = app.linkingService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
