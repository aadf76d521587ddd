package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/authclient/internal/provider/http"
	"github.com/aussiebroadwan/authclient/internal/provider/service"
	"github.com/aussiebroadwan/authclient/internal/provider/store"
	"github.com/aussiebroadwan/authclient/internal/provider/store/drivers/sqlite"
	"github.com/aussiebroadwan/authclient/pkg/cryptox"
	"github.com/aussiebroadwan/authclient/pkg/jwtx"
	"github.com/aussiebroadwan/authclient/pkg/slogx"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application wires the development provider together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	signer *jwtx.HS256
	hasher cryptox.PasswordHasher
	outbox *service.Outbox

	tokenService        *service.TokenService
	userService         *service.UserService
	mfaService          *service.MFAService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates the application with every dependency initialised.
func New(cfg Config) (*Application, error) {
	return NewWithLogger(cfg, slogx.New(slogx.Config{
		Service: "devprovider",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	}))
}

// NewWithLogger is New with a caller-supplied logger.
func NewWithLogger(cfg Config, logger *slog.Logger) (*Application, error) {
	app := &Application{cfg: cfg, logger: logger}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSecrets(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler returns the fully wired router.
func (app *Application) Handler() http.Handler { return app.router }

// Outbox returns the development mailbox.
func (app *Application) Outbox() *service.Outbox { return app.outbox }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("provider starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"autoconfirm", app.cfg.AutoConfirm,
		"external_url", app.cfg.ExternalURL,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown stops the server, the housekeeping loop and closes the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down provider...")

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
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("provider stopped")
	return nil
}

// Close releases the database without touching the server. Used by tests
// that only exercise Handler.
func (app *Application) Close() error {
	return app.db.Close()
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(sqlite.DSN(app.cfg.DatabaseFile))
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return nil
}

// initSecrets loads the JWT secret and password pepper.
func (app *Application) initSecrets() error {
	secret := app.cfg.JWTSecret
	if secret == "" {
		generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		secret = generated
		app.logger.Warn("PROVIDER_JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}
	signer, err := jwtx.NewHS256(secret, app.cfg.Issuer)
	if err != nil {
		return fmt.Errorf("failed to initialize signer: %w", err)
	}
	app.signer = signer

	pepper := app.cfg.Pepper
	if pepper == "" {
		pepper, err = cryptox.LoadOrCreatePepper(app.cfg.PepperFile)
		if err != nil {
			return err
		}
	}
	app.hasher = cryptox.PasswordHasher{Pepper: pepper}
	return nil
}

func (app *Application) initServices() {
	app.outbox = service.NewOutbox(app.logger)

	app.tokenService = &service.TokenService{
		Store:      app.db,
		Signer:     app.signer,
		Hasher:     app.hasher,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  durationOr(app.cfg.AccessTTL, jwtx.DefaultAccessTokenTTL),
		RefreshTTL: durationOr(app.cfg.RefreshTTL, jwtx.DefaultRefreshTokenTTL),
	}

	app.userService = &service.UserService{
		Store:         app.db,
		Tokens:        app.tokenService,
		Hasher:        app.hasher,
		Mailer:        app.outbox,
		ExternalURL:   app.cfg.ExternalURL,
		SiteURL:       app.cfg.SiteURL,
		AutoConfirm:   app.cfg.AutoConfirm,
		LinkTTL:       durationOr(app.cfg.LinkTTL, 24*time.Hour),
		EmailInterval: app.cfg.EmailInterval,
	}

	app.mfaService = &service.MFAService{
		Store:        app.db,
		Tokens:       app.tokenService,
		Issuer:       app.cfg.Issuer,
		MaxFactors:   app.cfg.MaxFactors,
		ChallengeTTL: durationOr(app.cfg.ChallengeTTL, 5*time.Minute),
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.signer,
		app.cfg.APIKey,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.TokenService = app.tokenService
	router.UserService = app.userService
	router.MFAService = app.mfaService
	if app.cfg.Limits != nil {
		router.Limits = *app.cfg.Limits
	}
	if app.cfg.DevOutbox {
		router.Outbox = app.outbox
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
