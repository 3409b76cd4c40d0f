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

	httpapi "github.com/sundog-labs/authgate/internal/gateway/http"
	"github.com/sundog-labs/authgate/internal/gateway/kv"
	"github.com/sundog-labs/authgate/internal/gateway/provider"
	"github.com/sundog-labs/authgate/internal/gateway/service"
	"github.com/sundog-labs/authgate/internal/gateway/store"
	"github.com/sundog-labs/authgate/internal/gateway/store/drivers/sqlite"
	"github.com/sundog-labs/authgate/pkg/jwtx"
	"github.com/sundog-labs/authgate/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires every layer of the gateway together and owns the server
// lifecycle.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db    store.Store
	kv    *kv.Client
	codec jwtx.Codec

	tokenService *service.TokenService
	loginService *service.LoginService
	userService  *service.UserService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authgate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initKV(); err != nil {
		return nil, err
	}

	codec, err := initCodec(cfg)
	if err != nil {
		return nil, err
	}
	app.codec = codec

	if err := app.initServices(); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the server and blocks until shutdown is requested or the server
// fails.
func (app *Application) Run() error {
	app.logger.Info("login gateway starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// Shutdown drains in-flight requests and closes both stores.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down login gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	if err := app.kv.Close(); err != nil {
		app.logger.Error("error closing kv client", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("login gateway stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
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

func (app *Application) initKV() error {
	client := kv.New(kv.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		// Startup continues; readyz reports the store until it comes back.
		app.logger.Warn("kv store not reachable at startup", "error", err)
	}

	app.kv = client
	return nil
}

func (app *Application) initServices() error {
	app.tokenService = &service.TokenService{
		Codec:      app.codec,
		Ledger:     kv.NewLedger(app.kv),
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: app.cfg.RefreshTokenTTL,
	}

	guard, err := app.initGuard()
	if err != nil {
		return err
	}

	google := provider.NewGoogle(provider.GoogleConfig{
		ClientID:     app.cfg.GoogleClientID,
		ClientSecret: app.cfg.GoogleClientSecret,
		RedirectURL:  app.cfg.GoogleRedirectURL,
	})

	app.loginService = &service.LoginService{
		Provider: google,
		Guard:    guard,
		Users:    app.db.Users(),
		Locks:    kv.NewLock(app.kv),
		Tokens:   app.tokenService,
		LockTTL:  app.cfg.IdentityLockTTL,
	}

	app.userService = &service.UserService{
		Users:  app.db.Users(),
		Tokens: app.tokenService,
	}

	return nil
}

func (app *Application) initGuard() (service.Guard, error) {
	switch app.cfg.HandshakeMode {
	case "sealed":
		key, err := sealKey(app.cfg)
		if err != nil {
			return nil, err
		}
		app.logger.Info("using sealed handshake guard")
		return &service.SealedGuard{Key: key, TTL: app.cfg.HandshakeTTL}, nil
	default:
		return &service.StoreGuard{
			Records: kv.NewHandshake(app.kv),
			TTL:     app.cfg.HandshakeTTL,
		}, nil
	}
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.cfg.FrontendURL,
		app.cfg.CookieSecure,
		app.db,
		app.kv,
		app.logger,
	)

	router.LoginService = app.loginService
	router.UserService = app.userService
	router.TokenService = app.tokenService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
