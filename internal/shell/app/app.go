// Package app wires configuration, storage, the identity client, the
// session controller and the router into one runnable shell.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mymindmap/shell/internal/shell/router"
	"github.com/mymindmap/shell/internal/shell/service"
	"github.com/mymindmap/shell/internal/shell/session"
	"github.com/mymindmap/shell/internal/shell/store"
	"github.com/mymindmap/shell/internal/shell/store/drivers/memory"
	redisstore "github.com/mymindmap/shell/internal/shell/store/drivers/redis"
	"github.com/mymindmap/shell/internal/shell/store/drivers/sqlite"
	"github.com/mymindmap/shell/pkg/cryptox"
	"github.com/mymindmap/shell/pkg/identity"
	"github.com/mymindmap/shell/pkg/slogx"
	"github.com/redis/go-redis/v9"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application is the shell with all of its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	tokens  store.Tokens
	locale  *PreferenceLocale
	client  *identity.Client
	session *session.Controller
	router  *router.Router
	watcher *service.ExpiryWatcher
	started bool
}

// New creates an Application with every dependency initialized. Nothing
// touches the network until Start.
func New(cfg Config) (*Application, error) {
	return NewWithLogger(cfg, slogx.New(slogx.Config{
		Service: "mindmap-shell",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	}))
}

// NewWithLogger is New with a caller-supplied logger.
func NewWithLogger(cfg Config, logger *slog.Logger) (*Application, error) {
	app := &Application{cfg: cfg, logger: logger}

	if err := app.initStore(); err != nil {
		return nil, err
	}
	if err := app.initTokens(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initClient()
	app.initSession()
	return app, nil
}

// Session returns the session controller.
func (app *Application) Session() *session.Controller { return app.session }

// Router returns the router.
func (app *Application) Router() *router.Router { return app.router }

// Logger returns the application logger.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Start hydrates the session from storage and starts the expiry watcher. A
// session that cannot be restored is logged and left signed out.
func (app *Application) Start(ctx context.Context) error {
	if err := app.db.Ping(ctx); err != nil {
		return fmt.Errorf("token store unavailable: %w", err)
	}

	if err := app.session.Bootstrap(ctx); err != nil && !errors.Is(err, session.ErrSuperseded) {
		app.logger.Warn("session not restored", "error", err)
	}

	app.watcher.Start()
	app.started = true
	return nil
}

// Run starts the shell and blocks until ctx is done or a shutdown signal
// arrives.
func (app *Application) Run(ctx context.Context) error {
	if err := app.Start(ctx); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.logger.Info("mindmap shell running", "version", BuildVersion, "identity_url", app.cfg.IdentityURL)
	<-ctx.Done()
	app.logger.Info("shutdown signal received")

	return app.Shutdown()
}

// Shutdown stops the watcher and closes storage. Safe to call after a
// failed Start.
func (app *Application) Shutdown() error {
	if app.started {
		app.watcher.Stop()
		app.started = false
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing token store", "error", err)
		return err
	}

	app.logger.Debug("mindmap shell stopped")
	return nil
}

// initStore opens the configured driver and applies its migrations.
func (app *Application) initStore() error {
	switch app.cfg.TokenStore {
	case "", "sqlite":
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		db, err := sqlite.NewStore(dsn, app.storageKey())
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		app.db = db
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
		app.db = redisstore.NewStore(rdb, app.cfg.RedisPrefix, app.storageKey())
	case "memory":
		app.db = memory.NewStore()
	default:
		return fmt.Errorf("unknown token store %q", app.cfg.TokenStore)
	}

	if err := app.db.ApplyMigrations(); err != nil {
		_ = app.db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Debug("token store ready", "driver", app.cfg.TokenStore)
	return nil
}

// initTokens wraps the token repository in a sealer when key material is
// configured.
func (app *Application) initTokens() error {
	app.tokens = app.db.Tokens()

	material, err := app.tokenKey()
	if err != nil {
		return err
	}
	if len(material) == 0 {
		return nil
	}

	sealer, err := cryptox.NewSealer(material)
	if err != nil {
		return fmt.Errorf("failed to create token sealer: %w", err)
	}
	app.tokens = store.NewSealedTokens(app.tokens, sealer, app.storageKey())
	app.logger.Debug("stored tokens are sealed")
	return nil
}

func (app *Application) tokenKey() ([]byte, error) {
	if app.cfg.TokenKey != "" {
		return []byte(app.cfg.TokenKey), nil
	}
	if app.cfg.TokenKeyFile == "" {
		return nil, nil
	}

	data, err := os.ReadFile(app.cfg.TokenKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read token key file: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return nil, fmt.Errorf("token key file %s is empty", app.cfg.TokenKeyFile)
	}
	return []byte(key), nil
}

func (app *Application) storageKey() string {
	if app.cfg.StorageKey == "" {
		return store.DefaultStorageKey
	}
	return app.cfg.StorageKey
}

func (app *Application) initClient() {
	opts := []identity.Option{
		identity.WithTimeout(app.cfg.HTTPTimeout),
		identity.WithLogger(app.logger),
		identity.WithValidation(app.cfg.ValidateRequests),
	}
	if app.cfg.AuthRateRequests > 0 {
		opts = append(opts, identity.WithAuthRateLimit(app.cfg.AuthRateRequests, app.cfg.AuthRateWindow, app.cfg.AuthRateBurst))
	}
	app.client = identity.NewClient(app.cfg.IdentityURL, opts...)
}

func (app *Application) initSession() {
	app.locale = NewPreferenceLocale(app.db.Preferences(), app.logger)

	app.session = session.NewController(session.Config{
		Identity:     app.client,
		Tokens:       app.tokens,
		Locale:       app.locale,
		Logger:       app.logger,
		LandingRoute: app.cfg.LandingRoute,
		LoginRoute:   app.cfg.LoginRoute,
	})

	guard := &router.Guard{Session: app.session, Logger: app.logger}
	app.router = router.New(router.DefaultRoutes(app.cfg.LandingRoute, app.cfg.LoginRoute), guard, app.logger)
	app.session.SetNavigator(app.router)

	app.watcher = service.NewExpiryWatcher(app.session, app.router, app.logger, app.cfg.ExpiryCheckInterval)
}
