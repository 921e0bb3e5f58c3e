// Package server wires the gophauth server together: storage, the local
// provider, the token service and the HTTP and gRPC endpoints. It handles
// startup checks, user seeding and graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/password"
	"github.com/dmitrijs2005/gophauth/internal/providers"
	"github.com/dmitrijs2005/gophauth/internal/repositories/repomanager"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/grpcserver"
	"github.com/dmitrijs2005/gophauth/internal/server/httpapi"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/tokens"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	tokens      *tokens.Service
	authService *services.AuthService
	userService *services.UserService
	master      *httpapi.MasterAuth
}

// NewApp validates c, opens the database and builds every service. A failed
// provider readiness check is fatal.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.NewJSONLogger(os.Stdout, level)

	db, rm, err := repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN, c.AutoMigrate)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := build(ctx, c, logger, db, rm)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func build(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB, rm repomanager.RepositoryManager) (*App, error) {
	hasher := password.NewDefaultHasher()

	us := services.NewUserService(db, rm, hasher, logger)
	if _, err := us.SeedUsers(ctx, c.Users); err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}

	provider := providers.NewLocalProvider(rm.Users(db), hasher, providers.WithSessionLifetime(c.SessionLifetime))
	if err := provider.ValidateConfig(ctx); err != nil {
		return nil, fmt.Errorf("provider %q: %w", provider.Name(), err)
	}

	opts := []tokens.Option{tokens.WithLogger(logger)}
	if c.CacheEnabled {
		opts = append(opts, tokens.WithCache(tokens.NewCache(c.CacheTTL)))
	}
	ts, err := tokens.NewService(c.SecretKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	app := &App{
		config:      c,
		logger:      logger,
		db:          db,
		tokens:      ts,
		authService: services.NewAuthService(provider, ts, logger),
		userService: us,
	}
	if c.MasterUsername != "" {
		app.master = httpapi.NewMasterAuth(c.MasterUsername, c.MasterPasswordHash, hasher)
	}
	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	var opts []httpapi.Option
	if app.master != nil {
		opts = append(opts, httpapi.WithMasterAuth(app.master))
	}
	s := httpapi.NewServer(app.config.HTTPAddr, app.authService, app.userService, app.logger, opts...)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := grpcserver.NewGRPCServer(app.config.GRPCAddr, app.logger, app.authService, grpcserver.DefaultPolicy())
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves HTTP and, when configured, gRPC until ctx is cancelled, a
// termination signal arrives or a server fails. The database is closed on
// return.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "provider", app.authService.Provider().Name())

	app.initSignalHandler(cancelFunc)

	if cache := app.tokens.Cache(); cache != nil {
		cache.StartJanitor(ctx, cache.TTL())
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.config.GRPCAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
