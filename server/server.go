// Package server assembles the application from configuration and runs it.
package server

import (
	"HealthConnect/authorization"
	"HealthConnect/cache"
	"HealthConnect/config"
	"HealthConnect/controllers"
	"HealthConnect/logger"
	"HealthConnect/metrics"
	"HealthConnect/notification"
	"HealthConnect/ratelimit"
	"HealthConnect/repository"
	"HealthConnect/services"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Options struct {
	Config config.Config

	MongoEnabled     bool
	CacheEnabled     bool
	WebServerEnabled bool
	WebServerPort    string

	JobsEnabled bool
	JobsHandler func(app *App) error

	MigrationEnabled bool
	MigrationHandler func(app *App) error

	WebServerPreHandler func(r *gin.Engine, app *App)
}

// GetDefaultOptions loads the configuration and derives the switches from it.
func GetDefaultOptions() (Options, error) {
	cfg, err := config.Load()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Config:           cfg,
		MongoEnabled:     cfg.Mongo.Enabled,
		CacheEnabled:     cfg.Redis.Enabled,
		WebServerEnabled: true,
		WebServerPort:    cfg.Server.Port,
		JobsEnabled:      cfg.Jobs.Enabled,
		MigrationEnabled: cfg.Mongo.Enabled && cfg.Mongo.RunMigrations,
	}, nil
}

// App holds everything built from Options.
type App struct {
	Config      config.Config
	Logger      *zap.Logger
	Store       repository.Store
	Mongo       *repository.MongoStore
	Redis       redis.UniversalClient
	Tokens      *authorization.TokenManager
	AuthLimiter ratelimit.Limiter
	Services    *services.Services
	Handlers    *controllers.Handlers

	// MemoryLimiters are swept by the jobs when Redis is not used.
	MemoryLimiters []*ratelimit.Memory

	stopHooks []func(ctx context.Context)
}

/*
* Logger first so every later failure is reported
* Mongo or the in-memory store, Redis or in-memory limiters and cache
* SMTP or the logging notifier, then the services and handlers
 */
func Bootstrap(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("server: logger: %w", err)
	}
	app := &App{Config: cfg, Logger: log}

	if opts.MongoEnabled {
		store, err := repository.NewMongoStore(ctx, repository.MongoOptions{
			URI:             cfg.Mongo.URI,
			Database:        cfg.Mongo.Database,
			UseTransactions: cfg.Mongo.UseTransactions,
		}, log)
		if err != nil {
			log.Error("error connecting to mongo", zap.Error(err))
			return nil, err
		}
		app.Mongo = store
		app.Store = store
	} else {
		log.Warn("mongo disabled, using the in-memory store")
		app.Store = repository.NewMemoryStore()
	}

	codeRule := ratelimit.Rule{Limit: 1, Window: cfg.OTP.ResendCooldown}
	authRule := ratelimit.Rule{Limit: cfg.RateLimit.AuthRequests, Window: cfg.RateLimit.AuthWindow}
	var (
		codeLimiter ratelimit.Limiter
		scheduleCache cache.Cache
	)
	if opts.CacheEnabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Error("error connecting to redis", zap.Error(err))
			app.Close(context.Background())
			return nil, fmt.Errorf("server: redis ping: %w", err)
		}
		app.Redis = client
		codeLimiter = ratelimit.NewRedis(client, "otp", codeRule)
		app.AuthLimiter = ratelimit.NewRedis(client, "ip", authRule)
		scheduleCache = cache.NewRedis(client)
	} else {
		code := ratelimit.NewMemory(codeRule, time.Now)
		auth := ratelimit.NewMemory(authRule, time.Now)
		codeLimiter, app.AuthLimiter = code, auth
		app.MemoryLimiters = []*ratelimit.Memory{code, auth}
		scheduleCache = cache.NewMemory(time.Now)
	}

	var notifier notification.Dispatcher
	if cfg.Mail.Enabled {
		notifier = notification.NewSMTPMailer(cfg.Mail, log)
	} else {
		log.Warn("mail disabled, codes and links are written to the log")
		notifier = notification.NewLogDispatcher(log)
	}

	app.Tokens = authorization.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer)
	app.Services = services.New(services.Deps{
		Store:       app.Store,
		CodeLimiter: codeLimiter,
		Notifier:    notifier,
		Tokens:      app.Tokens,
		Cache:       scheduleCache,
		Config:      cfg,
		Logger:      log,
	})
	app.Handlers = controllers.NewHandlers(app.Services, cfg, log)
	return app, nil
}

// AuthMiddleware authenticates the caller against the session store.
func (a *App) AuthMiddleware() gin.HandlerFunc {
	return authorization.JWTAuth(a.Tokens, a.Services.Sessions)
}

// AuthLimit throttles the public credential endpoints per client IP.
func (a *App) AuthLimit() gin.HandlerFunc {
	return ratelimit.PerIP(a.AuthLimiter, "auth", a.Logger)
}

// Engine builds the gin engine with the shared middlewares; pre registers the routes.
func (a *App) Engine(pre func(r *gin.Engine, app *App)) *gin.Engine {
	if !a.Config.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	controllers.RegisterValidators()
	r := gin.New()
	r.Use(logger.Recovery(a.Logger), logger.RequestLogger(a.Logger), metrics.Middleware())
	if pre != nil {
		pre(r, a)
	}
	return r
}

// OnShutdown registers fn to run when the app closes, before the backends go away.
// Hooks run newest first.
func (a *App) OnShutdown(fn func(ctx context.Context)) {
	a.stopHooks = append(a.stopHooks, fn)
}

func (a *App) Close(ctx context.Context) {
	hooks := a.stopHooks
	a.stopHooks = nil
	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i](ctx)
	}
	if err := a.Store.Close(ctx); err != nil {
		a.Logger.Warn("error closing store", zap.Error(err))
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("error closing redis", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}

/*
* Build the app, run migrations and jobs when enabled
* Serve until SIGINT or SIGTERM, then drain within the grace period
 */
func Start(opts Options) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := Bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownGrace)
		defer cancel()
		app.Close(closeCtx)
	}()
	log := app.Logger

	if opts.MigrationEnabled && opts.MigrationHandler != nil {
		if err := opts.MigrationHandler(app); err != nil {
			log.Error("error running migrations", zap.Error(err))
			return err
		}
	}
	if opts.JobsEnabled && opts.JobsHandler != nil {
		if err := opts.JobsHandler(app); err != nil {
			log.Error("error starting jobs", zap.Error(err))
			return err
		}
	}
	if !opts.WebServerEnabled {
		<-ctx.Done()
		return nil
	}

	srv := &http.Server{
		Addr:              ":" + opts.WebServerPort,
		Handler:           app.Engine(opts.WebServerPreHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("http server failed", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.Config.Server.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
		return err
	}
	return nil
}
