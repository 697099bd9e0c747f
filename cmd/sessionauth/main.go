package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-session-auth"
	"github.com/goliatone/go-session-auth/internal/config"
	"github.com/goliatone/go-session-auth/metrics"
	"github.com/goliatone/go-session-auth/persistence"
	"github.com/goliatone/go-session-auth/social"
	"github.com/goliatone/go-session-auth/social/providers/google"
)

type App struct {
	config   *config.Config
	logger   *glog.BaseLogger
	db       *bun.DB
	repo     auth.RepositoryManager
	redis    redis.UniversalClient
	registry *prometheus.Registry
	auther   *auth.Auther
	routes   *auth.RouteAuthenticator
	srv      router.Server[*fiber.App]
}

// GetLogger returns a named child of the root logger
func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	loader := config.NewLoader()
	fs := loader.FlagSet(os.Args[0])
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &App{
		config: cfg,
		logger: newLogger(cfg.Log),
	}

	if err := run(ctx, app); err != nil {
		app.GetLogger("sessionauth").Error("sessionauth stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, app *App) error {
	defer app.Close()

	steps := []func(context.Context, *App) error{
		WithPersistence,
		WithRedis,
		WithMetrics,
		WithAuthenticator,
		WithHTTPServer,
		WithSessionRoutes,
		WithSocialRoutes,
	}
	for _, step := range steps {
		if err := step(ctx, app); err != nil {
			return err
		}
	}

	logger := app.GetLogger("sessionauth")

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", app.config.Server.Addr)
		errCh <- app.srv.Serve(app.config.Server.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", app.config.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()
	return app.srv.Shutdown(shutdownCtx)
}

func (a *App) Close() {
	logger := a.GetLogger("sessionauth")
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logger.Warn("redis close", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warn("database close", "error", err)
		}
	}
}

func newLogger(cfg config.Log) *glog.BaseLogger {
	level := glog.Info
	switch cfg.Level {
	case "trace":
		level = glog.Trace
	case "debug":
		level = glog.Debug
	case "warn":
		level = glog.Warn
	case "error":
		level = glog.Error
	}

	if cfg.Format == "text" {
		return glog.NewLogger(
			glog.WithLoggerTypePretty(),
			glog.WithLevel(level),
			glog.WithName("sessionauth"),
			glog.WithAddSource(false),
			glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
		)
	}

	return glog.NewLogger(
		glog.WithLevel(level),
		glog.WithName("sessionauth"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := persistence.Open(ctx, app.config.Database)
	if err != nil {
		return err
	}
	app.db = db

	app.repo = auth.NewRepositoryManager(db)
	app.repo.MustValidate()

	if app.config.Database.Migrate {
		migrations, err := fs.Sub(auth.GetMigrationsFS(), "data/sql/migrations")
		if err != nil {
			return err
		}
		if err := persistence.Migrate(ctx, db, migrations); err != nil {
			return err
		}
	} else if err := app.repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	app.GetLogger("persistence").Info("database ready", "driver", app.config.Database.Driver)
	return nil
}

func WithRedis(ctx context.Context, app *App) error {
	cfg := app.config.Redis
	if !cfg.Enabled() {
		app.GetLogger("redis").Warn("redis not configured, oauth state replay protection disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("redis ping: %w", err)
	}

	app.redis = client
	return nil
}

func WithMetrics(_ context.Context, app *App) error {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return nil
}

func WithAuthenticator(_ context.Context, app *App) error {
	logger := app.GetLogger("auth")

	sinks := auth.MultiActivitySink{
		auth.ActivitySinkFunc(func(_ context.Context, e auth.ActivityEvent) error {
			logger.Debug("activity", "event", e.EventType, "account_id", e.AccountID)
			return nil
		}),
	}

	if app.config.Server.MetricsEnabled {
		sink, err := metrics.NewSink(app.registry)
		if err != nil {
			return err
		}
		sinks = append(sinks, sink)
	}

	app.auther = auth.NewAuthenticator(app.repo.Accounts(), app.config.Auth).
		WithLogger(logger).
		WithActivitySink(sinks)

	httpLogger := app.GetLogger("auth:http")
	app.routes = auth.NewHTTPAuthenticator(app.auther, app.config.Auth).
		WithLogger(httpLogger).
		WithValidationListeners(auth.PrincipalListener(func(c router.Context, p auth.Principal) error {
			httpLogger.Debug("session verified", "account_id", p.AccountID, "path", c.Path())
			return nil
		}))

	return nil
}

func WithHTTPServer(_ context.Context, app *App) error {
	app.srv = router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:               "sessionauth",
			DisableStartupMessage: true,
		}))
	})

	app.srv.Router().WithLogger(app.GetLogger("router"))

	app.srv.Router().Get("/healthz", func(c router.Context) error {
		if err := app.db.PingContext(c.Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
		return c.JSON(router.StatusOK, map[string]string{"status": "ok"})
	})

	if app.config.Server.MetricsEnabled {
		app.srv.WrappedRouter().Get("/metrics", adaptor.HTTPHandler(
			promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}),
		))
	}

	return nil
}

func WithSessionRoutes(_ context.Context, app *App) error {
	auth.RegisterAuthRoutes(app.srv.Router().Group("/api"),
		auth.WithRouteAuthenticator(app.routes),
		auth.WithControllerLogger(app.GetLogger("auth:controller")),
	)
	return nil
}

func WithSocialRoutes(_ context.Context, app *App) error {
	cfg := app.config.OAuth
	if !cfg.Google.Enabled() {
		app.GetLogger("social").Info("google login disabled")
		return nil
	}

	logger := app.GetLogger("social")
	opts := []social.FlowOption{
		social.WithLogger(logger),
		social.WithProvider(google.New(google.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			CallbackURL:  cfg.Google.CallbackURL,
		})),
	}
	if app.redis != nil {
		opts = append(opts, social.WithNonceStore(
			social.NewRedisNonceStore(app.redis, app.config.Redis.KeyPrefix),
		))
	}

	flow, err := social.NewFlow(app.auther, social.FlowConfig{
		DefaultRedirect: cfg.FallbackRedirect,
		StateKey:        []byte(cfg.StateEncryptionKey),
		StateMACKey:     []byte(cfg.StateHMACKey),
		StateTTL:        cfg.StateTTL,
		Prompt:          cfg.Google.Prompt,
	}, opts...)
	if err != nil {
		return fmt.Errorf("social flow: %w", err)
	}

	social.NewHTTPController(flow, app.routes, social.HTTPConfig{
		CookieSecure:     app.config.Auth.CookieSecure,
		FallbackRedirect: cfg.FallbackRedirect,
		Logger:           app.GetLogger("social:http"),
	}).RegisterRoutes(app.srv.Router().Group("/api/auth"))

	return nil
}
