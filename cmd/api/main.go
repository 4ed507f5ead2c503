// Package main is the entry point for the AI Growth billing API.
//
// It loads configuration, opens the PostgreSQL pool, applies migrations,
// wires the checkout provider client and the billing services into the HTTP
// chassis, and serves until SIGINT or SIGTERM.
package main

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

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"aigrowth/internal/api/handlers"
	"aigrowth/internal/billing"
	"aigrowth/internal/config"
	"aigrowth/internal/core"
	"aigrowth/internal/db"
	"aigrowth/internal/external"
	"aigrowth/internal/security"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// SSM is only consulted outside APP_ENV=local and only for *_SSM_PARAM
	// pointers; the client is created lazily.
	cfg, err := config.Load(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Info("billing API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Database.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("database migrations applied")
	}

	yampi := external.NewYampiClient(security.NewHTTPClient(cfg.Yampi.Timeout, cfg.Environment == "local"), external.YampiClientConfig{
		BaseURL: cfg.Yampi.APIBaseURL,
		Token:   cfg.Yampi.Token.Unmask(),
		Alias:   cfg.Yampi.Alias,
		Logger:  logger,
	})

	srv, err := buildServer(cfg, logger, pool, yampi)
	if err != nil {
		return err
	}
	return serve(ctx, srv, logger)
}

// database is what the wiring needs from the pool. *pgxpool.Pool satisfies it.
type database interface {
	db.DBTX
	db.TxBeginner
	core.Pinger
}

// buildServer wires repositories, services and handlers onto the chassis.
func buildServer(cfg *config.Config, logger *slog.Logger, conn database, gateway billing.Gateway) (*core.Server, error) {
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	metrics := core.NewPrometheusMetrics()
	srv.Metrics = metrics
	srv.MetricsHandler = metrics.Handler()
	srv.HealthProbes = append(srv.HealthProbes, core.DatabaseProbe{DB: conn})

	repos := db.NewRepositories(conn)
	reconciler := billing.NewReconciler(billing.NewUnitOfWork(db.NewTxRunner(conn)), logger)
	payments := billing.NewPaymentService(gateway, reconciler, logger)
	plans := billing.NewPlanService(repos.Plans, logger)

	webhook := handlers.NewYampiWebhookHandler(
		external.HMACVerifier{},
		reconciler,
		db.NewWebhookEventRepository(conn),
		metrics,
		handlers.YampiWebhookConfig{
			Secret:           cfg.Yampi.Secret.Unmask(),
			RequireSignature: cfg.Yampi.RequireSignature,
		},
		logger,
	)
	checkout := handlers.NewCheckoutHandler(payments, srv.Validator, logger)
	plansHandler := handlers.NewPlansHandler(plans, logger)
	subsHandler := handlers.NewSubscriptionsHandler(repos.Subscriptions, repos.Customers, logger)

	srv.PublicRouteRegistrars = append(srv.PublicRouteRegistrars, webhook.RegisterRoutes)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, plansHandler.RegisterRoutes, subsHandler.RegisterRoutes)
	srv.LimitedRouteRegistrars = append(srv.LimitedRouteRegistrars, checkout.RegisterRoutes)

	srv.MountRoutes()
	return srv, nil
}

func openPool(ctx context.Context, c config.DatabaseConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(c.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	pc.MaxConns = c.MaxConns
	pc.MinConns = c.MinConns
	pc.MaxConnLifetime = c.MaxConnLifetime
	pc.HealthCheckPeriod = c.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

// serve runs the listener until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func serve(ctx context.Context, srv *core.Server, logger *slog.Logger) error {
	hs := srv.HTTPServer()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", hs.Addr)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx, hs)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
