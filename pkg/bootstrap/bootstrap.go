// Package bootstrap holds the startup sequence shared by the binaries under
// cmd/: environment and config loading, the service logger, the shared
// clients and their shutdown, and the exit code.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/starfeed/backend/pkg/config"
	"github.com/starfeed/backend/pkg/db"
	"github.com/starfeed/backend/pkg/instance"
	"github.com/starfeed/backend/pkg/logger"
	"github.com/starfeed/backend/pkg/metrics"
	"github.com/starfeed/backend/pkg/migrate"
	"github.com/starfeed/backend/pkg/pubsub"
	"github.com/starfeed/backend/pkg/redis"
)

type closer struct {
	name string
	fn   func() error
}

// Runtime is a started binary: its config, its logger, and every client it
// opened, closed in reverse order by Close.
type Runtime struct {
	Service string
	Config  *config.Config
	Logger  *logger.Logger
	closers []closer
}

// Main runs fn with a context cancelled on SIGINT or SIGTERM and exits
// non-zero if fn fails for any other reason.
func Main(service string, fn func(ctx context.Context, rt *Runtime) error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rt, err := Start(service)
	if err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "%s: %v\n", service, err)
		os.Exit(1)
	}

	ctx = rt.Logger.WithFields(ctx, map[string]any{
		"env":         rt.Config.App.Env,
		"serviceKind": rt.Config.Service.Kind,
		"instance":    instance.GetID(),
	})
	err = fn(ctx, rt)
	if cerr := rt.Close(); cerr != nil {
		rt.Logger.Error(ctx, "shutdown left clients open", cerr)
	}
	stop()

	if err != nil && !errors.Is(err, context.Canceled) {
		rt.Logger.Error(ctx, service+" stopped unexpectedly", err)
		os.Exit(1)
	}
	rt.Logger.Info(ctx, service+" stopped")
}

// Start loads .env (when present) and the config, then builds the logger at
// the configured level.
func Start(service string) (*Runtime, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Service.Kind = service

	return &Runtime{
		Service: service,
		Config:  cfg,
		Logger: logger.New(logger.Options{
			ServiceName: service,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
		}),
	}, nil
}

func (rt *Runtime) onClose(name string, fn func() error) {
	rt.closers = append(rt.closers, closer{name: name, fn: fn})
}

// Close closes every client opened through rt, newest first.
func (rt *Runtime) Close() error {
	var err error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		c := rt.closers[i]
		if cerr := c.fn(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close %s: %w", c.name, cerr))
		}
	}
	rt.closers = nil
	return err
}

// Database connects to Postgres. In dev with STARFEED_AUTO_MIGRATE set it
// also applies the embedded migrations; other environments run cmd/migrate.
func (rt *Runtime) Database(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, rt.Config.DB, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	rt.onClose("database", client.Close)

	if !rt.Config.App.IsDev() || !rt.Config.FeatureFlags.AutoMigrate {
		return client, nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	runner, err := migrate.NewRunner(sqlDB, "", rt.Logger)
	if err != nil {
		return nil, err
	}
	migrateCtx := rt.Logger.WithField(ctx, "source", "embedded")
	rt.Logger.Info(migrateCtx, "dev auto-migrate starting")
	if err := runner.Up(migrateCtx); err != nil {
		return nil, fmt.Errorf("dev auto-migrate: %w", err)
	}
	return client, nil
}

func (rt *Runtime) Redis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, rt.Config.Redis, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	rt.onClose("redis", client.Close)
	return client, nil
}

func (rt *Runtime) PubSub(ctx context.Context) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, rt.Config.GCP, rt.Config.PubSub, rt.Logger)
	if err != nil {
		return nil, fmt.Errorf("connect pubsub: %w", err)
	}
	rt.onClose("pubsub", client.Close)
	return client, nil
}

// ServeMetrics exposes the default registry on STARFEED_METRICS_ADDR until
// ctx ends. Workers call it; the api serves /metrics on its own router.
func (rt *Runtime) ServeMetrics(ctx context.Context) {
	addr := rt.Config.App.MetricsAddr
	if addr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, addr, prometheus.DefaultGatherer); err != nil {
			rt.Logger.Error(rt.Logger.WithField(ctx, "addr", addr), "metrics listener failed", err)
		}
	}()
}
