package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starfeed/backend/internal/content"
	"github.com/starfeed/backend/internal/cron"
	"github.com/starfeed/backend/internal/notifications"
	"github.com/starfeed/backend/pkg/bootstrap"
	"github.com/starfeed/backend/pkg/config"
	"github.com/starfeed/backend/pkg/metrics"
	"github.com/starfeed/backend/pkg/outbox"
)

func main() {
	bootstrap.Main("cron-worker", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg := rt.Config
	dbClient, err := rt.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, lockName(cfg.App), 0)
	if err != nil {
		return err
	}
	notificationJob, err := cron.NewNotificationCleanupJob(rt.Logger, dbClient, notifications.NewRepository(dbClient.DB()), cfg.Cron.NotificationRetention)
	if err != nil {
		return err
	}
	outboxJob, err := cron.NewOutboxRetentionJob(rt.Logger, dbClient, outbox.NewStore(dbClient.DB()), cfg.Outbox.Retention, cfg.Outbox.MaxAttempts)
	if err != nil {
		return err
	}
	viewCountJob, err := cron.NewViewCountReconcileJob(cron.ViewCountReconcileJobParams{
		Logger:     rt.Logger,
		Repository: content.NewRepository(dbClient.DB()),
	})
	if err != nil {
		return err
	}

	registry := cron.NewRegistry()
	for _, entry := range []cron.Entry{
		{Job: notificationJob, Every: cfg.Cron.NotificationCleanupEvery},
		{Job: outboxJob, Every: cfg.Cron.OutboxRetentionEvery},
		{Job: viewCountJob, Every: cfg.Cron.ViewReconcileEvery},
	} {
		if err := registry.Add(entry.Job, entry.Every); err != nil {
			return err
		}
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   rt.Logger,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Tick:     cfg.Cron.Tick,
	})
	if err != nil {
		return err
	}

	rt.ServeMetrics(ctx)
	rt.Logger.Info(rt.Logger.WithField(ctx, "jobs", registry.Names()), "starting cron worker")
	return service.Run(ctx)
}

// lockName scopes the cron lock to one environment.
func lockName(app config.AppConfig) string {
	env := app.Env
	if env == "" {
		env = "local"
	}
	return "cron-worker:" + env
}
