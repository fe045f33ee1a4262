package main

import (
	"context"

	"github.com/starfeed/backend/internal/notifications"
	"github.com/starfeed/backend/pkg/bootstrap"
	"github.com/starfeed/backend/pkg/outbox/idempotency"
)

func main() {
	bootstrap.Main("worker", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	dbClient, err := rt.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}
	pubsubClient, err := rt.PubSub(ctx)
	if err != nil {
		return err
	}

	guard, err := idempotency.NewGuard(redisClient, notifications.ModerationConsumerName, rt.Config.Outbox.IdempotencyTTL)
	if err != nil {
		return err
	}
	notifier, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return err
	}
	moderation, err := notifications.NewConsumer(notifier, pubsubClient.ModerationSubscription(), guard, rt.Logger)
	if err != nil {
		return err
	}

	service, err := NewService(ServiceParams{
		Config: rt.Config,
		Logger: rt.Logger,
		DB:     dbClient,
		Redis:  redisClient,
		PubSub: pubsubClient,
		Consumers: map[string]consumer{
			notifications.ModerationConsumerName: moderation,
		},
	})
	if err != nil {
		return err
	}

	rt.ServeMetrics(ctx)
	rt.Logger.Info(ctx, "starting worker")
	return service.Run(ctx)
}
