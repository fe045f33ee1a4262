package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starfeed/backend/pkg/bootstrap"
	"github.com/starfeed/backend/pkg/metrics"
	"github.com/starfeed/backend/pkg/outbox"
	"github.com/starfeed/backend/pkg/outbox/registry"
)

func main() {
	bootstrap.Main("outbox-publisher", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	dbClient, err := rt.Database(ctx)
	if err != nil {
		return err
	}
	pubsubClient, err := rt.PubSub(ctx)
	if err != nil {
		return err
	}
	routes, err := registry.NewRoutes(rt.Config.PubSub)
	if err != nil {
		return err
	}

	service, err := NewService(ServiceParams{
		Config:  rt.Config,
		Logger:  rt.Logger,
		DB:      dbClient,
		PubSub:  pubsubClient,
		Store:   outbox.NewStore(dbClient.DB()),
		Routes:  routes,
		Sender:  topicSender{source: pubsubClient},
		Metrics: metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	rt.ServeMetrics(ctx)
	rt.Logger.Info(rt.Logger.WithField(ctx, "topics", routes.Topics()), "starting outbox publisher")
	return service.Run(ctx)
}
