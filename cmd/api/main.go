package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starfeed/backend/api/routes"
	"github.com/starfeed/backend/internal/accounts"
	"github.com/starfeed/backend/internal/content"
	"github.com/starfeed/backend/internal/ledger"
	"github.com/starfeed/backend/internal/notifications"
	"github.com/starfeed/backend/internal/presence"
	"github.com/starfeed/backend/pkg/bootstrap"
	"github.com/starfeed/backend/pkg/metrics"
	"github.com/starfeed/backend/pkg/outbox"
)

const shutdownTimeout = 15 * time.Second

func main() {
	bootstrap.Main("api", run)
}

func run(ctx context.Context, rt *bootstrap.Runtime) error {
	cfg, logg := rt.Config, rt.Logger
	dbClient, err := rt.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := rt.Redis(ctx)
	if err != nil {
		return err
	}

	conn := dbClient.DB()
	accountsRepo := accounts.NewRepository(conn)
	contentRepo := content.NewRepository(conn)
	viewsRepo := ledger.NewViewRepository(conn)
	txnsRepo := ledger.NewTransactionRepository(conn)
	outboxStore := outbox.NewStore(conn)
	emitter := outbox.NewEmitter(outboxStore, logg)

	accountsService, err := accounts.NewService(accountsRepo)
	if err != nil {
		return err
	}
	notificationsService, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return err
	}
	contentService, err := content.NewService(contentRepo, dbClient, emitter, viewsRepo, cfg.Ledger.MaxStarPrice, logg)
	if err != nil {
		return err
	}
	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		DB:           dbClient,
		Stores:       ledger.NewStoreFactory(accountsRepo, contentRepo, viewsRepo, txnsRepo),
		Views:        viewsRepo,
		Transactions: txnsRepo,
		Outbox:       emitter,
		Notifier:     notificationsService,
		StarValueNGN: cfg.Ledger.StarValueNGN,
		Metrics:      metrics.NewLedgerMetrics(prometheus.DefaultRegisterer),
		Logger:       logg,
	})
	if err != nil {
		return err
	}
	presenceService, err := presence.NewService(redisClient, cfg.Presence.TTL)
	if err != nil {
		return err
	}

	// PORT is set by the hosting platform and wins over the configured port.
	port := cfg.App.Port
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}
	server := &http.Server{
		Addr: net.JoinHostPort("", port),
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			prometheus.DefaultGatherer,
			accountsService,
			contentService,
			ledgerService,
			notificationsService,
			presenceService,
			outboxStore,
		),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	logg.Info(logg.WithField(ctx, "addr", server.Addr), "starting api server")
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
