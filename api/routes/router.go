package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/starfeed/backend/api/controllers"
	"github.com/starfeed/backend/api/middleware"
	"github.com/starfeed/backend/internal/accounts"
	"github.com/starfeed/backend/internal/content"
	"github.com/starfeed/backend/internal/ledger"
	"github.com/starfeed/backend/internal/notifications"
	"github.com/starfeed/backend/internal/presence"
	"github.com/starfeed/backend/pkg/config"
	"github.com/starfeed/backend/pkg/db"
	"github.com/starfeed/backend/pkg/logger"
	"github.com/starfeed/backend/pkg/metrics"
	"github.com/starfeed/backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	accountsService accounts.Service,
	contentService content.Service,
	ledgerService ledger.Service,
	notificationsService notifications.Service,
	presenceService presence.Service,
	dlq controllers.DLQLister,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.HTTP.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{"db": dbP}
	if redisClient != nil {
		readiness["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if gatherer != nil {
		r.Handle("/metrics", metrics.Handler(gatherer))
	}

	viewPolicy := middleware.RateLimitPolicy{
		Name:   "views",
		Window: cfg.RateLimit.Window,
		Limit:  cfg.RateLimit.ViewsPerWindow,
	}

	pending := middleware.PendingTTL(cfg.HTTP.WriteTimeout)
	idempotent := func(ttl time.Duration) func(http.Handler) http.Handler {
		if redisClient == nil {
			return passthrough
		}
		return middleware.Idempotent(redisClient, ttl, pending, logg)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Auth, logg))

		r.Route("/v1", func(r chi.Router) {
			r.Get("/me", controllers.GetMe(accountsService, logg))
			r.Get("/me/transactions", controllers.ListMyTransactions(ledgerService, logg))

			r.Get("/feed", controllers.ListFeed(contentService, logg))
			r.With(idempotent(middleware.IdempotencyTTLDefault)).
				Post("/content", controllers.CreateContent(contentService, accountsService, logg))
			r.Route("/content/{contentId}", func(r chi.Router) {
				r.Get("/", controllers.GetContent(contentService, logg))
				r.Get("/views/me", controllers.ViewStatus(ledgerService, logg))
				r.With(viewRateLimit(viewPolicy, redisClient, logg)).
					Post("/views", controllers.RecordView(ledgerService, accountsService, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(notificationsService, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			})

			if cfg.FeatureFlags.Presence {
				r.Route("/presence", func(r chi.Router) {
					r.Put("/", controllers.Heartbeat(presenceService, logg))
					r.Delete("/", controllers.GoOffline(presenceService, logg))
					r.Get("/{accountId}", controllers.GetPresence(presenceService, logg))
				})
			}
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))
			r.With(idempotent(middleware.IdempotencyTTLDefault)).
				Post("/content/{contentId}/suspend", controllers.AdminSuspendContent(contentService, logg))
			r.With(idempotent(middleware.IdempotencyTTLDefault)).
				Post("/content/{contentId}/restore", controllers.AdminRestoreContent(contentService, logg))
			r.Get("/revenue", controllers.AdminPlatformRevenue(ledgerService, logg))
			r.With(idempotent(middleware.IdempotencyTTLCritical)).
				Post("/accounts/{accountId}/stars", controllers.AdminGrantStars(accountsService, logg))
			r.Get("/outbox/dlq", controllers.AdminListOutboxDLQ(dlq, logg))
		})
	})

	return r
}

func passthrough(next http.Handler) http.Handler { return next }

// Unlocking content is idempotent by construction, so /views is throttled
// instead of keyed.
func viewRateLimit(policy middleware.RateLimitPolicy, redisClient *redis.Client, logg *logger.Logger) func(http.Handler) http.Handler {
	if redisClient == nil {
		return passthrough
	}
	return middleware.RateLimit(policy, redisClient, logg)
}
