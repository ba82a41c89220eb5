package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Killerbeez7/print-dungeon-backend/api/controllers"
	webhookcontrollers "github.com/Killerbeez7/print-dungeon-backend/api/controllers/webhooks"
	"github.com/Killerbeez7/print-dungeon-backend/api/middleware"
	stripewebhook "github.com/Killerbeez7/print-dungeon-backend/internal/webhooks/stripe"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/config"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/db"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/logger"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/redis"
	"github.com/Killerbeez7/print-dungeon-backend/pkg/stripe"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	paymentsService controllers.PaymentsService,
	connectService controllers.ConnectService,
	subscriptionsService controllers.SubscriptionsService,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
	promRegistry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	// keep typed nils out of the interface params
	var redisP redis.Pinger
	var idemStore redis.IdempotencyStore
	if redisClient != nil {
		redisP = redisClient
		idemStore = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	if promRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/payments", func(r chi.Router) {
			r.Post("/intent", controllers.PaymentsCreateIntent(paymentsService, logg))
			r.Post("/success", controllers.PaymentsFinalizeSuccess(paymentsService, logg))
			r.Get("/purchases", controllers.PaymentsListPurchases(paymentsService, logg))
			r.With(middleware.RequireSeller(logg)).Get("/sales", controllers.PaymentsListSales(paymentsService, logg))
		})

		r.Post("/subscriptions", controllers.SubscriptionsCreate(subscriptionsService, logg))

		r.Route("/connect", func(r chi.Router) {
			r.Use(middleware.RequireSeller(logg))
			r.Post("/account", controllers.ConnectCreateAccount(connectService, logg))
			r.Post("/account-link", controllers.ConnectCreateAccountLink(connectService, logg))
			r.Get("/status", controllers.ConnectStatus(connectService, logg))
		})
	})

	return r
}
