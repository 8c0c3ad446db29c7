package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/restaurant-checkout/api/controllers"
	merchantcontrollers "github.com/angelmondragon/restaurant-checkout/api/controllers/merchant"
	ordercontrollers "github.com/angelmondragon/restaurant-checkout/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/restaurant-checkout/api/controllers/payments"
	webhookcontrollers "github.com/angelmondragon/restaurant-checkout/api/controllers/webhooks"
	"github.com/angelmondragon/restaurant-checkout/api/middleware"
	internalorders "github.com/angelmondragon/restaurant-checkout/internal/orders"
	"github.com/angelmondragon/restaurant-checkout/pkg/config"
	"github.com/angelmondragon/restaurant-checkout/pkg/enums"
	"github.com/angelmondragon/restaurant-checkout/pkg/logger"
	"github.com/angelmondragon/restaurant-checkout/pkg/metrics"
)

// Store is the Redis surface the HTTP layer needs: readiness, Idempotency-Key
// replay and rate limiting.
type Store interface {
	controllers.Pinger
	middleware.IdempotencyStore
	middleware.RateLimitStore
}

// Dependencies collects what cmd/api wires into the router.
type Dependencies struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Store    Store
	Gatherer prometheus.Gatherer

	Payments  paymentcontrollers.SplitPaymentCreator
	Checkout  paymentcontrollers.PaymentConfirmer
	Orders    internalorders.Service
	Merchants merchantcontrollers.Service

	Webhooks         webhookcontrollers.StripeWebhookService
	WebhookGuard     webhookcontrollers.EventGuard
	WebhookSignature webhookcontrollers.SignatureVerifier
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	intentsPolicy := middleware.NewRateLimitPolicy("intents", cfg.RateLimit.Window, cfg.RateLimit.IntentsPerIP, cfg.RateLimit.IntentsPerEmail)
	confirmPolicy := middleware.NewRateLimitPolicy("confirm", cfg.RateLimit.Window, cfg.RateLimit.ConfirmsPerIP, cfg.RateLimit.ConfirmsPerEmail)

	readiness := map[string]controllers.Pinger{}
	if deps.DB != nil {
		readiness["db"] = deps.DB
	}
	if deps.Store != nil {
		readiness["redis"] = deps.Store
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", metrics.Handler(gatherer))

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.Webhooks, deps.WebhookSignature, deps.WebhookGuard, logg))
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Use(middleware.Idempotency(deps.Store, cfg.Idempotency.TTL, logg))
		r.With(middleware.RateLimit(intentsPolicy, deps.Store, logg)).
			Post("/intents", paymentcontrollers.CreateIntent(deps.Payments, logg))
		r.With(middleware.RateLimit(confirmPolicy, deps.Store, logg)).
			Post("/confirm", paymentcontrollers.Confirm(deps.Checkout, logg))
	})

	r.Route("/api/staff/v1", func(r chi.Router) {
		r.Use(middleware.StaffAuth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Store, cfg.Idempotency.TTL, logg))

		r.Route("/merchant", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.StaffRoleManager))
			r.Post("/onboarding", merchantcontrollers.Onboard(deps.Merchants, logg))
			r.Get("/status", merchantcontrollers.Status(deps.Merchants, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.StaffRoleManager, enums.StaffRoleKitchen))
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.Post("/{orderId}/status", ordercontrollers.UpdateStatus(deps.Orders, logg))
		})
	})

	return r
}
