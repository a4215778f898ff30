package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/cakestore-backend/api/controllers"
	cartcontrollers "github.com/angelmondragon/cakestore-backend/api/controllers/cart"
	ordercontrollers "github.com/angelmondragon/cakestore-backend/api/controllers/orders"
	"github.com/angelmondragon/cakestore-backend/api/middleware"
	"github.com/angelmondragon/cakestore-backend/internal/capacity"
	"github.com/angelmondragon/cakestore-backend/internal/catalog"
	"github.com/angelmondragon/cakestore-backend/internal/clock"
	"github.com/angelmondragon/cakestore-backend/internal/fulfillment"
	"github.com/angelmondragon/cakestore-backend/internal/orders"
	"github.com/angelmondragon/cakestore-backend/pkg/config"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	"github.com/angelmondragon/cakestore-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/cakestore-backend/pkg/redis"
)

// Cache is the Redis surface the router needs: idempotency records, rate limit counters and
// the readiness ping.
type Cache interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	middleware.RateLimiter
}

// Dependencies carries everything the API surface is wired to.
type Dependencies struct {
	Config *config.Config
	Logger *logger.Logger

	DB    controllers.Pinger
	Cache Cache

	Clock  clock.Clock
	Policy fulfillment.Policy

	Catalog   catalog.Service
	Estimator fulfillment.Service
	Placement orders.PlacementService
	Orders    orders.Service
	Capacity  capacity.Service

	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins...),
	)

	var (
		idempotency     = middleware.Idempotency(nil, logg)
		estimateLimit   = middleware.RateLimit(middleware.RateLimitPolicy{}, nil, logg)
		placementLimit  = middleware.RateLimit(middleware.RateLimitPolicy{}, nil, logg)
		readinessChecks = map[string]controllers.Pinger{"db": deps.DB}
	)
	if deps.Cache != nil {
		idempotency = middleware.Idempotency(deps.Cache, logg)
		estimateLimit = middleware.RateLimit(
			middleware.NewRateLimitPolicy("estimate", cfg.RateLimit.Window, cfg.RateLimit.EstimateLimit), deps.Cache, logg)
		placementLimit = middleware.RateLimit(
			middleware.NewRateLimitPolicy("placement", cfg.RateLimit.Window, cfg.RateLimit.PlacementLimit), deps.Cache, logg)
		readinessChecks["redis"] = deps.Cache
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg.App.Env))
		r.Get("/ready", controllers.HealthReady(cfg.App.Env, logg, readinessChecks))
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", controllers.ProductList(deps.Catalog, logg))
		r.Get("/products/{productId}", controllers.ProductDetail(deps.Catalog, logg))
		r.Get("/slots", controllers.SlotList(deps.Capacity, deps.Clock, deps.Policy, logg))

		r.With(estimateLimit).Post("/cart/validate", cartcontrollers.Validate(deps.Estimator, logg))

		r.With(placementLimit, idempotency).Post("/orders", ordercontrollers.Place(deps.Placement, logg))
		r.Get("/orders/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Get("/orders", ordercontrollers.List(deps.Orders, logg))
		r.Get("/orders/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
		r.Get("/capacity", controllers.SlotList(deps.Capacity, deps.Clock, deps.Policy, logg))
		r.With(idempotency).Put("/capacity/{date}", controllers.AdminCapacityUpdate(deps.Capacity, logg))
	})

	return r
}
