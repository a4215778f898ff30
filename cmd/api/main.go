package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/cakestore-backend/api/routes"
	"github.com/angelmondragon/cakestore-backend/internal/capacity"
	"github.com/angelmondragon/cakestore-backend/internal/catalog"
	"github.com/angelmondragon/cakestore-backend/internal/clock"
	"github.com/angelmondragon/cakestore-backend/internal/fulfillment"
	"github.com/angelmondragon/cakestore-backend/internal/inventory"
	"github.com/angelmondragon/cakestore-backend/internal/orders"
	"github.com/angelmondragon/cakestore-backend/pkg/config"
	"github.com/angelmondragon/cakestore-backend/pkg/db"
	"github.com/angelmondragon/cakestore-backend/pkg/instance"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	"github.com/angelmondragon/cakestore-backend/pkg/metrics"
	"github.com/angelmondragon/cakestore-backend/pkg/migrate"
	"github.com/angelmondragon/cakestore-backend/pkg/outbox"
	"github.com/angelmondragon/cakestore-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Fields:      map[string]any{"env": cfg.App.Env, "instance": instance.GetID()},
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry := metrics.NewRegistry()
	schedulingMetrics := metrics.NewSchedulingMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	deps, err := wire(cfg, logg, dbClient, schedulingMetrics)
	if err != nil {
		return err
	}
	deps.Cache = redisClient
	deps.Gatherer = registry
	deps.HTTPMetrics = httpMetrics

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"addr": server.Addr,
	})

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// wire builds the domain services over a single database handle.
func wire(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, schedulingMetrics *metrics.SchedulingMetrics) (routes.Dependencies, error) {
	gdb := dbClient.DB()
	clk := clock.System{}
	policy := fulfillment.PolicyFromConfig(cfg.Scheduling)

	products := catalog.NewRepository(gdb)
	capacityLedger := capacity.NewLedger(gdb, cfg.Scheduling.DefaultDailyCapacity)
	inventoryLedger := inventory.NewLedger(gdb)
	orderRepo := orders.NewRepository(gdb)
	emitter := outbox.NewService(outbox.NewRepository(gdb), logg)

	catalogService, err := catalog.NewService(products)
	if err != nil {
		return routes.Dependencies{}, err
	}
	estimator, err := fulfillment.NewService(fulfillment.ServiceParams{
		Products: products,
		Capacity: capacityLedger,
		Clock:    clk,
		Policy:   policy,
		Metrics:  schedulingMetrics,
		Logger:   logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	placement, err := orders.NewPlacementService(orders.PlacementParams{
		DB:          dbClient,
		Products:    products,
		Capacity:    capacityLedger,
		Inventory:   inventoryLedger,
		Orders:      orderRepo,
		Outbox:      emitter,
		Clock:       clk,
		Policy:      policy,
		MaxAttempts: cfg.Scheduling.ReserveMaxAttempts,
		BaseBackoff: cfg.Scheduling.ReserveBaseBackoff,
		Metrics:     schedulingMetrics,
		Logger:      logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	orderService, err := orders.NewService(orderRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}
	capacityService, err := capacity.NewService(capacity.ServiceParams{
		DB:     dbClient,
		Ledger: capacityLedger,
		Outbox: emitter,
		Logger: logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Clock:     clk,
		Policy:    policy,
		Catalog:   catalogService,
		Estimator: estimator,
		Placement: placement,
		Orders:    orderService,
		Capacity:  capacityService,
	}, nil
}
