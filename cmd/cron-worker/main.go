package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/cakestore-backend/internal/capacity"
	"github.com/angelmondragon/cakestore-backend/internal/clock"
	"github.com/angelmondragon/cakestore-backend/internal/cron"
	"github.com/angelmondragon/cakestore-backend/internal/fulfillment"
	"github.com/angelmondragon/cakestore-backend/pkg/config"
	"github.com/angelmondragon/cakestore-backend/pkg/db"
	"github.com/angelmondragon/cakestore-backend/pkg/instance"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	"github.com/angelmondragon/cakestore-backend/pkg/metrics"
	"github.com/angelmondragon/cakestore-backend/pkg/migrate"
	"github.com/angelmondragon/cakestore-backend/pkg/outbox"
	"github.com/angelmondragon/cakestore-backend/pkg/redis"
)

const serviceKind = "cron-worker"

type options struct {
	once bool
	jobs []string
}

func parseOptions() options {
	once := flag.Bool("once", false, "run one cycle and exit")
	only := flag.String("job", "", "comma separated job names to run instead of all")
	flag.Parse()

	opts := options{once: *once}
	for _, name := range strings.Split(*only, ",") {
		if name = strings.TrimSpace(name); name != "" {
			opts.jobs = append(opts.jobs, name)
		}
	}
	return opts
}

func main() {
	opts := parseOptions()

	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Fields:      map[string]any{"env": cfg.App.Env, "instance": instance.GetID()},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg, opts); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		return fmt.Errorf("build cron jobs: %w", err)
	}
	if len(opts.jobs) > 0 {
		if registry, err = registry.Only(opts.jobs...); err != nil {
			return err
		}
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceKind, lockScope(cfg.App.Env)), 0)
	if err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"jobs":        len(registry.Jobs()),
	})
	if opts.once {
		logg.Info(ctx, "running cron cycle once")
		return service.RunOnce(ctx)
	}
	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	gdb := dbClient.DB()

	seed, err := cron.NewCapacitySeedJob(cron.CapacitySeedJobParams{
		Logger:          logg,
		Ledger:          capacity.NewLedger(gdb, cfg.Scheduling.DefaultDailyCapacity),
		Clock:           clock.System{},
		Policy:          fulfillment.PolicyFromConfig(cfg.Scheduling),
		DefaultCapacity: cfg.Scheduling.DefaultDailyCapacity,
	})
	if err != nil {
		return nil, err
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Outbox:      outbox.NewRepository(gdb),
		DLQ:         outbox.NewDLQRepository(gdb),
		Retention:   cfg.Outbox.RetentionDays,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(seed, retention)
}

func lockScope(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
