package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/cakestore-backend/pkg/config"
	"github.com/angelmondragon/cakestore-backend/pkg/db"
	"github.com/angelmondragon/cakestore-backend/pkg/instance"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	"github.com/angelmondragon/cakestore-backend/pkg/migrate"
	"github.com/angelmondragon/cakestore-backend/pkg/outbox"
	"github.com/angelmondragon/cakestore-backend/pkg/outbox/registry"
)

const serviceKind = "outbox-publisher"

func main() {
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

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

// run owns every connection the publisher opens and closes them on the way out.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	sink, topic, err := openSink(ctx, cfg, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, sink.Close()) }()

	events, err := registry.NewEventRegistry(topic)
	if err != nil {
		return err
	}

	gdb := dbClient.DB()
	publisher, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Sink:          sink,
		Repository:    outbox.NewRepository(gdb),
		Registry:      events,
		DLQRepository: outbox.NewDLQRepository(gdb),
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"sink":        sink.Name(),
		"topic":       topic,
	})
	logg.Info(ctx, "starting outbox publisher")
	return publisher.Run(ctx)
}
