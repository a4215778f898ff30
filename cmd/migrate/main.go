package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/cakestore-backend/internal/catalog"
	"github.com/angelmondragon/cakestore-backend/pkg/config"
	"github.com/angelmondragon/cakestore-backend/pkg/db"
	"github.com/angelmondragon/cakestore-backend/pkg/instance"
	"github.com/angelmondragon/cakestore-backend/pkg/logger"
	"github.com/angelmondragon/cakestore-backend/pkg/migrate"
	"github.com/angelmondragon/cakestore-backend/pkg/types"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|to|create|validate|seed")
	flag.StringVar(&opts.dir, "dir", migrate.SourceDir, "migration source directory for create and validate")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=to")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
		Fields:      map[string]any{"env": cfg.App.Env, "instance": instance.GetID()},
	})

	ctx := logg.WithField(context.Background(), "cmd", opts.cmd)
	if err := run(ctx, cfg, logg, opts); err != nil {
		logg.Error(ctx, "migrate command failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) (err error) {
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("-name is required for create")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name, time.Now())
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "path", path), "migration created")
		return nil
	case "validate":
		if err := migrate.Validate(os.DirFS(opts.dir)); err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "dir", opts.dir), "migrations valid")
		return nil
	}

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if opts.cmd == "seed" {
		return seed(ctx, cfg, logg, dbClient)
	}
	if dbClient.IsSQLite() {
		return errors.New("goose migrations target postgres; sqlite schemas are auto-migrated in dev")
	}

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return err
	}
	migrator, err := migrate.New(sqlDB, nil)
	if err != nil {
		return err
	}

	switch opts.cmd {
	case "up":
		applied, err := migrator.Up(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "applied", applied), "migrations applied")
	case "down":
		version, err := migrator.Down(ctx)
		if err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "version", version), "migration rolled back")
	case "to":
		target, err := strconv.ParseInt(opts.version, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid -version %q: %w", opts.version, err)
		}
		if err := migrator.To(ctx, target); err != nil {
			return err
		}
		logg.Info(logg.WithField(ctx, "version", target), "schema at target version")
	case "status":
		statuses, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		for _, st := range statuses {
			state := "pending"
			if st.Applied {
				state = "applied " + st.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%d\t%s\t%s\n", st.Version, st.Path, state)
		}
	default:
		return fmt.Errorf("unknown -cmd %q", opts.cmd)
	}
	return nil
}

func seed(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client) error {
	if !cfg.App.IsDev() {
		return errors.New("seed only runs in dev")
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}
	today := types.DateOf(time.Now(), cfg.Scheduling.Location())
	created, err := catalog.SeedDemo(ctx, catalog.NewRepository(dbClient.DB()), today)
	if err != nil {
		return err
	}
	if created == 0 {
		logg.Info(ctx, "catalog already populated, nothing seeded")
		return nil
	}
	logg.Info(logg.WithField(ctx, "products", created), "demo catalog seeded")
	return nil
}
