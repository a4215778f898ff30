package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
)

// SourceDir is where new migration files are authored, relative to the module root.
const SourceDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations returns the SQL migrations compiled into the binary.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Status is one migration as seen by the database.
type Status struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

// Migrator applies the Postgres schema. SQLite development databases are built with
// AutoMigrate instead, see MaybeRunDev.
type Migrator struct {
	provider *goose.Provider
}

func New(db *sql.DB, fsys fs.FS) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if fsys == nil {
		fsys = Migrations()
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

// Up applies every pending migration and returns the versions it ran.
func (m *Migrator) Up(ctx context.Context) ([]int64, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose up: %w", err)
	}
	versions := make([]int64, 0, len(results))
	for _, res := range results {
		versions = append(versions, res.Source.Version)
	}
	return versions, nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) (int64, error) {
	res, err := m.provider.Down(ctx)
	if err != nil {
		return 0, fmt.Errorf("goose down: %w", err)
	}
	return res.Source.Version, nil
}

// To moves the schema up or down until target is the current version.
func (m *Migrator) To(ctx context.Context, target int64) error {
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("current version: %w", err)
	}
	switch {
	case current == target:
		return nil
	case current < target:
		if _, err := m.provider.UpTo(ctx, target); err != nil {
			return fmt.Errorf("goose up to %d: %w", target, err)
		}
	default:
		if _, err := m.provider.DownTo(ctx, target); err != nil {
			return fmt.Errorf("goose down to %d: %w", target, err)
		}
	}
	return nil
}

func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	raw, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make([]Status, 0, len(raw))
	for _, st := range raw {
		out = append(out, Status{
			Version:   st.Source.Version,
			Path:      st.Source.Path,
			Applied:   st.State == goose.StateApplied,
			AppliedAt: st.AppliedAt,
		})
	}
	return out, nil
}
