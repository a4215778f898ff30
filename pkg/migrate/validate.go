package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"go.uber.org/multierr"
)

// Validate checks every .sql file at the root of fsys: the name must be
// <14 digit version>_<slug>.sql, versions must be unique and both goose sections present.
// All problems are reported together.
func Validate(fsys fs.FS) error {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	if len(names) == 0 {
		return errors.New("no migrations found")
	}

	var errs error
	seen := make(map[int64]string, len(names))
	for _, name := range names {
		version, ok := parseFilename(name)
		if !ok {
			errs = multierr.Append(errs, fmt.Errorf("%s: expected YYYYMMDDHHMMSS_name.sql", name))
			continue
		}
		if prev, dup := seen[version]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: version %d already used by %s", name, version, prev))
		}
		seen[version] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		for _, marker := range []string{"-- +goose Up", "-- +goose Down"} {
			if !strings.Contains(string(body), marker) {
				errs = multierr.Append(errs, fmt.Errorf("%s: missing %q", name, marker))
			}
		}
	}
	return errs
}

func parseFilename(name string) (int64, bool) {
	base := strings.TrimSuffix(path.Base(name), ".sql")
	prefix, rest, found := strings.Cut(base, "_")
	if !found || len(prefix) != len(versionLayout) || rest == "" || slug(rest) != rest {
		return 0, false
	}
	version, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil || version <= 0 {
		return 0, false
	}
	return version, true
}
