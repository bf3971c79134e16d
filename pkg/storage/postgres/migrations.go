package postgres

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrationVersion parses the numeric prefix of a migration filename
// ("001_create_waivers.sql" -> 1). Files without one are skipped.
func migrationVersion(name string) (int, bool) {
	if !strings.HasSuffix(name, ".sql") {
		return 0, false
	}
	prefix, _, found := strings.Cut(name, "_")
	if !found {
		return 0, false
	}
	v, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, false
	}
	return v, true
}

// migrate brings the schema up to date, applying any embedded migration
// whose version is not yet recorded in schema_migrations. Versions apply
// in filename order.
func (s *Store) migrate(ctx context.Context) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, ok := migrationVersion(entry.Name())
		if !ok {
			continue
		}
		if s.migrationApplied(ctx, version) {
			continue
		}
		if err := s.applyMigration(ctx, entry.Name(), version); err != nil {
			return err
		}
	}
	return nil
}

// migrationApplied reports whether version is recorded. Before the first
// migration runs the schema_migrations table does not exist and the
// probe errors, which counts as not applied.
func (s *Store) migrationApplied(ctx context.Context, version int) bool {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)",
		version,
	).Scan(&exists)
	return err == nil && exists
}

func (s *Store) applyMigration(ctx context.Context, name string, version int) error {
	content, err := migrationFiles.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("reading migration %s: %w", name, err)
	}

	slog.Info("applying migration", "file", name, "version", version)

	if _, err := s.pool.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("applying migration %s: %w", name, err)
	}
	if _, err := s.pool.Exec(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING",
		version,
	); err != nil {
		return fmt.Errorf("recording migration %s: %w", name, err)
	}
	return nil
}
