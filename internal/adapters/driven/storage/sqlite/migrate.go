package sqlite

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
)

// migration is one NNN_name.up.sql file and its optional .down.sql twin.
type migration struct {
	version int
	name    string
	up      string
	down    string
}

// loadMigrations reads every migration in fsys, ordered by version.
func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	byVersion := make(map[int]*migration)
	for _, entry := range entries {
		base, dir, ok := splitMigrationName(entry.Name())
		if !ok {
			continue
		}
		prefix, label, _ := strings.Cut(base, "_")
		version, err := strconv.Atoi(prefix)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migration %s: bad version prefix", entry.Name())
		}

		body, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		m := byVersion[version]
		if m == nil {
			m = &migration{version: version, name: label}
			byVersion[version] = m
		} else if m.name != label {
			return nil, fmt.Errorf("migration version %d used by %q and %q", version, m.name, label)
		}
		if dir == "up" {
			m.up = string(body)
		} else {
			m.down = string(body)
		}
	}

	out := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.up == "" {
			return nil, fmt.Errorf("migration %d_%s has no up script", m.version, m.name)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b migration) int { return a.version - b.version })
	return out, nil
}

// splitMigrationName splits "001_x.up.sql" into "001_x" and "up".
func splitMigrationName(file string) (base, dir string, ok bool) {
	for _, d := range []string{"up", "down"} {
		if b, found := strings.CutSuffix(file, "."+d+".sql"); found {
			return b, d, true
		}
	}
	return "", "", false
}

// migrate applies every migration above the recorded version. Each script
// commits together with its schema_migrations row.
func (s *Store) migrate(ctx context.Context, migrations []migration) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.step(ctx, m.up, "INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return fmt.Errorf("apply %03d_%s: %w", m.version, m.name, err)
		}
	}
	return nil
}

// Rollback runs down scripts, newest first, until the schema is at
// version target.
func (s *Store) Rollback(ctx context.Context, target int) error {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	for _, m := range slices.Backward(s.migrations) {
		if m.version <= target || m.version > current {
			continue
		}
		if m.down == "" {
			return fmt.Errorf("roll back %03d_%s: no down script", m.version, m.name)
		}
		if err := s.step(ctx, m.down, "DELETE FROM schema_migrations WHERE version = ?", m.version); err != nil {
			return fmt.Errorf("roll back %03d_%s: %w", m.version, m.name, err)
		}
	}
	return nil
}

func (s *Store) step(ctx context.Context, script, bookkeeping string, version int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, bookkeeping, version); err != nil {
		return err
	}
	return tx.Commit()
}
