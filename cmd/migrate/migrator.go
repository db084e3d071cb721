package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type direction string

const (
	directionUp   direction = "up"
	directionDown direction = "down"
)

type migrationFile struct {
	version   int
	name      string
	path      string
	direction direction
}

var errNoVersion = errors.New("migration file name has no numeric version prefix")

// parseMigrationName splits "001_create_users_table.up.sql" into its
// version, name and direction. Files without .up/.down count as up.
func parseMigrationName(filename string) (int, string, direction, error) {
	lower := strings.ToLower(filename)
	if !strings.HasSuffix(lower, ".sql") {
		return 0, "", "", errors.Errorf("not an sql file: %s", filename)
	}

	dir := directionUp
	base := filename[:len(filename)-len(".sql")]
	switch {
	case strings.HasSuffix(lower, ".down.sql"):
		dir = directionDown
		base = filename[:len(filename)-len(".down.sql")]
	case strings.HasSuffix(lower, ".up.sql"):
		base = filename[:len(filename)-len(".up.sql")]
	}

	parts := strings.SplitN(base, "_", 2)
	if len(parts) != 2 || parts[1] == "" {
		return 0, "", "", errNoVersion
	}
	version, err := strconv.Atoi(parts[0])
	if err != nil || version < 0 {
		return 0, "", "", errNoVersion
	}
	return version, parts[1], dir, nil
}

func loadMigrationFiles(dir string) ([]migrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", dir)
	}

	var files []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			continue
		}
		version, name, d, err := parseMigrationName(e.Name())
		if err != nil {
			continue
		}
		files = append(files, migrationFile{
			version:   version,
			name:      name,
			path:      filepath.Join(dir, e.Name()),
			direction: d,
		})
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

type migrator struct {
	db  *sql.DB
	log *logrus.Logger
}

func (m *migrator) ensureSchemaMigrations(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	return err
}

func (m *migrator) applied(ctx context.Context) (map[int]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out[v] = true
	}
	return out, rows.Err()
}

// up applies every pending up migration in version order.
func (m *migrator) up(ctx context.Context, files []migrationFile) (int, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, f := range files {
		if f.direction != directionUp || done[f.version] {
			continue
		}
		m.log.WithFields(logrus.Fields{"version": f.version, "name": f.name}).Info("applying migration")
		err := m.exec(ctx, f, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations(version, name) VALUES ($1, $2)`, f.version, f.name)
			return err
		})
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// down reverts applied migrations newest first. steps <= 0 reverts all.
func (m *migrator) down(ctx context.Context, files []migrationFile, steps int) (int, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return 0, err
	}

	downs := pendingDowns(files, done)
	if steps > 0 && steps < len(downs) {
		downs = downs[:steps]
	}

	count := 0
	for _, f := range downs {
		m.log.WithFields(logrus.Fields{"version": f.version, "name": f.name}).Info("reverting migration")
		err := m.exec(ctx, f, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, f.version)
			return err
		})
		if err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func pendingDowns(files []migrationFile, done map[int]bool) []migrationFile {
	var downs []migrationFile
	for _, f := range files {
		if f.direction == directionDown && done[f.version] {
			downs = append(downs, f)
		}
	}
	sort.SliceStable(downs, func(i, j int) bool { return downs[i].version > downs[j].version })
	return downs
}

// exec runs the file and the bookkeeping statement in one transaction.
func (m *migrator) exec(ctx context.Context, f migrationFile, record func(*sql.Tx) error) error {
	body, err := os.ReadFile(f.path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", f.path)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("executing %s: %w", f.path, err)
	}
	if err := record(tx); err != nil {
		_ = tx.Rollback()
		return errors.Wrapf(err, "recording %s", f.path)
	}
	return tx.Commit()
}
