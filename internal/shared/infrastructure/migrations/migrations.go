// Package migrations embeds the schema for every supported driver.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

const createVersionTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TEXT NOT NULL
)`

// Files returns the ordered .up.sql file names for a driver.
func Files(driver database.Driver) ([]string, error) {
	dir, err := dirFor(driver)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)
	return upFiles, nil
}

// Run applies every migration that has not been recorded in
// schema_migrations. Each file runs in its own transaction.
func Run(ctx context.Context, conn database.Connection) error {
	driver := conn.Driver()
	dir, err := dirFor(driver)
	if err != nil {
		return err
	}
	files, err := Files(driver)
	if err != nil {
		return err
	}

	if _, err := conn.Exec(ctx, createVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return err
	}

	uow := database.NewUnitOfWork(conn)
	for _, file := range files {
		version := strings.TrimSuffix(file, ".up.sql")
		if applied[version] {
			continue
		}

		body, err := migrationsFS.ReadFile(dir + "/" + file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		if err := apply(ctx, uow, conn, version, string(body)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
	}

	return nil
}

func apply(ctx context.Context, uow *database.UnitOfWork, conn database.Connection, version, body string) (err error) {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = uow.Rollback(txCtx)
		}
	}()

	exec := database.ExecutorFromContext(txCtx, conn)
	if _, err = exec.Exec(txCtx, body); err != nil {
		return err
	}

	insert := `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`
	if conn.Driver() == database.DriverPostgres {
		insert = `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`
	}
	if _, err = exec.Exec(txCtx, insert, version, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}

	return uow.Commit(txCtx)
}

func appliedVersions(ctx context.Context, conn database.Connection) (map[string]bool, error) {
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func dirFor(driver database.Driver) (string, error) {
	switch driver {
	case database.DriverSQLite:
		return "sqlite", nil
	case database.DriverPostgres:
		return "postgres", nil
	default:
		return "", fmt.Errorf("no migrations for driver %q", driver)
	}
}
