package db

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsTable = "enms_schema_migrations"

// Migrator applies the embedded SQL migrations to a PostgreSQL database.
type Migrator struct {
	m *migrate.Migrate
}

// withMigrationsTable points golang-migrate at its own bookkeeping table.
func withMigrationsTable(url string) string {
	if strings.Contains(url, "?") {
		return url + "&x-migrations-table=" + migrationsTable
	}
	return url + "?x-migrations-table=" + migrationsTable
}

// NewMigrator opens a migrator on url.
func NewMigrator(url string) (*Migrator, error) {
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to get embedded migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to create iofs driver: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, withMigrationsTable(url))
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &Migrator{m: m}, nil
}

// Up applies all pending migrations. It reports whether anything ran.
func (m *Migrator) Up() (bool, error) {
	if err := m.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, fmt.Errorf("migration failed: %w", err)
	}
	return true, nil
}

// Down rolls back steps migrations.
func (m *Migrator) Down(steps int) error {
	if err := m.m.Steps(-steps); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}

// Version returns the applied version; 0 when none was applied.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (m *Migrator) Close() error {
	sourceErr, dbErr := m.m.Close()
	if sourceErr != nil {
		return sourceErr
	}
	return dbErr
}

// MigrationFiles lists the embedded up migrations in order.
func MigrationFiles() ([]string, error) {
	entries, err := fs.ReadDir(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
