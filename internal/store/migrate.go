package store

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"shotdeck/internal/config"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// MigrationResult describes a schema upgrade.
type MigrationResult struct {
	From    uint
	To      uint
	Applied bool
}

// Migrate applies every pending migration for the active dialect.
func (s *Store) Migrate(ctx context.Context) (MigrationResult, error) {
	from, dirty, err := s.versionIfPresent(ctx)
	if err != nil {
		return MigrationResult{}, err
	}
	if dirty {
		return MigrationResult{From: from}, fmt.Errorf("schema version %d is dirty; repair it manually before migrating", from)
	}

	m, err := s.migrator()
	if err != nil {
		return MigrationResult{}, err
	}
	// m.Close would close the shared *sql.DB, so the migrator is left for GC.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationResult{From: from}, fmt.Errorf("apply migrations: %w", err)
	}

	to, _, err := s.SchemaVersion(ctx)
	if err != nil {
		return MigrationResult{From: from}, err
	}
	return MigrationResult{From: from, To: to, Applied: to != from}, nil
}

func (s *Store) migrator() (*migrate.Migrate, error) {
	var (
		dir string
		drv database.Driver
		err error
	)
	switch s.driver {
	case config.DriverSQLite:
		dir = "migrations/sqlite"
		drv, err = migratesqlite.WithInstance(s.db.DB, &migratesqlite.Config{})
	case config.DriverPostgres:
		dir = "migrations/postgres"
		drv, err = migratepg.WithInstance(s.db.DB, &migratepg.Config{})
	default:
		return nil, fmt.Errorf("migrate: unsupported driver %q", s.driver)
	}
	if err != nil {
		return nil, fmt.Errorf("migrate driver: %w", err)
	}

	src, err := iofs.New(migrationFiles, dir)
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, s.driver, drv)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return m, nil
}

// versionIfPresent reads the version before the migrations table exists.
func (s *Store) versionIfPresent(ctx context.Context) (uint, bool, error) {
	var exists bool
	var query string
	switch s.driver {
	case config.DriverPostgres:
		query = `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'schema_migrations')`
	default:
		query = `SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'schema_migrations')`
	}
	if err := s.get(ctx, &exists, query); err != nil {
		return 0, false, fmt.Errorf("inspect schema: %w", err)
	}
	if !exists {
		return 0, false, nil
	}
	return s.SchemaVersion(ctx)
}
