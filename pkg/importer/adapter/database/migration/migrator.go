// Package migration applies the importer schema (jobs, import log, cache and
// records tables) with golang-migrate, using SQL files embedded per dialect.
package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"github.com/tigerroll/surfin-import/pkg/importer/support/util/exception"
	"github.com/tigerroll/surfin-import/pkg/importer/support/util/logger"
)

//go:embed resources/migrations
var migrationsFS embed.FS

// DefaultMigrationsTable is the version table golang-migrate maintains.
const DefaultMigrationsTable = "import_schema_migrations"

const moduleName = "migration"

// Migrator runs the embedded migrations against one connection.
type Migrator struct {
	db      *gorm.DB
	dialect string
	table   string
}

// NewMigrator creates a Migrator for db. The dialect is taken from the gorm dialector.
func NewMigrator(db *gorm.DB) *Migrator {
	return &Migrator{db: db, dialect: db.Dialector.Name(), table: DefaultMigrationsTable}
}

func (m *Migrator) databaseDriver(sqlDB *sql.DB) (database.Driver, error) {
	switch m.dialect {
	case "postgres":
		return postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: m.table})
	case "mysql":
		return mysql.WithInstance(sqlDB, &mysql.Config{MigrationsTable: m.table})
	case "sqlite", "sqlite3":
		return sqlite.WithInstance(sqlDB, &sqlite.Config{MigrationsTable: m.table})
	default:
		return nil, fmt.Errorf("unsupported database type for migration: %s", m.dialect)
	}
}

func (m *Migrator) sourcePath() string {
	if m.dialect == "sqlite3" {
		return "resources/migrations/sqlite"
	}
	return "resources/migrations/" + m.dialect
}

// run builds a migrate instance and hands it to fn. The migrate instance is
// deliberately not closed: its database driver would close the shared *sql.DB.
func (m *Migrator) run(ctx context.Context, command string, fn func(*migrate.Migrate) error) error {
	logger.Infof("Executing migration '%s' (dialect: %s, table: %s)", command, m.dialect, m.table)

	sqlDB, err := m.db.DB()
	if err != nil {
		return exception.NewImportError(moduleName, "failed to get underlying sql.DB", err)
	}
	sourceDriver, err := iofs.New(migrationsFS, m.sourcePath())
	if err != nil {
		return exception.NewImportErrorf(moduleName, "failed to open migrations for %s", m.dialect, err)
	}
	defer sourceDriver.Close()

	dbDriver, err := m.databaseDriver(sqlDB)
	if err != nil {
		return exception.NewImportError(moduleName, "failed to create database driver", err)
	}
	mInstance, err := migrate.NewWithInstance("iofs", sourceDriver, m.dialect, dbDriver)
	if err != nil {
		return exception.NewImportError(moduleName, "failed to create migrate instance", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			mInstance.GracefulStop <- true
		case <-done:
		}
	}()

	if err := fn(mInstance); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return exception.NewImportErrorf(moduleName, "migration '%s' failed (dialect: %s)", command, m.dialect, err)
	}
	logger.Infof("Migration '%s' completed successfully.", command)
	return nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	return m.run(ctx, "up", func(mi *migrate.Migrate) error { return mi.Up() })
}

// Down reverts all migrations.
func (m *Migrator) Down(ctx context.Context) error {
	return m.run(ctx, "down", func(mi *migrate.Migrate) error { return mi.Down() })
}

// Version returns the applied schema version and whether it is dirty.
// ok is false when no migration has been applied yet.
func (m *Migrator) Version(ctx context.Context) (version uint, dirty bool, ok bool, err error) {
	err = m.run(ctx, "version", func(mi *migrate.Migrate) error {
		v, d, verr := mi.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return nil
		}
		if verr != nil {
			return verr
		}
		version, dirty, ok = v, d, true
		return nil
	})
	return version, dirty, ok, err
}
