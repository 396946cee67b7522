package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const logdbMigrationsPath = "migrations/logdb"

//go:embed migrations/logdb/*.sql
var migrationsFS embed.FS

// migrateLogDB applies per-log store migrations. Older store files opened
// for writing are upgraded in place; read-only opens never migrate.
func migrateLogDB(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("store: migrate: nil db")
	}

	sourceDriver, err := iofs.New(migrationsFS, logdbMigrationsPath)
	if err != nil {
		return fmt.Errorf("store: migrate: init source: %w", err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("store: migrate: init db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("store: migrate: init migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migrate: up: %w", err)
	}
	return nil
}
