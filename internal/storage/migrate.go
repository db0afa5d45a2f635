package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// schemaVersion is the highest numbered file under migrations/.
const schemaVersion = 1

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrateSchema creates or upgrades the users, accounts, transactions and
// quota tables at dsn and returns the version it left them at. A database
// marked dirty by an interrupted upgrade is refused rather than patched.
func migrateSchema(dsn string) (uint, error) {
	// golang-migrate closes the handle it is given, so it gets its own.
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return 0, fmt.Errorf("open simbank schema: %w", err)
	}
	defer db.Close()

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("simbank schema driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("read embedded simbank migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("prepare simbank migrations: %w", err)
	}
	defer m.Close()

	if v, dirty, err := m.Version(); err == nil && dirty {
		return v, fmt.Errorf("simbank schema is dirty at version %d, fix it by hand and rerun", v)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("upgrade simbank schema: %w", err)
	}

	v, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read simbank schema version: %w", err)
	}
	slog.Debug("SQLite schema ready", "version", v)
	return v, nil
}
