package pgstore

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies all pending SQL migrations to a PostgreSQL database,
// grounded on dittofs's migrateCmd which drives golang-migrate/migrate/v4
// off an embedded filesystem source rather than a path on disk. SQLite
// deployments rely on gorm.AutoMigrate in Open instead — golang-migrate's
// sqlite3 driver needs cgo, which glebarez/sqlite (our pure-Go SQLite
// driver) deliberately avoids, so migrate is Postgres-only here.
func Migrate(cfg PostgresConfig) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("pgstore: load migration source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.url())
	if err != nil {
		return fmt.Errorf("pgstore: init migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("pgstore: apply migrations: %w", err)
	}
	return nil
}
