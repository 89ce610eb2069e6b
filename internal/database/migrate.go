package database

import (
	"embed"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// LatestVersion is the schema version after all embedded migrations.
const LatestVersion = 7

// ErrMigration wraps any failure to bring a database to the latest schema.
var ErrMigration = errors.New("migration failed")

// migrations run on their own connection without foreign key enforcement,
// since table rebuilds drop tables that other tables reference.
func newMigrate(dbPath string) (*migrate.Migrate, error) {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite3://"+abs)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RunMigrations applies every pending up migration to the sqlite file at dbPath.
// A dirty schema or a failing step is reported as ErrMigration.
func RunMigrations(dbPath string) error {
	return MigrateTo(dbPath, LatestVersion)
}

// MigrateTo applies pending up migrations until version is reached.
func MigrateTo(dbPath string, version uint) error {
	m, err := newMigrate(dbPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMigration, err)
	}
	defer m.Close()

	current, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("%w: read version: %v", ErrMigration, err)
	}
	if dirty {
		return fmt.Errorf("%w: schema is dirty at version %d", ErrMigration, current)
	}
	if err == nil && current >= version {
		return nil
	}

	if err := m.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		failed, _, _ := m.Version()
		return fmt.Errorf("%w: at version %d: %v", ErrMigration, failed, err)
	}
	return nil
}

// SchemaVersion reports the applied version; 0 means no migrations ran yet.
func SchemaVersion(dbPath string) (uint, bool, error) {
	m, err := newMigrate(dbPath)
	if err != nil {
		return 0, false, err
	}
	defer m.Close()
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
