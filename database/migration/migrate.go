// Package migration applies versioned SQL migrations to a GORM database with
// golang-migrate. Migration files are read from an fs.FS (usually an
// embed.FS) and follow the VERSION_name.up.sql / VERSION_name.down.sql
// naming.
//
//	//go:embed migrations/*.sql
//	var migrationsFS embed.FS
//
//	err := migration.MigrateUp(db.GormDB, migrationsFS, "migrations", migration.SQLite)
package migration

import (
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

// DriverFunc creates a migrate database driver from sql.DB.
type DriverFunc func(*sql.DB) (database.Driver, error)

// SQLite is the DriverFunc for databases opened with the SQLite dialector.
func SQLite(db *sql.DB) (database.Driver, error) {
	return sqlite3.WithInstance(db, &sqlite3.Config{})
}

// MigrateUp runs all pending migrations. No pending migrations is not an
// error.
func MigrateUp(gormDB *gorm.DB, migrationsFS fs.FS, path string, driverFunc DriverFunc) error {
	m, err := newMigrator(gormDB, migrationsFS, path, driverFunc)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrateDown rolls back every applied migration.
func MigrateDown(gormDB *gorm.DB, migrationsFS fs.FS, path string, driverFunc DriverFunc) error {
	m, err := newMigrator(gormDB, migrationsFS, path, driverFunc)
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// MigrateVersion returns the current migration version and dirty flag.
// A database with no migrations applied reports migrate.ErrNilVersion.
func MigrateVersion(gormDB *gorm.DB, migrationsFS fs.FS, path string, driverFunc DriverFunc) (version uint, dirty bool, err error) {
	m, err := newMigrator(gormDB, migrationsFS, path, driverFunc)
	if err != nil {
		return 0, false, err
	}
	return m.Version()
}

// MigrateSteps applies n migrations forward, or rolls back -n.
func MigrateSteps(gormDB *gorm.DB, migrationsFS fs.FS, path string, n int, driverFunc DriverFunc) error {
	m, err := newMigrator(gormDB, migrationsFS, path, driverFunc)
	if err != nil {
		return err
	}
	if err := m.Steps(n); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrate steps: %w", err)
	}
	return nil
}

// newMigrator builds a migrator over the embedded files. Callers must not
// call m.Close(): it would close the shared sql.DB.
func newMigrator(gormDB *gorm.DB, migrationsFS fs.FS, path string, driverFunc DriverFunc) (*migrate.Migrate, error) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	driver, err := driverFunc(sqlDB)
	if err != nil {
		return nil, fmt.Errorf("create database driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, path)
	if err != nil {
		return nil, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}
