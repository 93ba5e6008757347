package repository

import (
	"errors"
	"fmt"

	migratev4 "github.com/golang-migrate/migrate/v4"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies every pending migration under migrationsPath
// ("file://..." source) to db. ErrNoChange is treated as success.
func RunMigrations(db *DB, migrationsPath string) error {
	driver, err := migratepostgres.WithInstance(db.DB, &migratepostgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres migrate driver: %w", err)
	}

	m, err := migratev4.NewWithDatabaseInstance(migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migratev4.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
