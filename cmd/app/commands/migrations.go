package commands

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies all pending migrations of the consents schema.
// The migration directory is chosen from the driver (postgres or mysql).
// Returns nil when the schema is already up to date.
func RunMigrations(logger *slog.Logger, dbDriver, dbConnectionString string) error {
	logger.Info("running database migrations", slog.String("driver", dbDriver))

	var migrationsPath string
	switch dbDriver {
	case "postgres":
		migrationsPath = "file://migrations/postgresql"
	case "mysql":
		migrationsPath = "file://migrations/mysql"
	default:
		return fmt.Errorf("failed to create migrate instance: unsupported database driver: %s", dbDriver)
	}

	m, err := migrate.New(migrationsPath, migrationURL(dbDriver, dbConnectionString))
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer closeMigrate(m, logger)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("migrations completed successfully")
	return nil
}

// migrationURL turns a go-sql-driver/mysql DSN into the URL migrate expects.
// Postgres connection strings are already URLs.
func migrationURL(dbDriver, dbConnectionString string) string {
	if dbDriver == "mysql" {
		return "mysql://" + dbConnectionString
	}
	return dbConnectionString
}
