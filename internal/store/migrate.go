package store

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// migrateURL points a postgres URL at the pgx/v5 migrate driver.
func migrateURL(dbURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dbURL, scheme) {
			return "pgx5://" + strings.TrimPrefix(dbURL, scheme)
		}
	}
	return dbURL
}

func newMigrator(dbURL string) (*migrate.Migrate, error) {
	if dbURL == "" {
		return nil, ErrNotConfigured
	}
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(dbURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

// MigrateUp applies every pending migration.
func MigrateUp(dbURL string, logger *zap.Logger) error {
	return runMigration(dbURL, logger, "up", (*migrate.Migrate).Up)
}

// MigrateDown reverts every applied migration.
func MigrateDown(dbURL string, logger *zap.Logger) error {
	return runMigration(dbURL, logger, "down", (*migrate.Migrate).Down)
}

func runMigration(dbURL string, logger *zap.Logger, direction string, step func(*migrate.Migrate) error) error {
	m, err := newMigrator(dbURL)
	if err != nil {
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("Failed to close migration instance.", zap.NamedError("source_error", srcErr), zap.NamedError("db_error", dbErr))
		}
	}()

	logger.Info("Applying migrations.", zap.String("direction", direction))
	if err := step(m); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("Database schema is already current.")
			return nil
		}
		return fmt.Errorf("failed to run migrations %s: %w", direction, err)
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("Database migrated.", zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
