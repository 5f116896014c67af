package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const migrationsDir = "migrations"

// MigrationState is one row of `kkctl migrate status`
type MigrationState struct {
	Version int64
	Source  string
	Applied bool
}

func newMigrationProvider(db *sql.DB) (*goose.Provider, error) {
	migrations, err := fs.Sub(embedMigrations, migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider, nil
}

// RunMigrations applies all pending migrations of the catalog schema
func RunMigrations(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	provider, err := newMigrationProvider(db)
	if err != nil {
		return err
	}

	logger.Info("Checking for pending migrations...")

	results, err := provider.Up(ctx)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, result := range results {
		logger.Info("Applied migration",
			zap.String("source", result.Source.Path),
			zap.Duration("duration", result.Duration),
		)
	}
	logger.Info("Migrations completed successfully", zap.Int("applied", len(results)))
	return nil
}

// RollbackMigration reverts the most recently applied migration
func RollbackMigration(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	provider, err := newMigrationProvider(db)
	if err != nil {
		return err
	}

	result, err := provider.Down(ctx)
	if err != nil {
		logger.Error("Failed to roll back migration", zap.Error(err))
		return fmt.Errorf("failed to roll back migration: %w", err)
	}

	logger.Info("Rolled back migration", zap.String("source", result.Source.Path))
	return nil
}

// MigrationStatus lists every embedded migration in version order
func MigrationStatus(ctx context.Context, db *sql.DB) ([]MigrationState, error) {
	provider, err := newMigrationProvider(db)
	if err != nil {
		return nil, err
	}

	statuses, err := provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration status: %w", err)
	}

	states := make([]MigrationState, 0, len(statuses))
	for _, status := range statuses {
		states = append(states, MigrationState{
			Version: status.Source.Version,
			Source:  status.Source.Path,
			Applied: status.State == goose.StateApplied,
		})
	}
	return states, nil
}
