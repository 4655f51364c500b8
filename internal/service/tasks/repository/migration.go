package repository

import (
	"embed"
	"fmt"

	"leadgen/internal/pkg/database"
	"leadgen/internal/pkg/logger"
	"leadgen/internal/pkg/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrate applies fn (migration.Up or migration.Down) to the archive schema
func Migrate(db *database.Database, log *logger.Logger, fn func(migration.Runner) error) error {
	sqlDB, err := db.SQLDB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	return migration.Apply(sqlDB, migrationFiles, "migrations", log, fn)
}
