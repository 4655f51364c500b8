package main

import (
	"fmt"

	"leadgen/internal/pkg/database"
	"leadgen/internal/pkg/logger"
	"leadgen/internal/pkg/migration"
	"leadgen/internal/service/tasks"
	"leadgen/internal/service/tasks/repository"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// newMigrateCmd creates the migrate command with up and down subcommands
func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the task archive schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations("up", migration.Up)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations("down", migration.Down)
		},
	})
	return cmd
}

func runMigrations(direction string, fn func(migration.Runner) error) error {
	var log *logger.Logger
	var db *database.Database

	app := fx.New(
		fx.Supply(configOptions()),
		tasks.MigrationApp,
		fx.NopLogger,
		fx.Populate(&log, &db),
	)
	if err := app.Err(); err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	if err := startApp(app, "migration"); err != nil {
		return err
	}

	if err := repository.Migrate(db, log, fn); err != nil {
		_ = stopApp(app, "migration")
		return fmt.Errorf("failed to run migrations %s: %w", direction, err)
	}

	fmt.Printf("Task archive migrations %s completed\n", direction)
	return stopApp(app, "migration")
}
