package main

import (
	"fmt"

	"leadgen/internal/pkg/server"
	"leadgen/internal/service/tasks"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// newServeCmd creates the serve command
func newServeCmd() *cobra.Command {
	var inMemory bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the task manager and admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(inMemory)
		},
	}
	cmd.Flags().BoolVar(&inMemory, "in-memory", false, "run without the archive database")
	return cmd
}

// runServer starts the service and blocks until a shutdown signal
func runServer(inMemory bool) error {
	app := tasks.TasksApp
	if inMemory {
		app = tasks.TasksAppInMemory
	}

	var srv *server.Server
	fxApp := fx.New(
		fx.Supply(configOptions()),
		app,
		fx.NopLogger,
		fx.Populate(&srv),
	)
	if err := fxApp.Err(); err != nil {
		return fmt.Errorf("failed to build task service: %w", err)
	}

	if err := startApp(fxApp, "task service"); err != nil {
		return err
	}

	fmt.Printf("Task service started on http://%s\n", srv.Address())
	<-fxApp.Done()

	return stopApp(fxApp, "task service")
}
