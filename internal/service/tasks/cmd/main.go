package main

import (
	"fmt"
	"os"

	pkgconfig "leadgen/internal/pkg/config"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

// configFile is set by the persistent --config flag
var configFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates and configures the root command
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tasks-service",
		Short:         "Background task service",
		Long:          `Priority-aware background task manager for the lead generation backend: export, archive purge and analytics jobs with retries, timeouts and an admin API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a config file (default: ./config/config.yaml)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func configOptions() pkgconfig.Options {
	opts := pkgconfig.DefaultOptions()
	opts.ConfigFile = configFile
	return opts
}
