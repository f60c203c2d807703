// Package cli is the pomplan command line. Every command except serve and
// strategies opens the saved plan, runs a housekeeping pass, applies its
// change and saves.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"pomplan/internal/app"
)

var (
	flagConfig   string
	flagLogLevel string
	flagJSON     bool
)

// defaultConfig checks POMPLAN_CONFIG first.
func defaultConfig() string {
	if p := os.Getenv("POMPLAN_CONFIG"); p != "" {
		return p
	}
	return "./pomplan.yaml"
}

// NewRootCmd creates the root cobra command for the pomplan CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pomplan",
		Short: "Fit tasks into pomodoro work slots",
		Long: `pomplan lays a work/break cadence over your daily active hours and
assigns tasks to the work slots by deadline and priority.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", defaultConfig(), "Config file, JSON or YAML (or POMPLAN_CONFIG env)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")

	root.AddCommand(
		newServeCmd(),
		newAddCmd(),
		newEditCmd(),
		newRemoveCmd(),
		newWorkedCmd(),
		newViewCmd(),
		newTasksCmd(),
		newNowCmd(),
		newHistoryCmd(),
		newOptimizeCmd(),
		newRescheduleCmd(),
		newStrategiesCmd(),
	)
	return root
}

// withApp opens the plan, brings it up to date and hands it to fn.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	a, err := app.Open(ctx, flagConfig, app.Options{LogLevel: flagLogLevel})
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Housekeep(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}
