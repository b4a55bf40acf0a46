package main

import (
	"context"
	"fmt"
	"os"

	"leadfunnel/internal/app"
	"leadfunnel/internal/config"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "funnelctl",
		Short:        "Operate the lead funnel: sweeps, schedules, templates and data",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(sweepsCmd())
	rootCmd.AddCommand(cronCmd())
	rootCmd.AddCommand(seedTemplatesCmd())
	rootCmd.AddCommand(migrateDataCmd())
	rootCmd.AddCommand(syncSequencesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp loads the environment, builds the app and closes it after fn.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := app.New(ctx, config.LoadConfig())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
