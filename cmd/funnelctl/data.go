package main

import (
	"fmt"

	"leadfunnel/internal/app"
	"leadfunnel/internal/config"
	"leadfunnel/internal/database"

	"github.com/spf13/cobra"
)

func seedTemplatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-templates [file]",
		Short: "Upsert the templates of a YAML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				n, err := a.Catalog.SeedFile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d templates\n", n)
				return nil
			})
		},
	}
}

func migrateDataCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "migrate-data",
		Short: "Copy every funnel table from a SQLite file into the configured database",
		Long: `Copy every funnel table from a SQLite file into the configured database.

Primary keys are kept and rows that already exist are skipped, so the
command can be rerun. Run sync-sequences afterwards on PostgreSQL.

Examples:
  DB_DRIVER=postgres funnelctl migrate-data --from ./leadfunnel.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			src, err := database.Open(&config.Config{DBDriver: "sqlite", DBPath: from, DBLogLevel: cfg.DBLogLevel})
			if err != nil {
				return fmt.Errorf("open source: %w", err)
			}
			dst, err := database.Open(cfg)
			if err != nil {
				return fmt.Errorf("open destination: %w", err)
			}
			counts, err := database.CopyAll(src, dst)
			for _, table := range database.Tables {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %d\n", table, counts[table])
			}
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "./leadfunnel.db", "source SQLite database")
	return cmd
}

func syncSequencesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-sequences",
		Short: "Move PostgreSQL id sequences past the highest migrated id",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(config.LoadConfig())
			if err != nil {
				return err
			}
			return database.SyncSequences(db)
		},
	}
}
