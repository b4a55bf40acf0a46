package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"leadfunnel/internal/app"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep [name]",
		Short: "Run one follow-up sweep now and print its report",
		Long: `Run one follow-up sweep now and print its report as JSON.

Examples:
  funnelctl sweep bom-first-reminder
  funnelctl sweep send-zoom-link`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				report, err := a.FollowUp.Run(cmd.Context(), args[0])
				if report != nil {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if encErr := enc.Encode(report); encErr != nil {
						return encErr
					}
				}
				return err
			})
		},
	}
}

func sweepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweeps",
		Short: "List the registered follow-up sweeps",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-22s %-8s %-22s %-18s %s\n", "NAME", "MEETING", "TEMPLATE", "FLAG", "ALIASES")
				for _, s := range a.FollowUp.Sweeps() {
					fmt.Fprintf(out, "%-22s %-8s %-22s %-18s %s\n", s.Name, s.Meeting, s.Template, s.Flag, strings.Join(s.Aliases, ","))
				}
				return nil
			})
		},
	}
}

func cronCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cron",
		Short: "Run the follow-up schedule in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, func(a *app.App) error {
				sched, err := a.Scheduler(ctx)
				if err != nil {
					return err
				}
				sched.Start()
				fmt.Fprintf(cmd.OutOrStdout(), "Follow-up cron running with %d entries\n", sched.Len())
				<-ctx.Done()
				sched.Stop()
				return nil
			})
		},
	}
}
