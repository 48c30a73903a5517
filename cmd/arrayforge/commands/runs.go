package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRunsCommand() *cobra.Command {
	var (
		limit  int
		events string
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded execution runs",
		Long: `List the execution runs recorded in the configured store.

With --events the event log of one run is printed instead.`,
		Example: `  # List the most recent runs
  arrayforge runs

  # Show the events of one run
  arrayforge runs --events 4f7c2d1e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadProjectConfig(ctx)
			if err != nil {
				return err
			}

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("no store configured for project %s", cfg.Name)
			}
			defer store.Close()

			if events != "" {
				runID := events
				list, err := store.GetEvents(ctx, &runID, nil, nil, limit, 0)
				if err != nil {
					return err
				}

				if jsonOutput {
					return printJSON(list)
				}

				for _, ev := range list {
					iface := ""
					if ev.Interface != nil {
						iface = " " + *ev.Interface
					}
					fmt.Printf("%s %-7s%s %s\n",
						ev.Timestamp.Format("2006-01-02 15:04:05"),
						ev.Level, iface, ev.Message)
				}

				return nil
			}

			runs, err := store.ListRuns(ctx, limit, 0)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(runs)
			}

			for _, run := range runs {
				fmt.Printf("%s %-9s %-12s %s %s\n", run.ID,
					run.Status, run.Strategy, run.ProjectName,
					run.StartedAt.Format("2006-01-02 15:04:05"))
				if run.Error != nil {
					fmt.Printf("  error: %s\n", *run.Error)
				}
			}

			fmt.Printf("\n%d runs\n", len(runs))

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to list")
	cmd.Flags().StringVar(&events, "events", "", "print the events of this run id")

	return cmd
}
