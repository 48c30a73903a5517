package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/arrayforge/arrayforge/pkg/engine"
)

// hubStatus is the per-hub slice of a status report.
type hubStatus struct {
	HubID     string                   `json:"hub_id"`
	Scheduled []string                 `json:"scheduled"`
	Completed []string                 `json:"completed"`
	Next      string                   `json:"next,omitempty"`
	Inputs    map[string]engine.Status `json:"inputs,omitempty"`
}

// statusReport is the full report for one bundle.
type statusReport struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Simulation string      `json:"simulation"`
	LastLevel  string      `json:"last_level,omitempty"`
	Hubs       []hubStatus `json:"hubs"`
}

func newStatusCommand() *cobra.Command {
	var warn bool

	cmd := &cobra.Command{
		Use:   "status <bundle-dir>",
		Short: "Report the execution status of a project bundle",
		Long: `Report the execution status of a project bundle.

For every hub of the active simulation the report lists the completed
and scheduled interfaces, the next interface due, and the input status
of that interface's declared variables.`,
		Example: `  # Report on a bundle
  arrayforge status ./wave-farm

  # Machine-readable report
  arrayforge status --json ./wave-farm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			bundleDir := args[0]
			logger := newLogger()

			cfg, err := loadProjectConfig(ctx)
			if err != nil {
				return err
			}

			core, err := buildCore(cfg, logger)
			if err != nil {
				return err
			}

			proj, err := core.LoadProject(bundleDir, warn, warn)
			if err != nil {
				return err
			}

			sim, err := proj.ActiveSimulation()
			if err != nil {
				return err
			}

			report := statusReport{
				ID:         proj.ID(),
				Title:      proj.Title(),
				Simulation: sim.Title(),
			}
			if level, ok := sim.LastLevel(false, false); ok {
				report.LastLevel = level
			}

			controller := core.Controller()

			for _, hubID := range sim.HubIDs() {
				hs := hubStatus{HubID: hubID}

				hs.Scheduled, err = controller.ScheduledInterfaces(sim, hubID)
				if err != nil {
					return err
				}

				hs.Completed, err = controller.CompletedInterfaces(sim, hubID)
				if err != nil {
					return err
				}

				next, ok, err := controller.NextInterface(sim, hubID)
				if err != nil {
					return err
				}

				if ok {
					hs.Next = next
					hs.Inputs, err = controller.GetInputStatus(proj.Pool(),
						sim, hubID, next, nil)
					if err != nil {
						return err
					}
				}

				report.Hubs = append(report.Hubs, hs)
			}

			if jsonOutput {
				return printJSON(report)
			}

			fmt.Printf("Project %q (%s)\n", report.Title, report.ID)
			fmt.Printf("Simulation %q", report.Simulation)
			if report.LastLevel != "" {
				fmt.Printf(", last level %q", report.LastLevel)
			}
			fmt.Println()

			for _, hs := range report.Hubs {
				fmt.Printf("\nHub %s: %d completed, %d scheduled\n",
					hs.HubID, len(hs.Completed), len(hs.Scheduled))

				for _, name := range hs.Completed {
					fmt.Printf("  [done] %s\n", name)
				}
				for _, name := range hs.Scheduled {
					marker := "      "
					if name == hs.Next {
						marker = "[next]"
					}
					fmt.Printf("  %s %s\n", marker, name)
				}

				if hs.Next != "" {
					ids := make([]string, 0, len(hs.Inputs))
					for id := range hs.Inputs {
						ids = append(ids, id)
					}
					sort.Strings(ids)

					for _, id := range ids {
						fmt.Printf("    input %-30s %s\n", id, hs.Inputs[id])
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&warn, "warn", false, "warn instead of failing on unreadable stored data")

	return cmd
}
