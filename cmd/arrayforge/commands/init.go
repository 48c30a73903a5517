package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newInitCommand() *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "init <bundle-dir>",
		Short: "Create a new project bundle",
		Long: `Create a new project bundle from the project configuration.

The configured hubs and pipelines are attached to a fresh simulation and
the empty project is serialised into the bundle directory, ready for
'arrayforge execute'.`,
		Example: `  # Create a bundle from project.cue
  arrayforge init ./wave-farm

  # Override the project title
  arrayforge init --title "North Site Study" ./north-site`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			bundleDir := args[0]
			logger := newLogger()

			cfg, err := loadProjectConfig(ctx)
			if err != nil {
				return err
			}

			if title != "" {
				cfg.Title = title
			}

			core, err := buildCore(cfg, logger)
			if err != nil {
				return err
			}

			proj, err := newProjectFromConfig(core, cfg)
			if err != nil {
				return err
			}

			if err := core.DumpProject(proj, bundleDir, false); err != nil {
				return err
			}

			logger.Info().
				Str("bundle", bundleDir).
				Str("title", proj.Title()).
				Msg("project bundle created")

			if jsonOutput {
				return printJSON(map[string]any{
					"bundle": bundleDir,
					"id":     proj.ID(),
					"title":  proj.Title(),
				})
			}

			fmt.Printf("Created bundle %s (project %q)\n", bundleDir, proj.Title())

			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "project title override")

	return cmd
}
