package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arrayforge/arrayforge/pkg/config"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a CUE project configuration",
		Long: `Validate a CUE project configuration.

This command checks:
  - CUE syntax validity
  - Schema conformance of the project declaration
  - Hub and pipeline declarations
  - Store and policy settings`,
		Example: `  # Validate the default project.cue
  arrayforge validate

  # Validate a specific file or directory
  arrayforge validate ./configs/site.cue`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			path := configPath
			if len(args) > 0 {
				path = args[0]
			}

			parser := config.NewCUEParser()

			parsed, err := parser.Parse(ctx, []string{path})
			if err != nil {
				return fmt.Errorf("parsing %s: %w", path, err)
			}

			if len(parsed.Errors) > 0 {
				if jsonOutput {
					return printJSON(parsed.Errors)
				}

				for _, ve := range parsed.Errors {
					if ve.File != "" {
						fmt.Printf("%s:%d:%d: %s: %s\n", ve.File,
							ve.Line, ve.Column, ve.Severity, ve.Message)
					} else {
						fmt.Printf("%s: %s\n", ve.Severity, ve.Message)
					}
				}

				return fmt.Errorf("%s: %d validation errors", path, len(parsed.Errors))
			}

			cfg := &parsed.Project
			if err := parser.Validate(ctx, cfg); err != nil {
				return fmt.Errorf("validating %s: %w", path, err)
			}

			if jsonOutput {
				return printJSON(cfg)
			}

			fmt.Printf("%s: OK\n", path)
			fmt.Printf("  project: %s\n", cfg.Name)
			for _, hub := range cfg.Hubs {
				fmt.Printf("  %s %q sequences %q interfaces\n",
					hub.Kind, hub.ID, hub.InterfaceType)
			}
			if len(cfg.CatalogDirs) > 0 {
				fmt.Printf("  catalog dirs: %v\n", cfg.CatalogDirs)
			}
			if cfg.Policy != nil && cfg.Policy.Enabled {
				fmt.Printf("  policy: enabled (%d paths)\n", len(cfg.Policy.Paths))
			}

			return nil
		},
	}

	return cmd
}
