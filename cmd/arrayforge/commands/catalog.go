package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arrayforge/arrayforge/pkg/catalog"
)

func newCatalogCommand() *cobra.Command {
	var (
		group string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the variable catalog",
		Long: `List every variable the configured project can carry.

The catalog combines the built-in demo variable definitions with any
YAML definition documents found in the configured catalog directories.`,
		Example: `  # List all variables
  arrayforge catalog

  # List the variables of one group
  arrayforge catalog --group farm`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := newLogger()

			cfg, err := loadProjectConfig(ctx)
			if err != nil {
				return err
			}

			core, err := buildCore(cfg, logger)
			if err != nil {
				return err
			}

			cat := core.Catalog()

			identifiers := cat.VariableIdentifiers()
			if group != "" {
				identifiers = cat.FilterByGroup(group)
			}

			if jsonOutput {
				entries := make([]any, 0, len(identifiers))
				for _, id := range identifiers {
					meta, err := cat.GetMetadata(id)
					if err != nil {
						return err
					}
					entries = append(entries, meta)
				}
				return printJSON(entries)
			}

			for _, id := range identifiers {
				meta, err := cat.GetMetadata(id)
				if err != nil {
					return err
				}

				line := fmt.Sprintf("%-30s %-12s %s", id, meta.Structure, meta.Title)
				if len(meta.Units) > 0 {
					line += fmt.Sprintf(" [%s]", meta.Units[0])
				}
				fmt.Println(line)
			}

			fmt.Printf("\n%d variables\n", len(identifiers))

			if watch {
				if len(cfg.CatalogDirs) == 0 {
					return fmt.Errorf("no catalog directories configured to watch")
				}

				loader, err := catalog.NewLoader()
				if err != nil {
					return err
				}

				watcher := catalog.NewWatcher(logger, loader)
				err = watcher.Watch(ctx, cfg.CatalogDirs, func(rebuilt *catalog.DataCatalog) error {
					fmt.Printf("catalog reloaded: %d variables\n", rebuilt.Len())
					return nil
				})
				if err != nil {
					return err
				}
				defer watcher.Stop()

				fmt.Println("watching catalog directories; press Ctrl-C to stop")
				<-ctx.Done()
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", "", "only list variables of this group")
	cmd.Flags().BoolVar(&watch, "watch", false,
		"watch the catalog directories and report reloads until interrupted")

	return cmd
}
