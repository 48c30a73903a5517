package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "arrayforge",
		Short: "ArrayForge - Renewable Energy Array Design Engine",
		Long: `ArrayForge orchestrates design tools for offshore renewable energy
arrays. Projects declare their module and theme pipelines in CUE; the
engine sequences the registered design interfaces, records every data
state they produce, and serialises the result as a project bundle.

Features:
  - Typed project configs via CUE
  - Variable catalogs loaded from YAML definition documents
  - Weighted module pipelines and assessment theme hubs
  - Undoable data states with full provenance
  - Policy enforcement via OPA/rego
  - Run history and snapshots in SQLite`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "project.cue", "project config file or directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newCatalogCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newExecuteCommand())
	rootCmd.AddCommand(newRunsCommand())

	return rootCmd
}
