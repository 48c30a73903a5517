package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arrayforge/arrayforge/pkg/engine"
	"github.com/arrayforge/arrayforge/pkg/policy"
	"github.com/arrayforge/arrayforge/pkg/project"
	"github.com/arrayforge/arrayforge/pkg/stores"
	"github.com/arrayforge/arrayforge/pkg/strategy"
)

func newExecuteCommand() *cobra.Command {
	var (
		full     bool
		outDir   string
		noSave   bool
		warn     bool
		simTitle string
		logFile  string
	)

	cmd := &cobra.Command{
		Use:   "execute <bundle-dir>",
		Short: "Execute scheduled interfaces of a project bundle",
		Long: `Execute scheduled interfaces of a project bundle.

By default the next scheduled interface of the first hub with work
remaining is executed. With --full the whole active simulation is run
to completion. The updated project is saved to a new bundle unless
--no-save is given; when a store is configured the run, its events and
a result snapshot are recorded.`,
		Example: `  # Execute the next scheduled interface
  arrayforge execute ./wave-farm

  # Run the whole simulation and choose the output bundle
  arrayforge execute --full --out ./wave-farm-done ./wave-farm

  # Dry run without saving
  arrayforge execute --full --no-save ./wave-farm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			bundleDir := args[0]
			logger := newLogger()

			if logFile != "" {
				f, err := os.OpenFile(logFile,
					os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("opening log file %s: %w", logFile, err)
				}
				defer f.Close()

				logger = logger.Output(zerolog.MultiLevelWriter(
					zerolog.ConsoleWriter{Out: os.Stderr},
					zerolog.ConsoleWriter{Out: f, NoColor: true},
				))
			}

			cfg, err := loadProjectConfig(ctx)
			if err != nil {
				return err
			}

			tel, err := buildTelemetry(cfg)
			if err != nil {
				return err
			}
			if tel != nil {
				ctx = tel.WithContext(ctx)

				defer func() {
					shutdownCtx, cancel := context.WithTimeout(
						context.Background(), 5*time.Second)
					defer cancel()

					if err := tel.Shutdown(shutdownCtx); err != nil {
						logger.Warn().Err(err).
							Msg("telemetry shutdown failed")
					}
				}()
			}

			core, err := buildCore(cfg, logger)
			if err != nil {
				return err
			}

			gate, err := buildPolicyGate(ctx, cfg, logger)
			if err != nil {
				return err
			}

			store, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			proj, err := core.LoadProject(bundleDir, warn, warn)
			if err != nil {
				return err
			}

			if simTitle != "" {
				if err := proj.SetActiveByTitle(simTitle); err != nil {
					return err
				}
			}

			runID := uuid.NewString()
			strategyName := "step"
			if full {
				strategyName = "basic"
			}

			if store != nil {
				now := time.Now().UTC()
				err := store.CreateRun(ctx, &stores.Run{
					ID:          runID,
					ProjectName: proj.Title(),
					Strategy:    strategyName,
					Status:      stores.RunStatusRunning,
					StartedAt:   now,
					Metadata:    "{}",
					CreatedAt:   now,
					UpdatedAt:   now,
				})
				if err != nil {
					return err
				}
			}

			executed, runErr := runProject(ctx, core, proj, gate, full,
				store, runID, logger)

			if store != nil {
				status := stores.RunStatusCompleted
				var errMsg *string
				if runErr != nil {
					status = stores.RunStatusFailed
					msg := runErr.Error()
					errMsg = &msg
				}

				if err := store.UpdateRunStatus(ctx, runID, status, errMsg); err != nil {
					logger.Warn().Err(err).Msg("recording run status failed")
				}
			}

			if runErr != nil {
				return runErr
			}

			if len(executed) == 0 {
				fmt.Println("Nothing scheduled; bundle is complete.")
				return nil
			}

			saved := ""
			if !noSave {
				saved = outDir
				if saved == "" {
					saved = defaultOutDir(bundleDir)
				}

				if err := core.DumpProject(proj, saved, warn); err != nil {
					return err
				}

				if store != nil {
					if err := recordSnapshot(ctx, store, proj, runID, saved); err != nil {
						logger.Warn().Err(err).Msg("recording snapshot failed")
					}
				}
			}

			if jsonOutput {
				return printJSON(map[string]any{
					"run_id":   runID,
					"executed": executed,
					"saved":    saved,
				})
			}

			for _, name := range executed {
				fmt.Printf("Executed %s\n", name)
			}
			if saved != "" {
				fmt.Printf("Saved bundle %s\n", saved)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "run the active simulation to completion")
	cmd.Flags().StringVar(&outDir, "out", "", "output bundle directory")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not save the updated bundle")
	cmd.Flags().BoolVar(&warn, "warn", false, "warn instead of failing on unreadable stored data")
	cmd.Flags().StringVar(&simTitle, "sim", "", "simulation title to execute")
	cmd.Flags().StringVar(&logFile, "log", "", "also write logs to this file")

	return cmd
}

// runProject performs the requested execution and returns the names of
// the executed interfaces.
func runProject(ctx context.Context, core *project.Core,
	proj *project.Project, gate *policy.Engine, full bool,
	store *stores.SQLiteStore, runID string,
	logger zerolog.Logger) ([]string, error) {

	sim, err := proj.ActiveSimulation()
	if err != nil {
		return nil, err
	}

	if !full {
		opts := project.ExecuteOptions{LogExceptions: false}

		for _, hubID := range sim.HubIDs() {
			connector := project.NewConnector(core, hubID)
			if gate != nil {
				connector.SetPolicyGate(gate)
			}

			name, ok, err := connector.ExecuteNext(ctx, proj, sim, opts)
			if err != nil {
				return nil, err
			}

			if ok {
				recordExecution(ctx, store, runID, hubID, name, logger)
				return []string{name}, nil
			}
		}

		return nil, nil
	}

	before, err := completedByHub(core, sim)
	if err != nil {
		return nil, err
	}

	basic := strategy.NewBasic()
	basic.Gate = gate

	runErr := basic.Execute(ctx, core, proj)

	after, err := completedByHub(core, sim)
	if err != nil {
		return nil, runErr
	}

	var executed []string
	for _, hubID := range sim.HubIDs() {
		seen := make(map[string]bool, len(before[hubID]))
		for _, name := range before[hubID] {
			seen[name] = true
		}

		for _, name := range after[hubID] {
			if !seen[name] {
				executed = append(executed, name)
				recordExecution(ctx, store, runID, hubID, name, logger)
			}
		}
	}

	return executed, runErr
}

// completedByHub lists the completed interface names per hub.
func completedByHub(core *project.Core,
	sim *engine.Simulation) (map[string][]string, error) {

	completed := make(map[string][]string, len(sim.HubIDs()))
	for _, hubID := range sim.HubIDs() {
		names, err := core.Controller().CompletedInterfaces(sim, hubID)
		if err != nil {
			return nil, err
		}
		completed[hubID] = names
	}

	return completed, nil
}

// recordExecution appends an execution event to the store, if any.
func recordExecution(ctx context.Context, store *stores.SQLiteStore,
	runID, hubID, name string, logger zerolog.Logger) {

	if store == nil {
		return
	}

	hub := hubID
	iface := name
	run := runID

	err := store.AppendEvent(ctx, &stores.Event{
		RunID:     &run,
		HubID:     &hub,
		Interface: &iface,
		Level:     stores.EventLevelInfo,
		Message:   "interface executed",
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		logger.Warn().Err(err).Str("interface", name).
			Msg("recording execution event failed")
	}
}

// defaultOutDir derives the save location for an executed bundle.
func defaultOutDir(bundleDir string) string {
	return filepath.Clean(bundleDir) + "_complete"
}

// recordSnapshot stores the saved bundle's manifest as a snapshot tied
// to the run.
func recordSnapshot(ctx context.Context, store *stores.SQLiteStore,
	proj *project.Project, runID, bundleDir string) error {

	manifest, err := os.ReadFile(filepath.Join(bundleDir, project.ManifestName))
	if err != nil {
		return err
	}

	sum := sha256.Sum256(manifest)

	sim, err := proj.ActiveSimulation()
	if err != nil {
		return err
	}

	simTitle := sim.Title()

	return store.CreateSnapshot(ctx, &stores.Snapshot{
		ID:           uuid.NewString(),
		ProjectName:  proj.Title(),
		SimulationID: &simTitle,
		RunID:        &runID,
		Bundle:       string(manifest),
		Hash:         hex.EncodeToString(sum[:]),
		CreatedAt:    time.Now().UTC(),
	})
}
