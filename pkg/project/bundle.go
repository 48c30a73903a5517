package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/arrayforge/arrayforge/pkg/engine"
)

// ManifestName is the file name of the bundle manifest inside a bundle
// directory.
const ManifestName = "manifest.json"

// HubRecord externalises one hub's sequencing bookkeeping. Interface
// instances are not serialised; they are rebuilt from the registries on
// load.
type HubRecord struct {
	HubID          string   `json:"hub_id"`
	InterfaceType  string   `json:"interface_type"`
	Pipeline       bool     `json:"pipeline"`
	NoComplete     bool     `json:"no_complete"`
	ForceCompleted bool     `json:"force_completed"`
	Scheduled      []string `json:"scheduled"`
	Completed      []string `json:"completed"`
}

// SimulationManifest pairs a simulation's serialised states with its
// hub bookkeeping.
type SimulationManifest struct {
	States *engine.SimulationRecord `json:"states"`
	Hubs   []HubRecord              `json:"hubs"`
}

// Manifest is the root document of a project bundle directory. State
// and pool entry files are referenced by paths relative to the bundle
// root.
type Manifest struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	ActiveIndex int                  `json:"active_index"`
	Levels      []string             `json:"levels,omitempty"`
	Metadata    map[string]any       `json:"metadata,omitempty"`
	Simulations []SimulationManifest `json:"simulations"`
	Pool        *engine.PoolRecord   `json:"pool"`
}

// DumpProject writes the project to a bundle directory: one JSON file
// per state and pool entry plus a manifest tying them together. With
// warnSave set, entries whose values cannot be encoded are logged and
// skipped.
func (c *Core) DumpProject(project *Project, dir string,
	warnSave bool) error {

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return engine.NewInternalError(
			fmt.Sprintf("creating bundle directory %q failed", dir), err)
	}

	manifest := &Manifest{
		ID:          project.ID(),
		Title:       project.Title(),
		ActiveIndex: project.ActiveIndex(),
		Levels:      c.Levels(),
		Metadata:    project.Metadata(),
	}

	for i, sim := range project.Simulations() {
		stateDir := filepath.Join(dir, "states", fmt.Sprintf("sim_%d", i))

		record, err := c.controller.SerialiseStates(sim, stateDir, dir)
		if err != nil {
			return err
		}

		simManifest := SimulationManifest{States: record}

		for _, hubID := range sim.HubIDs() {
			hub, err := sim.GetHub(hubID)
			if err != nil {
				return err
			}

			simManifest.Hubs = append(simManifest.Hubs, HubRecord{
				HubID:          hubID,
				InterfaceType:  hub.InterfaceType(),
				Pipeline:       hub.IsStrict(),
				NoComplete:     hub.NoComplete(),
				ForceCompleted: hub.ForceCompleted(),
				Scheduled:      hub.ScheduledNames(),
				Completed:      hub.CompletedNames(),
			})
		}

		manifest.Simulations = append(manifest.Simulations, simManifest)
	}

	pool, err := c.controller.Store().SerialisePool(project.Pool(),
		filepath.Join(dir, "data"), dir, warnSave)
	if err != nil {
		return err
	}

	manifest.Pool = pool

	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return engine.NewInternalError(
			"encoding the bundle manifest failed", err)
	}

	manifestPath := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(manifestPath, encoded, 0o644); err != nil {
		return engine.NewInternalError(
			fmt.Sprintf("writing bundle manifest %q failed", manifestPath),
			err)
	}

	c.logger.Info().
		Str("project", project.Title()).
		Str("dir", dir).
		Int("simulations", len(manifest.Simulations)).
		Msg("project dumped")

	return nil
}

// LoadProject rebuilds a project from a bundle directory. Pool values
// are rebuilt through their declared structures against the catalog;
// hubs are re-instantiated from the sequencer registries and their
// completion history replayed. With warnLoad set, unreadable entries
// are logged and skipped; with warnMissing set, variables missing from
// the catalog keep their decoded values.
func (c *Core) LoadProject(dir string,
	warnLoad, warnMissing bool) (*Project, error) {

	manifestPath := filepath.Join(dir, ManifestName)

	encoded, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, engine.NewInternalError(
			fmt.Sprintf("reading bundle manifest %q failed", manifestPath),
			err)
	}

	var manifest Manifest
	if err := json.Unmarshal(encoded, &manifest); err != nil {
		return nil, engine.NewValidationError(
			fmt.Sprintf("decoding bundle manifest %q failed", manifestPath),
			err).WithCode(engine.ErrCodeSerialFormat)
	}

	pool, err := c.controller.Store().DeserialisePool(c.catalog,
		manifest.Pool, dir, warnLoad, warnMissing)
	if err != nil {
		return nil, err
	}

	project := newProject(manifest.Title)
	project.pool = pool

	if manifest.ID != "" {
		project.id = manifest.ID
	}

	for key, value := range manifest.Metadata {
		project.metadata[key] = value
	}

	for _, level := range manifest.Levels {
		c.RegisterLevel(level)
	}

	for _, simManifest := range manifest.Simulations {
		sim := engine.NewSimulation("")

		if simManifest.States != nil {
			if err := c.controller.DeserialiseStates(sim,
				simManifest.States, dir); err != nil {
				return nil, err
			}

			sim.SetTitle(simManifest.States.Title)
		}

		for _, hubRecord := range simManifest.Hubs {
			hub, err := c.restoreHub(hubRecord)
			if err != nil {
				return nil, err
			}

			sim.SetHub(hubRecord.HubID, hub)
		}

		if err := project.AddSimulation(sim); err != nil {
			return nil, err
		}

		sim.SetMergedState(c.controller.CreateMergedState(sim, false))
	}

	if manifest.ActiveIndex >= 0 &&
		manifest.ActiveIndex < project.CountSimulations() {
		project.active = manifest.ActiveIndex
	}

	c.logger.Info().
		Str("project", project.Title()).
		Str("dir", dir).
		Int("simulations", project.CountSimulations()).
		Msg("project loaded")

	return project, nil
}

// restoreHub rebuilds a hub from its record: fresh interface instances
// in the original sequence order, then the completion history replayed
// in chronological order.
func (c *Core) restoreHub(record HubRecord) (*engine.Hub, error) {
	var hub *engine.Hub
	var err error

	if record.Pipeline {
		hub, err = c.sequencer.CreateNewPipeline(record.InterfaceType,
			record.NoComplete)
	} else {
		hub, err = c.sequencer.CreateNewHub(record.InterfaceType,
			record.NoComplete)
	}

	if err != nil {
		return nil, err
	}

	registry, err := c.sequencer.Registry(record.InterfaceType)
	if err != nil {
		return nil, err
	}

	sequence := make([]string, 0,
		len(record.Completed)+len(record.Scheduled))
	sequence = append(sequence, record.Completed...)
	sequence = append(sequence, record.Scheduled...)

	for _, className := range sequence {
		iface, err := registry.NewInterface(className)
		if err != nil {
			return nil, engine.NewValidationError(
				fmt.Sprintf("rebuilding interface class %q failed",
					className), err).
				WithInterface(className)
		}

		if err := hub.AddInterface(className, iface); err != nil {
			return nil, err
		}
	}

	for _, className := range record.Completed {
		if err := hub.SetCompleted(className); err != nil {
			return nil, err
		}
	}

	hub.SetForceCompleted(record.ForceCompleted)

	return hub, nil
}
