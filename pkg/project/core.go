package project

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/arrayforge/arrayforge/pkg/catalog"
	"github.com/arrayforge/arrayforge/pkg/engine"
)

// Core wires the long-lived collaborators of the system: the data
// catalog, the structure registry, the controller over pools and
// simulations and the sequencer holding the interface registries. One
// Core serves any number of projects.
type Core struct {
	catalog    *catalog.DataCatalog
	structures *catalog.StructureRegistry
	controller *engine.Controller
	sequencer  *engine.Sequencer
	logger     zerolog.Logger

	levelOrder []string
	levels     map[string]bool
}

// NewCore creates a Core with an empty catalog, the builtin structure
// classes and a weight-sorting sequencer.
func NewCore(logger zerolog.Logger) *Core {
	structures := catalog.NewStructureRegistry()
	storage := engine.NewDataStorage(structures, logger)
	sequencer := engine.NewSequencer(true, logger)

	return &Core{
		catalog:    catalog.NewDataCatalog(),
		structures: structures,
		controller: engine.NewController(storage, sequencer, logger),
		sequencer:  sequencer,
		logger:     logger.With().Str("component", "core").Logger(),
		levels:     make(map[string]bool),
	}
}

// Catalog returns the data catalog.
func (c *Core) Catalog() *catalog.DataCatalog {
	return c.catalog
}

// Structures returns the structure registry.
func (c *Core) Structures() *catalog.StructureRegistry {
	return c.structures
}

// Controller returns the simulation controller.
func (c *Core) Controller() *engine.Controller {
	return c.controller
}

// Sequencer returns the interface sequencer.
func (c *Core) Sequencer() *engine.Sequencer {
	return c.sequencer
}

// NewProject creates a project with a single untitled simulation.
func (c *Core) NewProject(title string) (*Project, error) {
	project := newProject(title)

	if err := project.AddSimulation(engine.NewSimulation("")); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("project", title).
		Str("project_id", project.ID()).
		Msg("new project created")

	return project, nil
}

// NewSimulation creates a simulation in the project and makes it
// active.
func (c *Core) NewSimulation(project *Project,
	title string) (*engine.Simulation, error) {

	sim := engine.NewSimulation(title)

	if err := project.AddSimulation(sim); err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("simulation", title).
		Msg("new simulation created")

	return sim, nil
}

// RemoveSimulation releases the simulation's pool links and drops it
// from the project.
func (c *Core) RemoveSimulation(project *Project, index int) error {
	sim, err := project.GetSimulation(index)
	if err != nil {
		return err
	}

	if err := c.controller.RemoveSimulation(project.Pool(), sim); err != nil {
		return err
	}

	return project.RemoveSimulation(index)
}

// RegisterLevel records an output level in first-seen order. It reports
// whether the level was new.
func (c *Core) RegisterLevel(level string) bool {
	if c.levels[level] {
		return false
	}

	c.levels[level] = true
	c.levelOrder = append(c.levelOrder, level)

	return true
}

// HasLevel reports whether a level has been registered.
func (c *Core) HasLevel(level string) bool {
	return c.levels[level]
}

// Levels returns the registered levels in first-seen order.
func (c *Core) Levels() []string {
	out := make([]string, len(c.levelOrder))
	copy(out, c.levelOrder)
	return out
}

// Compact sweeps zero-link entries out of the project pool and returns
// the number removed.
func (c *Core) Compact(project *Project) int {
	swept := project.Pool().Compact()

	if swept > 0 {
		c.logger.Info().
			Int("swept", swept).
			Msg("compacted project pool")
	}

	return swept
}

// IntegrityReport lists the problems found by CheckIntegrity.
type IntegrityReport struct {
	// StaleHandles describes state entries whose handles no longer
	// resolve in the pool.
	StaleHandles []string

	// Orphans are live pool entries with zero links, unreachable from
	// any state.
	Orphans []engine.Handle

	// LinkMismatches describes entries whose recorded link count does
	// not match the number of state references.
	LinkMismatches []string
}

// Ok reports whether the project passed every check.
func (r *IntegrityReport) Ok() bool {
	return len(r.StaleHandles) == 0 &&
		len(r.Orphans) == 0 &&
		len(r.LinkMismatches) == 0
}

// CheckIntegrity cross-checks the project's states against its pool:
// every indexed handle must resolve, every recorded link count must
// match the number of state references and no live entry may be
// unreferenced.
func (c *Core) CheckIntegrity(project *Project) *IntegrityReport {
	report := &IntegrityReport{}
	pool := project.Pool()

	refs := make(map[engine.Handle]int)

	for simIdx, sim := range project.Simulations() {
		states := sim.ActiveStates()
		states = append(states, sim.RedoStates()...)

		for stateIdx, state := range states {
			for id, h := range state.MirrorMap() {
				if h == nil {
					continue
				}

				if _, err := pool.Get(*h); err != nil {
					report.StaleHandles = append(report.StaleHandles,
						fmt.Sprintf("simulation %d state %d variable %q: %s",
							simIdx, stateIdx, id, err))
					continue
				}

				refs[*h]++
			}
		}
	}

	for _, h := range pool.Handles() {
		links, err := pool.Links(h)
		if err != nil {
			continue
		}

		if links == 0 {
			report.Orphans = append(report.Orphans, h)
			continue
		}

		if links != refs[h] {
			report.LinkMismatches = append(report.LinkMismatches,
				fmt.Sprintf("pool entry %s has %d links but %d references",
					h, links, refs[h]))
		}
	}

	return report
}
