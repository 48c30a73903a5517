// Package project ties the simulation core together: a Project owns the
// shared data pool and an ordered set of simulations, the Core provides
// the catalog, structure registry and controller they run against, and
// Connectors drive policy-gated interface execution per hub.
package project

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/arrayforge/arrayforge/pkg/engine"
)

// Project owns one data pool shared by an ordered list of simulations.
// One simulation is active at a time; facade layers operate on the
// active simulation unless told otherwise.
type Project struct {
	id       string
	title    string
	pool     *engine.DataPool
	sims     []*engine.Simulation
	active   int
	metadata map[string]any
}

// newProject is only called by the Core so that every project starts
// with a pool and a registered identity.
func newProject(title string) *Project {
	return &Project{
		id:       uuid.NewString(),
		title:    title,
		pool:     engine.NewDataPool(),
		active:   -1,
		metadata: make(map[string]any),
	}
}

// ID returns the project's unique identifier.
func (p *Project) ID() string {
	return p.id
}

// Title returns the project title.
func (p *Project) Title() string {
	return p.title
}

// SetTitle replaces the project title.
func (p *Project) SetTitle(title string) {
	p.title = title
}

// Pool returns the shared data pool.
func (p *Project) Pool() *engine.DataPool {
	return p.pool
}

// Metadata returns the free-form project metadata, keyed by name. The
// map is live; writes are visible to policy evaluation.
func (p *Project) Metadata() map[string]any {
	return p.metadata
}

// SetMetadata stores one metadata entry.
func (p *Project) SetMetadata(key string, value any) {
	p.metadata[key] = value
}

// AddSimulation appends a simulation and makes it active. Titled
// simulations must be unique by title within the project.
func (p *Project) AddSimulation(sim *engine.Simulation) error {
	title := sim.Title()

	if title != "" {
		for _, existing := range p.sims {
			if existing.Title() == title {
				return engine.NewUsageError(
					fmt.Sprintf("a simulation with title %q already exists",
						title), nil)
			}
		}
	}

	p.sims = append(p.sims, sim)
	p.active = len(p.sims) - 1

	return nil
}

// CountSimulations returns the number of simulations.
func (p *Project) CountSimulations() int {
	return len(p.sims)
}

// GetSimulation returns the simulation at the given index.
func (p *Project) GetSimulation(index int) (*engine.Simulation, error) {
	if index < 0 || index >= len(p.sims) {
		return nil, engine.NewNotFoundError(
			fmt.Sprintf("no simulation at index %d", index), nil)
	}

	return p.sims[index], nil
}

// GetSimulationByTitle returns the first simulation with the given
// title.
func (p *Project) GetSimulationByTitle(title string) (*engine.Simulation, error) {
	for _, sim := range p.sims {
		if sim.Title() == title {
			return sim, nil
		}
	}

	return nil, engine.NewNotFoundError(
		fmt.Sprintf("no simulation titled %q", title), nil)
}

// SimulationTitles returns every simulation title in order. Untitled
// simulations contribute an empty string.
func (p *Project) SimulationTitles() []string {
	titles := make([]string, len(p.sims))
	for i, sim := range p.sims {
		titles[i] = sim.Title()
	}

	return titles
}

// ActiveIndex returns the index of the active simulation, or -1 when
// the project holds none.
func (p *Project) ActiveIndex() int {
	return p.active
}

// ActiveSimulation returns the active simulation.
func (p *Project) ActiveSimulation() (*engine.Simulation, error) {
	if p.active < 0 || p.active >= len(p.sims) {
		return nil, engine.NewUsageError(
			"the project has no active simulation", nil)
	}

	return p.sims[p.active], nil
}

// SetActiveIndex makes the simulation at the given index active.
func (p *Project) SetActiveIndex(index int) error {
	if index < 0 || index >= len(p.sims) {
		return engine.NewNotFoundError(
			fmt.Sprintf("no simulation at index %d", index), nil)
	}

	p.active = index

	return nil
}

// SetActiveByTitle makes the first simulation with the given title
// active.
func (p *Project) SetActiveByTitle(title string) error {
	for i, sim := range p.sims {
		if sim.Title() == title {
			p.active = i
			return nil
		}
	}

	return engine.NewNotFoundError(
		fmt.Sprintf("no simulation titled %q", title), nil)
}

// RemoveSimulation drops the simulation at the given index from the
// project. The caller is responsible for releasing its pool links
// first, normally through Core.RemoveSimulation.
func (p *Project) RemoveSimulation(index int) error {
	if index < 0 || index >= len(p.sims) {
		return engine.NewNotFoundError(
			fmt.Sprintf("no simulation at index %d", index), nil)
	}

	p.sims = append(p.sims[:index], p.sims[index+1:]...)

	switch {
	case len(p.sims) == 0:
		p.active = -1
	case p.active >= len(p.sims):
		p.active = len(p.sims) - 1
	case p.active > index:
		p.active--
	}

	return nil
}

// Simulations returns the simulations in order. The slice is a copy;
// the simulations are not.
func (p *Project) Simulations() []*engine.Simulation {
	out := make([]*engine.Simulation, len(p.sims))
	copy(out, p.sims)
	return out
}
