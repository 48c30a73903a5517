// Package pipeline is the convenience facade over projects: branches
// name the interfaces sequenced on a simulation's hubs, and variables
// wrap single catalog identifiers for reading and writing without
// touching pools or states directly.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/arrayforge/arrayforge/pkg/engine"
	"github.com/arrayforge/arrayforge/pkg/plugins"
	"github.com/arrayforge/arrayforge/pkg/project"
)

// Tree navigates the branches of a simulation: one branch per
// sequenced interface, across every hub.
type Tree struct {
	core *project.Core
}

// NewTree creates a tree over the given core.
func NewTree(core *project.Core) *Tree {
	return &Tree{core: core}
}

// AvailableBranches lists every sequenced interface name across the
// simulation's hubs, in hub attachment order.
func (t *Tree) AvailableBranches(sim *engine.Simulation) ([]string, error) {
	var names []string

	for _, hubID := range sim.HubIDs() {
		hubNames, err := t.core.Controller().SequencedInterfaces(sim, hubID)
		if err != nil {
			return nil, err
		}

		names = append(names, hubNames...)
	}

	return names, nil
}

// GetBranch finds the branch for the named interface, searching every
// hub of the simulation.
func (t *Tree) GetBranch(sim *engine.Simulation,
	interfaceName string) (*Branch, error) {

	for _, hubID := range sim.HubIDs() {
		has, err := t.core.Controller().HasInterface(sim, hubID,
			interfaceName)
		if err != nil {
			return nil, err
		}

		if has {
			return &Branch{
				core:  t.core,
				hubID: hubID,
				name:  interfaceName,
			}, nil
		}
	}

	return nil, engine.NewNotFoundError(
		fmt.Sprintf("interface %q is not sequenced on any hub",
			interfaceName), nil).
		WithInterface(interfaceName)
}

// ReadRequest pairs a variable with the interface instance that
// provides it.
type ReadRequest struct {
	VariableID string
	Interface  plugins.Interface
}

// Read executes each distinct interface of the requests once and
// records every requested variable it provides in a single new
// unleveled data state. With logExceptions set, variables that fail to
// store are logged and skipped.
func (t *Tree) Read(ctx context.Context,
	proj *project.Project,
	sim *engine.Simulation,
	requests []ReadRequest,
	logExceptions bool) error {

	type group struct {
		iface plugins.Interface
		ids   []string
	}

	var groups []*group
	byInterface := make(map[plugins.Interface]*group)

	for _, request := range requests {
		g, ok := byInterface[request.Interface]
		if !ok {
			g = &group{iface: request.Interface}
			byInterface[request.Interface] = g
			groups = append(groups, g)
		}

		g.ids = append(g.ids, request.VariableID)
	}

	var entries []engine.DataEntry

	for _, g := range groups {
		if fileIface, ok := g.iface.(plugins.FileInterface); ok {
			if err := plugins.CheckFilePath(fileIface); err != nil {
				return engine.NewUsageError(
					"file interface has an invalid path", err)
			}
		}

		bag, err := plugins.NewDataBag(g.iface)
		if err != nil {
			return engine.NewInternalError(
				fmt.Sprintf("preparing data bag for interface %q failed",
					g.iface.Name()), err)
		}

		if err := g.iface.Connect(ctx, bag); err != nil {
			return engine.NewInternalError(
				fmt.Sprintf("interface %q failed to connect",
					g.iface.Name()), err)
		}

		for _, id := range g.ids {
			value, err := bag.GetData(id)
			if err != nil {
				return engine.NewValidationError(
					fmt.Sprintf("interface %q does not provide variable %q",
						g.iface.Name(), id), err).
					WithVariable(id)
			}

			entries = append(entries, engine.DataEntry{
				Identifier: id,
				Value:      value,
			})
		}
	}

	return t.core.Controller().AddDatastate(proj.Pool(), sim,
		engine.AddDatastateOptions{
			Catalog:       t.core.Catalog(),
			Entries:       entries,
			LogExceptions: logExceptions,
		})
}

// ReadAuto stores caller-provided values directly, wrapping them in a
// single raw interface. Keys are catalog identifiers.
func (t *Tree) ReadAuto(ctx context.Context,
	proj *project.Project,
	sim *engine.Simulation,
	values map[string]any,
	logExceptions bool) error {

	ids := make([]string, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	raw := plugins.NewRawInterface("auto raw", ids...)

	if err := raw.SetVariables(values); err != nil {
		return engine.NewUsageError("setting raw variables failed", err)
	}

	requests := make([]ReadRequest, len(ids))
	for i, id := range ids {
		requests[i] = ReadRequest{VariableID: id, Interface: raw}
	}

	return t.Read(ctx, proj, sim, requests, logExceptions)
}
