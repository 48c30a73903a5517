package pipeline

import (
	"context"
	"fmt"

	"github.com/arrayforge/arrayforge/pkg/catalog"
	"github.com/arrayforge/arrayforge/pkg/engine"
	"github.com/arrayforge/arrayforge/pkg/plugins"
	"github.com/arrayforge/arrayforge/pkg/project"
)

// variable is the shared part of input and output variable facades.
type variable struct {
	core *project.Core
	id   string
}

// ID returns the catalog identifier.
func (v *variable) ID() string {
	return v.id
}

// Metadata returns the catalog metadata for the variable.
func (v *variable) Metadata() (*catalog.Metadata, error) {
	return v.core.Catalog().GetMetadata(v.id)
}

// HasValue reports whether the simulation's merged view holds data for
// the variable.
func (v *variable) HasValue(sim *engine.Simulation) bool {
	return v.core.Controller().HasData(sim, v.id)
}

// GetValue reads the variable's current value from the simulation.
func (v *variable) GetValue(proj *project.Project,
	sim *engine.Simulation) (any, error) {

	return v.core.Controller().GetDataValue(proj.Pool(), sim, v.id)
}

// interfacesByKind lists the classes matching a selector across every
// registered interface type, filtered to one kind.
func (v *variable) interfacesByKind(kind plugins.Kind,
	selector func(*plugins.Registry, string) []string) ([]string, error) {

	var classes []string

	for _, interfaceType := range v.core.Sequencer().InterfaceTypes() {
		registry, err := v.core.Sequencer().Registry(interfaceType)
		if err != nil {
			return nil, err
		}

		for _, className := range selector(registry, v.id) {
			prototype, err := registry.Prototype(className)
			if err != nil {
				return nil, err
			}

			if prototype.Kind() == kind {
				classes = append(classes, className)
			}
		}
	}

	return classes, nil
}

// InputVariable wraps one input of a branch for writing.
type InputVariable struct {
	variable
}

// ProvidingInterfaces lists the registered interface classes of the
// given kind which output the variable.
func (v *InputVariable) ProvidingInterfaces(kind plugins.Kind) ([]string, error) {
	return v.interfacesByKind(kind,
		func(r *plugins.Registry, id string) []string {
			return r.ProvidingInterfaces(id)
		})
}

// Set stores a value for the variable in a new unleveled data state.
func (v *InputVariable) Set(proj *project.Project,
	sim *engine.Simulation,
	value any) error {

	return v.core.Controller().AddDatastate(proj.Pool(), sim,
		engine.AddDatastateOptions{
			Catalog: v.core.Catalog(),
			Entries: []engine.DataEntry{
				{Identifier: v.id, Value: value},
			},
		})
}

// Read executes the given interface and stores the value it provides
// for the variable. The interface must declare the variable as an
// output; raw interfaces carry caller-set values, file interfaces read
// their configured path.
func (v *InputVariable) Read(ctx context.Context,
	proj *project.Project,
	sim *engine.Simulation,
	iface plugins.Interface) error {

	if fileIface, ok := iface.(plugins.FileInterface); ok {
		if err := plugins.CheckFilePath(fileIface); err != nil {
			return engine.NewUsageError(
				"file interface has an invalid path", err)
		}
	}

	bag, err := plugins.NewDataBag(iface)
	if err != nil {
		return engine.NewInternalError(
			fmt.Sprintf("preparing data bag for interface %q failed",
				iface.Name()), err)
	}

	if err := iface.Connect(ctx, bag); err != nil {
		return engine.NewInternalError(
			fmt.Sprintf("interface %q failed to connect", iface.Name()),
			err)
	}

	value, err := bag.GetData(v.id)
	if err != nil {
		return engine.NewValidationError(
			fmt.Sprintf("interface %q does not provide variable %q",
				iface.Name(), v.id), err).
			WithVariable(v.id)
	}

	return v.Set(proj, sim, value)
}

// OutputVariable wraps one output of a branch for reading.
type OutputVariable struct {
	variable
}

// ReceivingInterfaces lists the registered interface classes of the
// given kind which take the variable as an input.
func (v *OutputVariable) ReceivingInterfaces(kind plugins.Kind) ([]string, error) {
	return v.interfacesByKind(kind,
		func(r *plugins.Registry, id string) []string {
			return r.ReceivingInterfaces(id)
		})
}
