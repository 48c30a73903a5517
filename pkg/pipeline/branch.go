package pipeline

import (
	"fmt"

	"github.com/arrayforge/arrayforge/pkg/engine"
	"github.com/arrayforge/arrayforge/pkg/project"
)

// Branch is the facade over one sequenced interface: its input and
// output status, its variables and its reset point in the state
// history.
type Branch struct {
	core  *project.Core
	hubID string
	name  string
}

// Name returns the interface display name the branch wraps.
func (b *Branch) Name() string {
	return b.name
}

// HubID returns the hub the interface is sequenced on.
func (b *Branch) HubID() string {
	return b.hubID
}

// InputStatus classifies every active input of the branch's interface.
func (b *Branch) InputStatus(proj *project.Project,
	sim *engine.Simulation) (map[string]engine.Status, error) {

	return b.core.Controller().GetInputStatus(proj.Pool(), sim, b.hubID,
		b.name, nil)
}

// OutputStatus classifies every declared output of the branch's
// interface.
func (b *Branch) OutputStatus(sim *engine.Simulation) (map[string]engine.Status, error) {
	return b.core.Controller().GetOutputStatus(sim, b.hubID, b.name,
		nil, "")
}

// IsCompleted reports whether the branch's interface has completed.
func (b *Branch) IsCompleted(sim *engine.Simulation) (bool, error) {
	return b.core.Controller().IsInterfaceCompleted(sim, b.hubID, b.name)
}

// InputVariable wraps one active input of the branch's interface.
func (b *Branch) InputVariable(proj *project.Project,
	sim *engine.Simulation,
	variableID string) (*InputVariable, error) {

	available, err := b.core.Controller().InputAvailableFor(proj.Pool(),
		sim, b.hubID, b.name, variableID)
	if err != nil {
		return nil, err
	}

	if !available {
		return nil, engine.NewNotFoundError(
			fmt.Sprintf("variable %q is not an active input of "+
				"interface %q", variableID, b.name), nil).
			WithVariable(variableID).
			WithInterface(b.name)
	}

	return &InputVariable{variable: variable{core: b.core, id: variableID}},
		nil
}

// OutputVariable wraps one declared output of the branch's interface.
func (b *Branch) OutputVariable(sim *engine.Simulation,
	variableID string) (*OutputVariable, error) {

	iface, err := b.core.Controller().InterfaceObject(sim, b.hubID, b.name)
	if err != nil {
		return nil, err
	}

	for _, id := range iface.DeclareOutputs() {
		if id == variableID {
			return &OutputVariable{
				variable: variable{core: b.core, id: variableID},
			}, nil
		}
	}

	return nil, engine.NewNotFoundError(
		fmt.Sprintf("variable %q is not an output of interface %q",
			variableID, b.name), nil).
		WithVariable(variableID).
		WithInterface(b.name)
}

// Reset rolls the hub back until the branch's interface is scheduled
// again and removes the states its execution and every later execution
// recorded.
func (b *Branch) Reset(proj *project.Project,
	sim *engine.Simulation) error {

	completed, err := b.IsCompleted(sim)
	if err != nil {
		return err
	}

	if completed {
		hub, err := sim.GetHub(b.hubID)
		if err != nil {
			return err
		}

		className, err := b.core.Controller().InterfaceClassName(sim,
			b.hubID, b.name)
		if err != nil {
			return err
		}

		if err := hub.Rollback(className); err != nil {
			return err
		}
	}

	level := project.OutputLevel(b.name)

	// Mask everything recorded after the branch's level, then the
	// branch's own output states, and drop the lot.
	b.core.Controller().MaskStates(sim, "", level, true)
	b.core.Controller().MaskStates(sim, level, "", true)

	return b.core.Controller().DeleteMaskedStates(proj.Pool(), sim, false)
}
