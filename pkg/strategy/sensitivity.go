package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/arrayforge/arrayforge/pkg/config"
	"github.com/arrayforge/arrayforge/pkg/engine"
	"github.com/arrayforge/arrayforge/pkg/policy"
	"github.com/arrayforge/arrayforge/pkg/project"
	"github.com/arrayforge/arrayforge/pkg/telemetry"
)

// Sensitivity varies one catalog variable over a value sequence: the
// active simulation is cloned once per value, the value written into
// the clone and the clone run to completion. Values come from a
// Starlark script that assigns a list to a global named "values".
type Sensitivity struct {
	// VariableID names the catalog variable to vary.
	VariableID string

	// Script is the Starlark source producing the value sequence.
	Script string

	// ScriptTimeout bounds script evaluation. Zero uses the evaluator
	// default.
	ScriptTimeout time.Duration

	// Options are applied to every interface execution.
	Options project.ExecuteOptions

	// Gate, when set, vets every execution against the policy engine.
	Gate *policy.Engine
}

// NewSensitivity creates a sensitivity strategy over one variable.
func NewSensitivity(variableID, script string) *Sensitivity {
	return &Sensitivity{
		VariableID: variableID,
		Script:     script,
	}
}

// Name returns the strategy name.
func (s *Sensitivity) Name() string {
	return "sensitivity"
}

// Values evaluates the script and returns the value sequence.
func (s *Sensitivity) Values(ctx context.Context) ([]any, error) {
	evaluator := config.NewStarlarkEvaluator(s.ScriptTimeout)

	values, err := evaluator.EvaluateValues(ctx, s.Script, map[string]any{
		"variable": s.VariableID,
	})
	if err != nil {
		return nil, engine.NewValidationError(
			fmt.Sprintf("evaluating the value script for variable %q "+
				"failed", s.VariableID), err).
			WithVariable(s.VariableID)
	}

	if len(values) == 0 {
		return nil, engine.NewValidationError(
			"the value script produced an empty sequence", nil).
			WithVariable(s.VariableID)
	}

	return values, nil
}

// Execute fans the active simulation out over the value sequence. Each
// clone is titled "<variable> = <value>" and left in the project; the
// last clone becomes the active simulation.
func (s *Sensitivity) Execute(ctx context.Context, core *project.Core,
	proj *project.Project) error {

	if !core.Catalog().HasVariable(s.VariableID) {
		return engine.NewNotFoundError(
			fmt.Sprintf("variable %q is not contained in the data catalog",
				s.VariableID), nil).
			WithVariable(s.VariableID)
	}

	ctx = telemetry.WithStrategyContext(ctx, s.Name())

	return telemetry.RecordStrategyOperation(ctx, s.Name(), func() error {
		values, err := s.Values(ctx)
		if err != nil {
			return err
		}

		baseSim, err := proj.ActiveSimulation()
		if err != nil {
			return err
		}

		for _, value := range values {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := s.runValue(ctx, core, proj, baseSim, value); err != nil {
				return err
			}
		}

		return nil
	})
}

// runValue clones the base simulation, seeds the varied value and runs
// the clone to completion.
func (s *Sensitivity) runValue(ctx context.Context, core *project.Core,
	proj *project.Project,
	baseSim *engine.Simulation,
	value any) error {

	title := fmt.Sprintf("%s = %v", s.VariableID, value)

	clone, err := core.Controller().CopySimulation(proj.Pool(), baseSim,
		engine.CopySimulationOptions{ForceTitle: title})
	if err != nil {
		return err
	}

	if err := proj.AddSimulation(clone); err != nil {
		return err
	}

	err = core.Controller().AddDatastate(proj.Pool(), clone,
		engine.AddDatastateOptions{
			Catalog: core.Catalog(),
			Entries: []engine.DataEntry{
				{Identifier: s.VariableID, Value: value},
			},
		})
	if err != nil {
		return err
	}

	return runSimulation(ctx, core, proj, clone, s.Options, s.Gate)
}
