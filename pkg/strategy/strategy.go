// Package strategy implements the automated execution plans that drive
// a project's hubs without user interaction: the basic run-to-completion
// plan and the sensitivity plan that fans a simulation out over a value
// sequence. Strategies run on the caller's goroutine or on the single
// background worker; the project must not be mutated concurrently.
package strategy

import (
	"context"

	"github.com/arrayforge/arrayforge/pkg/engine"
	"github.com/arrayforge/arrayforge/pkg/policy"
	"github.com/arrayforge/arrayforge/pkg/project"
	"github.com/arrayforge/arrayforge/pkg/telemetry"
)

// Strategy is one automated execution plan over a project.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, core *project.Core,
		proj *project.Project) error
}

// Basic executes every scheduled interface on every hub of the active
// simulation, in hub attachment order, until nothing remains scheduled.
type Basic struct {
	// Options are applied to every interface execution.
	Options project.ExecuteOptions

	// Gate, when set, vets every execution against the policy engine.
	Gate *policy.Engine
}

// NewBasic creates a basic run-to-completion strategy.
func NewBasic() *Basic {
	return &Basic{}
}

// Name returns the strategy name.
func (s *Basic) Name() string {
	return "basic"
}

// Execute runs the active simulation to completion.
func (s *Basic) Execute(ctx context.Context, core *project.Core,
	proj *project.Project) error {

	ctx = telemetry.WithStrategyContext(ctx, s.Name())

	return telemetry.RecordStrategyOperation(ctx, s.Name(), func() error {
		sim, err := proj.ActiveSimulation()
		if err != nil {
			return err
		}

		return runSimulation(ctx, core, proj, sim, s.Options, s.Gate)
	})
}

// runSimulation executes every scheduled interface on every hub of the
// simulation. Force-completed hubs are skipped.
func runSimulation(ctx context.Context, core *project.Core,
	proj *project.Project,
	sim *engine.Simulation,
	opts project.ExecuteOptions,
	gate *policy.Engine) error {

	for _, hubID := range sim.HubIDs() {
		hub, err := sim.GetHub(hubID)
		if err != nil {
			return err
		}

		if hub.ForceCompleted() {
			continue
		}

		connector := project.NewConnector(core, hubID)
		if gate != nil {
			connector.SetPolicyGate(gate)
		}

		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			_, ok, err := connector.ExecuteNext(ctx, proj, sim, opts)
			if err != nil {
				return err
			}

			if !ok {
				break
			}
		}
	}

	return nil
}
