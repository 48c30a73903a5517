package project

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/arrayforge/arrayforge/pkg/engine"
	"github.com/arrayforge/arrayforge/pkg/policy"
	"github.com/arrayforge/arrayforge/pkg/telemetry"
)

// OutputLevel returns the level an interface's outputs are recorded at:
// the interface name, lower-cased. Masking "after" this level
// reconstructs the simulation as it stood when the interface finished.
func OutputLevel(interfaceName string) string {
	return strings.ToLower(interfaceName)
}

// ExecuteOptions controls one interface execution.
type ExecuteOptions struct {
	// SkipVars names inputs to load as nil even when data exists.
	SkipVars []string

	// LogExceptions logs and skips outputs that fail to store instead
	// of failing the execution.
	LogExceptions bool

	// NoComplete leaves the interface scheduled after execution.
	NoComplete bool
}

// Connector drives interface execution for one hub of a project. Every
// execution loads the interface's inputs, passes the policy gate when
// one is attached, runs Connect and records the outputs in a new data
// state at the interface's output level.
type Connector struct {
	core   *Core
	hubID  string
	gate   *policy.Engine
	logger zerolog.Logger
}

// NewConnector creates a connector for the named hub.
func NewConnector(core *Core, hubID string) *Connector {
	return &Connector{
		core:  core,
		hubID: hubID,
		logger: core.logger.With().
			Str("component", "connector").
			Str("hub", hubID).
			Logger(),
	}
}

// HubID returns the hub the connector drives.
func (c *Connector) HubID() string {
	return c.hubID
}

// SetPolicyGate attaches a policy engine evaluated before every
// execution. A nil engine detaches the gate.
func (c *Connector) SetPolicyGate(gate *policy.Engine) {
	c.gate = gate
}

// AvailableInterfaces lists every interface name registered for the
// hub's type.
func (c *Connector) AvailableInterfaces(sim *engine.Simulation) ([]string, error) {
	return c.core.controller.AvailableInterfaces(sim, c.hubID)
}

// ScheduledInterfaces lists the hub's scheduled interface names.
func (c *Connector) ScheduledInterfaces(sim *engine.Simulation) ([]string, error) {
	return c.core.controller.ScheduledInterfaces(sim, c.hubID)
}

// CompletedInterfaces lists the hub's completed interface names.
func (c *Connector) CompletedInterfaces(sim *engine.Simulation) ([]string, error) {
	return c.core.controller.CompletedInterfaces(sim, c.hubID)
}

// SequenceInterface schedules the named interface on the hub.
func (c *Connector) SequenceInterface(sim *engine.Simulation,
	interfaceName string) error {

	return c.core.controller.SequenceInterface(sim, c.hubID, interfaceName)
}

// NextInterface returns the next scheduled interface name.
func (c *Connector) NextInterface(sim *engine.Simulation) (string, bool, error) {
	return c.core.controller.NextInterface(sim, c.hubID)
}

// IsCompleted reports whether the named interface has completed.
func (c *Connector) IsCompleted(sim *engine.Simulation,
	interfaceName string) (bool, error) {

	return c.core.controller.IsInterfaceCompleted(sim, c.hubID, interfaceName)
}

// ForceComplete marks the whole hub as notionally completed without
// executing anything. Downstream hubs see its interfaces as done;
// their inputs read whatever data currently exists.
func (c *Connector) ForceComplete(sim *engine.Simulation) error {
	hub, err := sim.GetHub(c.hubID)
	if err != nil {
		return err
	}

	hub.SetForceCompleted(true)

	c.logger.Info().Msg("hub force-completed")

	return nil
}

// IsForceCompleted reports whether the hub has been fast-forwarded.
func (c *Connector) IsForceCompleted(sim *engine.Simulation) (bool, error) {
	hub, err := sim.GetHub(c.hubID)
	if err != nil {
		return false, err
	}

	return hub.ForceCompleted(), nil
}

// Reset undoes every completion on the hub and clears its
// force-completed flag.
func (c *Connector) Reset(sim *engine.Simulation) error {
	return c.core.controller.ResetHub(sim, c.hubID)
}

// UnsatisfiedInputs returns the required inputs of the named interface
// which currently hold no data, sorted.
func (c *Connector) UnsatisfiedInputs(project *Project,
	sim *engine.Simulation,
	interfaceName string) ([]string, error) {

	status, err := c.core.controller.GetInputStatus(project.Pool(), sim,
		c.hubID, interfaceName, nil)
	if err != nil {
		return nil, err
	}

	unsatisfied := []string{}

	for inputID, s := range status {
		if s == engine.StatusRequired {
			unsatisfied = append(unsatisfied, inputID)
		}
	}

	sort.Strings(unsatisfied)

	return unsatisfied, nil
}

// CanExecute reports whether the named interface is ready to run: not
// yet completed, hub not fast-forwarded and every required input
// satisfied.
func (c *Connector) CanExecute(project *Project,
	sim *engine.Simulation,
	interfaceName string) (bool, error) {

	hub, err := sim.GetHub(c.hubID)
	if err != nil {
		return false, err
	}

	if hub.ForceCompleted() {
		return false, nil
	}

	completed, err := c.IsCompleted(sim, interfaceName)
	if err != nil {
		return false, err
	}

	if completed {
		return false, nil
	}

	return c.core.controller.CanLoadInterface(project.Pool(), sim,
		c.hubID, interfaceName)
}

// ExecuteInterface runs the named interface: inputs are loaded into a
// data bag, the policy gate is consulted, Connect is called and the
// declared outputs are recorded in a new data state at the interface's
// output level. Unless NoComplete is set the interface is then marked
// completed.
func (c *Connector) ExecuteInterface(ctx context.Context,
	project *Project,
	sim *engine.Simulation,
	interfaceName string,
	opts ExecuteOptions) error {

	hub, err := sim.GetHub(c.hubID)
	if err != nil {
		return err
	}

	if hub.ForceCompleted() {
		return engine.NewUsageError(
			fmt.Sprintf("hub %q has been force-completed", c.hubID), nil).
			WithInterface(interfaceName)
	}

	className, err := c.core.controller.InterfaceClassName(sim, c.hubID,
		interfaceName)
	if err != nil {
		return err
	}

	ctx = telemetry.WithInterfaceContext(ctx, sim.Title(), c.hubID,
		interfaceName, className)

	execErr := c.executeInterface(ctx, project, sim, hub, interfaceName,
		className, opts)

	status := "succeeded"
	if execErr != nil {
		status = "failed"
	}

	telemetry.EndInterfaceContext(ctx, sim.Title(), c.hubID, interfaceName,
		hub.InterfaceType(), status, execErr)

	return execErr
}

func (c *Connector) executeInterface(ctx context.Context,
	project *Project,
	sim *engine.Simulation,
	hub *engine.Hub,
	interfaceName, className string,
	opts ExecuteOptions) error {

	if c.gate != nil {
		if err := c.checkPolicy(ctx, project, sim, interfaceName); err != nil {
			return err
		}
	}

	pool := project.Pool()

	bag, err := c.core.controller.LoadHubInterface(pool, sim, c.hubID,
		interfaceName, opts.SkipVars)
	if err != nil {
		return err
	}

	iface, err := hub.GetInterface(className)
	if err != nil {
		return err
	}

	c.logger.Info().
		Str("interface", interfaceName).
		Msg("executing interface")

	if err := iface.Connect(ctx, bag); err != nil {
		return engine.NewInternalError(
			fmt.Sprintf("interface %q failed to connect", interfaceName),
			err).WithInterface(interfaceName)
	}

	outputs := iface.DeclareOutputs()
	entries := make([]engine.DataEntry, 0, len(outputs))

	for _, outputID := range outputs {
		value, err := bag.GetData(outputID)
		if err != nil {
			return engine.NewInternalError(
				fmt.Sprintf("reading output %q of interface %q failed",
					outputID, interfaceName), err).
				WithVariable(outputID).
				WithInterface(interfaceName)
		}

		entries = append(entries, engine.DataEntry{
			Identifier: outputID,
			Value:      value,
		})
	}

	level := OutputLevel(interfaceName)

	err = c.core.controller.AddDatastate(pool, sim, engine.AddDatastateOptions{
		Level:         level,
		Catalog:       c.core.catalog,
		Entries:       entries,
		LogExceptions: opts.LogExceptions,
	})
	if err != nil {
		return err
	}

	c.core.RegisterLevel(level)

	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		tel.Metrics.RecordDatastateStored(level)
		tel.Metrics.SetPoolEntries(project.Title(), float64(pool.Count()))
	}

	if opts.NoComplete {
		return nil
	}

	return c.core.controller.SetInterfaceCompleted(sim, c.hubID,
		interfaceName)
}

// checkPolicy evaluates the attached policy gate for the interface.
func (c *Connector) checkPolicy(ctx context.Context,
	project *Project,
	sim *engine.Simulation,
	interfaceName string) error {

	unsatisfied, err := c.UnsatisfiedInputs(project, sim, interfaceName)
	if err != nil {
		return err
	}

	input := &policy.Input{
		HubID:             c.hubID,
		Interface:         interfaceName,
		UnsatisfiedInputs: unsatisfied,
		Project:           projectDocument(project),
	}

	result, err := c.gate.EvaluateInterface(ctx, input)
	if err != nil {
		return engine.NewInternalError(
			fmt.Sprintf("policy evaluation for interface %q failed",
				interfaceName), err).
			WithInterface(interfaceName)
	}

	if result.Allowed {
		return nil
	}

	messages := make([]string, 0, len(result.Violations))
	for _, v := range result.Violations {
		messages = append(messages, v.Message)
	}

	return engine.NewUsageError(
		fmt.Sprintf("policy denied execution of interface %q: %s",
			interfaceName, strings.Join(messages, "; ")), nil).
		WithInterface(interfaceName)
}

// ExecuteNext runs the next scheduled interface on the hub. It returns
// the executed interface name, or false when nothing is scheduled.
func (c *Connector) ExecuteNext(ctx context.Context,
	project *Project,
	sim *engine.Simulation,
	opts ExecuteOptions) (string, bool, error) {

	next, ok, err := c.NextInterface(sim)
	if err != nil || !ok {
		return "", false, err
	}

	if err := c.ExecuteInterface(ctx, project, sim, next, opts); err != nil {
		return next, true, err
	}

	return next, true, nil
}

// projectDocument renders the project as a policy input document.
func projectDocument(project *Project) map[string]any {
	doc := map[string]any{
		"id":          project.ID(),
		"title":       project.Title(),
		"simulations": project.CountSimulations(),
	}

	for key, value := range project.Metadata() {
		doc[key] = value
	}

	return doc
}
