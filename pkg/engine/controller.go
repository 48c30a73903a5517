package engine

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/arrayforge/arrayforge/pkg/plugins"
)

// Status classifies a variable's readiness for an interface.
type Status string

const (
	StatusRequired          Status = "required"
	StatusOptional          Status = "optional"
	StatusSatisfied         Status = "satisfied"
	StatusUnavailable       Status = "unavailable"
	StatusOverwritten       Status = "overwritten"
	StatusOverwrittenOption Status = "overwritten_option"
)

// Controller works with simulations through a data storage and a
// sequencer. It extends the Loader with hub management, state masking
// and simulation lifecycle operations.
type Controller struct {
	*Loader
	sequencer *Sequencer
}

// NewController creates a Controller over the given storage and
// sequencer.
func NewController(store *DataStorage, sequencer *Sequencer,
	logger zerolog.Logger) *Controller {

	return &Controller{
		Loader:    NewLoader(store, logger),
		sequencer: sequencer,
	}
}

// Sequencer returns the bound sequencer.
func (c *Controller) Sequencer() *Sequencer {
	return c.sequencer
}

// CopySimulationOptions controls simulation copying.
type CopySimulationOptions struct {
	// ForceTitle overrides the copied simulation's title.
	ForceTitle string

	// NullTitle clears the copied simulation's title. Takes precedence
	// over ForceTitle.
	NullTitle bool

	// NoMerge skips refreshing the copy's merged view.
	NoMerge bool

	// CompactNoneStates merges runs of unleveled states into single
	// states before copying. Defaults off; set for long histories.
	CompactNoneStates bool
}

// CopySimulation duplicates a simulation within the same pool, sharing
// pool entries by link count.
func (c *Controller) CopySimulation(pool *DataPool,
	sim *Simulation,
	opts CopySimulationOptions) (*Simulation, error) {

	newSim := copySimShell(sim, opts)

	activeStates, err := c.copyActiveSimStates(sim, opts.CompactNoneStates)
	if err != nil {
		return nil, err
	}

	for _, state := range activeStates {
		newState, err := c.store.CopyDatastate(pool, state)
		if err != nil {
			return nil, err
		}

		newSim.AddState(newState, false)
	}

	if !opts.NoMerge {
		newSim.SetMergedState(c.mergeActiveStates(newSim))
	}

	return newSim, nil
}

// ImportSimulation duplicates a simulation into another pool,
// deduplicating entries the destination already holds.
func (c *Controller) ImportSimulation(srcPool, dstPool *DataPool,
	sim *Simulation,
	opts CopySimulationOptions) (*Simulation, error) {

	newSim := copySimShell(sim, opts)

	activeStates, err := c.copyActiveSimStates(sim, opts.CompactNoneStates)
	if err != nil {
		return nil, err
	}

	for _, state := range activeStates {
		newState, err := c.store.ImportDatastate(srcPool, dstPool, state)
		if err != nil {
			return nil, err
		}

		newSim.AddState(newState, false)
	}

	if !opts.NoMerge {
		newSim.SetMergedState(c.mergeActiveStates(newSim))
	}

	return newSim, nil
}

// RemoveSimulation releases every state of the simulation from the pool
// and clears the simulation's stacks.
func (c *Controller) RemoveSimulation(pool *DataPool,
	sim *Simulation) error {

	for _, state := range sim.MirrorAllStates() {
		if err := c.store.RemoveState(pool, state); err != nil {
			return err
		}
	}

	sim.ClearStates()

	return nil
}

// CreateNewHub attaches a fresh unordered hub to the simulation.
func (c *Controller) CreateNewHub(sim *Simulation,
	interfaceType, hubID string,
	noComplete bool) error {

	hub, err := c.sequencer.CreateNewHub(interfaceType, noComplete)
	if err != nil {
		return err
	}

	sim.SetHub(hubID, hub)

	return nil
}

// CreateNewPipeline attaches a fresh strictly ordered hub to the
// simulation.
func (c *Controller) CreateNewPipeline(sim *Simulation,
	interfaceType, hubID string,
	noComplete bool) error {

	hub, err := c.sequencer.CreateNewPipeline(interfaceType, noComplete)
	if err != nil {
		return err
	}

	sim.SetHub(hubID, hub)

	return nil
}

// AvailableInterfaces lists every interface name registered for the
// hub's type.
func (c *Controller) AvailableInterfaces(sim *Simulation,
	hubID string) ([]string, error) {

	hub, err := sim.GetHub(hubID)
	if err != nil {
		return nil, err
	}

	return c.sequencer.AvailableNames(hub)
}

// SequencedInterfaces lists every sequenced interface name on the hub.
func (c *Controller) SequencedInterfaces(sim *Simulation,
	hubID string) ([]string, error) {

	hub, err := sim.GetHub(hubID)
	if err != nil {
		return nil, err
	}

	return c.sequencer.SequencedNames(hub)
}

// ScheduledInterfaces lists the hub's scheduled interface names.
func (c *Controller) ScheduledInterfaces(sim *Simulation,
	hubID string) ([]string, error) {

	hub, err := sim.GetHub(hubID)
	if err != nil {
		return nil, err
	}

	return c.sequencer.ScheduledNames(hub)
}

// CompletedInterfaces lists the hub's completed interface names in
// completion order.
func (c *Controller) CompletedInterfaces(sim *Simulation,
	hubID string) ([]string, error) {

	hub, err := sim.GetHub(hubID)
	if err != nil {
		return nil, err
	}

	return c.sequencer.CompletedNames(hub)
}

// HasInterface reports whether the hub has sequenced the interface.
func (c *Controller) HasInterface(sim *Simulation,
	hubID, interfaceName string) (bool, error) {

	hub, err := sim.GetHub(hubID)
	if err != nil {
		return false, err
	}

	return c.sequencer.HasName(hub, interfaceName), nil
}

// NextInterface returns the next scheduled interface name on the hub.
func (c *Controller) NextInterface(sim *Simulation,
	hubID string) (string, bool, error) {

	hub, err := sim.GetHub(hubID)
	if err != nil {
		return "", false, err
	}

	return c.sequencer.NextName(hub)
}

// InterfaceWeight returns the declared weight of the interface, if any.
func (c *Controller) InterfaceWeight(sim *Simulation,
	hubID, interfaceName string) (int, bool, error) {

	hub, err := sim.GetHub(hubID)
	if err != nil {
		return 0, false, err
	}

	return c.sequencer.Weight(hub, interfaceName)
}

// SequenceInterface schedules the named interface on the hub.
func (c *Controller) SequenceInterface(sim *Simulation,
	hubID, interfaceName string) error {

	hub, err := sim.GetHub(hubID)
	if err != nil {
		return err
	}

	if !c.sequencer.IsAvailable(hub, interfaceName) {
		return NewNotFoundError(
			fmt.Sprintf("interface %q not available for hub %q",
				interfaceName, hubID), nil).
			WithInterface(interfaceName)
	}

	return c.sequencer.Sequence(hub, interfaceName)
}

// CheckNextInterface verifies the interface is next on a strictly
// ordered hub.
func (c *Controller) CheckNextInterface(sim *Simulation,
	hubID, interfaceName string) error {

	hub, err := sim.GetHub(hubID)
	if err != nil {
		return err
	}

	return c.sequencer.CheckNext(hub, interfaceName)
}

// IsInterfaceCompleted reports whether the interface has completed.
func (c *Controller) IsInterfaceCompleted(sim *Simulation,
	hubID, interfaceName string) (bool, error) {

	hub, err := sim.GetHub(hubID)
	if err != nil {
		return false, err
	}

	return c.sequencer.IsComplete(hub, interfaceName)
}

// SetInterfaceCompleted marks the interface as completed on the hub.
func (c *Controller) SetInterfaceCompleted(sim *Simulation,
	hubID, interfaceName string) error {

	hub, err := sim.GetHub(hubID)
	if err != nil {
		return err
	}

	return c.sequencer.Complete(hub, interfaceName)
}

// InterfaceClassName resolves an interface display name to its class
// name for the hub's type.
func (c *Controller) InterfaceClassName(sim *Simulation,
	hubID, interfaceName string) (string, error) {

	hub, err := sim.GetHub(hubID)
	if err != nil {
		return "", err
	}

	className, ok := c.sequencer.ClassName(hub, interfaceName)
	if !ok {
		return "", NewNotFoundError(
			fmt.Sprintf("interface %q is not of type %q", interfaceName,
				hub.InterfaceType()), nil).
			WithInterface(interfaceName)
	}

	return className, nil
}

// InterfaceObject returns the interface instance sequenced on the hub.
func (c *Controller) InterfaceObject(sim *Simulation,
	hubID, interfaceName string) (plugins.Interface, error) {

	hub, err := sim.GetHub(hubID)
	if err != nil {
		return nil, err
	}

	className, err := c.InterfaceClassName(sim, hubID, interfaceName)
	if err != nil {
		return nil, err
	}

	return hub.GetInterface(className)
}

// ResetHub undoes every completed interface on the hub and clears its
// force-completed flag.
func (c *Controller) ResetHub(sim *Simulation, hubID string) error {
	hub, err := sim.GetHub(hubID)
	if err != nil {
		return err
	}

	hub.Reset()

	return nil
}

// MaskStates masks matching states and refreshes the merged view unless
// noMerge is set. Returns the number of states masked.
func (c *Controller) MaskStates(sim *Simulation,
	searchStr, maskAfter string,
	noMerge bool) int {

	nMasks := sim.MaskStates(searchStr, maskAfter)

	if noMerge || nMasks == 0 {
		return nMasks
	}

	sim.SetMergedState(c.mergeActiveStates(sim))

	return nMasks
}

// UnmaskStates unmasks matching states and refreshes the merged view
// unless noMerge is set. Returns the number of states unmasked.
func (c *Controller) UnmaskStates(sim *Simulation,
	searchStr string,
	noMerge bool) int {

	nUnmasks := sim.UnmaskStates(searchStr)

	if noMerge || nUnmasks == 0 {
		return nUnmasks
	}

	sim.SetMergedState(c.mergeActiveStates(sim))

	return nUnmasks
}

// DeleteMaskedStates releases every masked state from the pool and
// drops them from the simulation.
func (c *Controller) DeleteMaskedStates(pool *DataPool,
	sim *Simulation,
	noMerge bool) error {

	for _, killState := range sim.PopMaskedStates() {
		if err := c.store.RemoveState(pool, killState); err != nil {
			return err
		}
	}

	if noMerge {
		return nil
	}

	sim.SetMergedState(c.mergeActiveStates(sim))

	return nil
}

// GetInputStatus classifies every active input of the interface.
// Inputs to completed interfaces are unavailable. Inputs that earlier
// uncompleted interfaces consume or produce are overwritten, or
// overwritten_option when optional. Remaining inputs are required or
// optional, upgraded to satisfied when the merged view holds data.
func (c *Controller) GetInputStatus(pool *DataPool,
	sim *Simulation,
	hubID, interfaceName string,
	allOverwritten []string) (map[string]Status, error) {

	c.logger.Debug().
		Str("interface", interfaceName).
		Msg("getting input status")

	hub, err := sim.GetHub(hubID)
	if err != nil {
		return nil, err
	}

	className, err := c.InterfaceClassName(sim, hubID, interfaceName)
	if err != nil {
		return nil, err
	}

	iface, err := hub.GetInterface(className)
	if err != nil {
		return nil, err
	}

	allInputs, err := c.activeInputs(pool, sim, iface.DeclareInputs())
	if err != nil {
		return nil, err
	}

	if hub.ForceCompleted() || hub.IsCompleted(className) {
		status := make(map[string]Status, len(allInputs))
		for _, inputID := range allInputs {
			status[inputID] = StatusUnavailable
		}

		return status, nil
	}

	for _, precName := range hub.PrecedingNames(className, true) {
		precIface, err := hub.GetInterface(precName)
		if err != nil {
			return nil, err
		}

		precInputs, err := c.activeInputs(pool, sim,
			precIface.DeclareInputs())
		if err != nil {
			return nil, err
		}

		allOverwritten = append(allOverwritten, precInputs...)
		allOverwritten = append(allOverwritten,
			precIface.DeclareOutputs()...)
	}

	optional := make(map[string]bool)
	for _, id := range iface.DeclareOptional() {
		optional[id] = true
	}

	inputStatus := make(map[string]Status, len(allInputs))

	for _, inputID := range allInputs {
		if optional[inputID] {
			inputStatus[inputID] = StatusOptional
		} else {
			inputStatus[inputID] = StatusRequired
		}
	}

	for _, varID := range allOverwritten {
		if _, ok := inputStatus[varID]; !ok {
			continue
		}

		if optional[varID] {
			inputStatus[varID] = StatusOverwrittenOption
		} else {
			inputStatus[varID] = StatusOverwritten
		}
	}

	merged := c.CreateMergedState(sim, true)
	if merged == nil {
		return inputStatus, nil
	}

	for _, dataID := range merged.Identifiers() {
		status, ok := inputStatus[dataID]
		if !ok {
			continue
		}

		if status == StatusRequired || status == StatusOptional {
			inputStatus[dataID] = StatusSatisfied
		}
	}

	return inputStatus, nil
}

// GetOutputStatus classifies every declared output of the interface as
// satisfied, unavailable or overwritten. An output is overwritten when
// an interface completed later also declares it; forceLastCompleted
// bounds that window to the interfaces completed up to the named one.
func (c *Controller) GetOutputStatus(sim *Simulation,
	hubID, interfaceName string,
	executedOutputs []string,
	forceLastCompleted string) (map[string]Status, error) {

	c.logger.Debug().
		Str("interface", interfaceName).
		Msg("getting output status")

	hub, err := sim.GetHub(hubID)
	if err != nil {
		return nil, err
	}

	className, err := c.InterfaceClassName(sim, hubID, interfaceName)
	if err != nil {
		return nil, err
	}

	iface, err := hub.GetInterface(className)
	if err != nil {
		return nil, err
	}

	outputStatus := make(map[string]Status)
	for _, outputID := range iface.DeclareOutputs() {
		outputStatus[outputID] = StatusUnavailable
	}

	merged := c.CreateMergedState(sim, true)
	if merged == nil {
		return outputStatus, nil
	}

	completedNames := hub.CompletedNames()

	var lcClassName string

	if forceLastCompleted != "" {
		lcClassName, err = c.InterfaceClassName(sim, hubID,
			forceLastCompleted)
		if err != nil {
			return nil, err
		}
	}

	lastCompleted := lcClassName
	if lastCompleted == "" {
		lastCompleted, _ = hub.LastCompleted()
	}

	completedIdx := indexOf(completedNames, className)

	switch {
	case completedIdx >= 0 && lastCompleted != className:
		startIdx := completedIdx + 1
		endIdx := len(completedNames)

		if lcClassName != "" {
			if lcIdx := indexOf(completedNames, lcClassName); lcIdx >= 0 {
				endIdx = lcIdx + 1

				// The bounding interface completed before this one, so
				// every output is stale.
				if endIdx < startIdx {
					return outputStatus, nil
				}
			}
		}

		for _, nextName := range completedNames[startIdx:endIdx] {
			nextIface, err := hub.GetInterface(nextName)
			if err != nil {
				return nil, err
			}

			executedOutputs = append(executedOutputs,
				nextIface.DeclareOutputs()...)
		}

	case hub.HasOrder() && completedIdx < 0:
		return outputStatus, nil
	}

	executed := make(map[string]bool, len(executedOutputs))
	for _, id := range executedOutputs {
		executed[id] = true
	}

	for _, dataID := range merged.Identifiers() {
		if _, ok := outputStatus[dataID]; !ok {
			continue
		}

		if executed[dataID] {
			outputStatus[dataID] = StatusOverwritten
		} else {
			outputStatus[dataID] = StatusSatisfied
		}
	}

	return outputStatus, nil
}

// GetDataValueAt reads the identifier's value as it stood at the given
// level, masking later states in a read-only clone. An empty level
// reads the current merged view. With checkIdentity set, missing data
// returns nil instead of an error.
func (c *Controller) GetDataValueAt(pool *DataPool,
	sim *Simulation,
	identifier string,
	level string,
	checkIdentity bool) (any, error) {

	readSim := sim

	if level != "" {
		readSim = sim.Clone()
		c.maskAfterLevel(readSim, level, nil)
	}

	if checkIdentity && !c.HasData(readSim, identifier) {
		return nil, nil
	}

	return c.GetDataValue(pool, readSim, identifier)
}

// LevelValue pairs a level with the value a variable held there.
type LevelValue struct {
	Level string
	Value any
}

// GetLevelValues reads the identifier's value at each of the given
// levels, skipping levels where the variable holds no data. A nil
// levels slice scans every active level. Levels in forceMasks are
// masked on top of each scan point.
func (c *Controller) GetLevelValues(pool *DataPool,
	sim *Simulation,
	identifier string,
	levels []string,
	forceMasks []string) ([]LevelValue, error) {

	simCopy := sim.Clone()

	if levels == nil {
		levels = uniqueStrings(sim.ActiveLevels(false, true))
	}

	var results []LevelValue

	for _, levelKey := range levels {
		c.maskAfterLevel(simCopy, levelKey, forceMasks)

		if !c.HasData(simCopy, identifier) {
			continue
		}

		value, err := c.GetDataValue(pool, simCopy, identifier)
		if err != nil {
			return nil, err
		}

		results = append(results, LevelValue{Level: levelKey, Value: value})
	}

	return results, nil
}

// InputAvailableFor reports whether checkID is an active input of the
// named interface on the hub.
func (c *Controller) InputAvailableFor(pool *DataPool,
	sim *Simulation,
	hubID, interfaceName, checkID string) (bool, error) {

	iface, err := c.InterfaceObject(sim, hubID, interfaceName)
	if err != nil {
		return false, err
	}

	return c.InputAvailable(pool, sim, iface, checkID)
}

// CanLoadInterface reports whether the named interface's required
// inputs are satisfied.
func (c *Controller) CanLoadInterface(pool *DataPool,
	sim *Simulation,
	hubID, interfaceName string) (bool, error) {

	iface, err := c.InterfaceObject(sim, hubID, interfaceName)
	if err != nil {
		return false, err
	}

	return c.CanLoad(pool, sim, iface)
}

// LoadHubInterface populates a data bag for the named interface on the
// hub.
func (c *Controller) LoadHubInterface(pool *DataPool,
	sim *Simulation,
	hubID, interfaceName string,
	skipVars []string) (*plugins.DataBag, error) {

	iface, err := c.InterfaceObject(sim, hubID, interfaceName)
	if err != nil {
		return nil, err
	}

	return c.LoadInterface(pool, sim, iface, skipVars)
}

// copyActiveSimStates mirrors the active states, optionally compacting
// runs of unleveled states.
func (c *Controller) copyActiveSimStates(sim *Simulation,
	compactNoneStates bool) ([]*DataState, error) {

	activeStates := sim.MirrorActiveStates()

	if compactNoneStates {
		return c.compactUnleveledStates(activeStates)
	}

	return activeStates, nil
}

// compactUnleveledStates merges each run of unleveled states into a
// single state, preserving the order of leveled states.
func (c *Controller) compactUnleveledStates(
	stateList []*DataState) ([]*DataState, error) {

	var newStates []*DataState
	var unleveled []*DataState

	for _, state := range stateList {
		if !state.HasLevel() {
			if state.IsMasked() {
				return nil, NewConsistencyError(
					"state list can not be compacted if states without "+
						"levels are masked", nil)
			}

			unleveled = append(unleveled, state)
			continue
		}

		if len(unleveled) > 0 {
			newStates = append(newStates, makeCompactState(unleveled))
			unleveled = nil
		}

		newStates = append(newStates, state)
	}

	if len(unleveled) > 0 {
		newStates = append(newStates, makeCompactState(unleveled))
	}

	return newStates, nil
}

// makeCompactState folds a run of states into one, newest last.
func makeCompactState(stateList []*DataState) *DataState {
	mergedMap := make(map[string]*Handle)

	for _, state := range stateList {
		mergedMap = updateHandleMap(mergedMap, state.MirrorMap(), false)
	}

	return newDataStateFromMap(mergedMap, "")
}

// maskAfterLevel rebuilds the simulation's masking so only states up to
// the given level are visible, then refreshes the merged view.
func (c *Controller) maskAfterLevel(sim *Simulation,
	level string,
	forceMasks []string) {

	c.UnmaskStates(sim, "", true)
	c.MaskStates(sim, "", level, true)

	if forceMasks != nil {
		for _, mask := range forceMasks {
			c.MaskStates(sim, mask, "", true)
		}

		c.UnmaskStates(sim, level, true)
	}

	sim.SetMergedState(c.mergeActiveStates(sim))
}

// copySimShell copies the simulation identity and hubs, without states.
func copySimShell(sim *Simulation, opts CopySimulationOptions) *Simulation {
	title := sim.Title()

	if opts.NullTitle {
		title = ""
	} else if opts.ForceTitle != "" {
		title = opts.ForceTitle
	}

	newSim := NewSimulation(title)

	for _, hubID := range sim.HubIDs() {
		hub, err := sim.GetHub(hubID)
		if err != nil {
			continue
		}

		newSim.SetHub(hubID, hub.Clone())
	}

	return newSim
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}

	return -1
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))

	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}

	return out
}
