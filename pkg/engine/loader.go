package engine

import (
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/arrayforge/arrayforge/pkg/catalog"
	"github.com/arrayforge/arrayforge/pkg/plugins"
)

// Loader reads simulation data into interfaces and records new data
// states. It never mutates hubs; that is the Controller's job.
type Loader struct {
	store  *DataStorage
	logger zerolog.Logger
}

// NewLoader creates a Loader over the given storage.
func NewLoader(store *DataStorage, logger zerolog.Logger) *Loader {
	return &Loader{
		store:  store,
		logger: logger.With().Str("component", "loader").Logger(),
	}
}

// Store returns the underlying data storage.
func (l *Loader) Store() *DataStorage {
	return l.store
}

// GetStructure resolves a structure by name.
func (l *Loader) GetStructure(name string) (catalog.Structure, error) {
	return l.store.GetStructure(name)
}

// HasData reports whether the simulation's merged view holds data for
// the identifier.
func (l *Loader) HasData(sim *Simulation, identifier string) bool {
	merged := l.CreateMergedState(sim, true)
	if merged == nil {
		return false
	}

	return l.store.HasData(merged, identifier)
}

// GetDataValue reads the identifier's value from the simulation's
// merged view.
func (l *Loader) GetDataValue(pool *DataPool,
	sim *Simulation,
	identifier string) (any, error) {

	l.logger.Debug().
		Str("variable", identifier).
		Msg("retrieving data value")

	merged := l.CreateMergedState(sim, true)

	return l.store.GetDataValue(pool, mergedOrNil(merged), identifier)
}

// InputAvailable reports whether checkID is among the interface's
// active inputs, resolving conditional inputs against the simulation.
func (l *Loader) InputAvailable(pool *DataPool,
	sim *Simulation,
	iface plugins.Interface,
	checkID string) (bool, error) {

	active, err := l.activeInputs(pool, sim, iface.DeclareInputs())
	if err != nil {
		return false, err
	}

	for _, id := range active {
		if id == checkID {
			return true, nil
		}
	}

	return false, nil
}

// CanLoad reports whether every required active input of the interface
// is satisfied by the simulation.
func (l *Loader) CanLoad(pool *DataPool,
	sim *Simulation,
	iface plugins.Interface) (bool, error) {

	active, err := l.activeInputs(pool, sim, iface.DeclareInputs())
	if err != nil {
		return false, err
	}

	optional := make(map[string]bool)
	for _, id := range iface.DeclareOptional() {
		optional[id] = true
	}

	merged := l.CreateMergedState(sim, true)

	satisfied := make(map[string]bool)
	if merged != nil {
		for _, id := range merged.Identifiers() {
			satisfied[id] = true
		}
	}

	for _, id := range active {
		if optional[id] {
			continue
		}
		if !satisfied[id] {
			return false, nil
		}
	}

	return true, nil
}

// LoadInterface populates a data bag with the interface's active
// inputs. Required inputs without data fail; optional inputs load as
// nil. Identifiers in skipVars are not loaded.
func (l *Loader) LoadInterface(pool *DataPool,
	sim *Simulation,
	iface plugins.Interface,
	skipVars []string) (*plugins.DataBag, error) {

	active, err := l.activeInputs(pool, sim, iface.DeclareInputs())
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(skipVars))
	for _, id := range skipVars {
		skip[id] = true
	}

	optional := make(map[string]bool)
	for _, id := range iface.DeclareOptional() {
		optional[id] = true
	}

	bag, err := plugins.NewDataBag(iface)
	if err != nil {
		return nil, NewInternalError(
			fmt.Sprintf("creating data bag for interface %q failed",
				iface.Name()), err).
			WithInterface(iface.Name())
	}

	for _, putVar := range active {
		if skip[putVar] {
			continue
		}

		var value any

		if l.HasData(sim, putVar) {
			value, err = l.GetDataValue(pool, sim, putVar)
			if err != nil {
				return nil, err
			}
		}

		if value == nil && !optional[putVar] {
			return nil, NewValidationError(
				fmt.Sprintf("input %q is required by interface %q but is "+
					"not satisfied", putVar, iface.Name()), nil).
				WithCode(ErrCodeUnmetInput).
				WithVariable(putVar).
				WithInterface(iface.Name())
		}

		if err := bag.PutData(putVar, value); err != nil {
			return nil, NewInternalError(
				fmt.Sprintf("loading input %q into interface %q failed",
					putVar, iface.Name()), err).
				WithVariable(putVar).
				WithInterface(iface.Name())
		}
	}

	return bag, nil
}

// DataEntry pairs a variable identifier with its raw value for storage.
type DataEntry struct {
	Identifier string
	Value      any
}

// AddDatastateOptions controls how a new data state is recorded.
type AddDatastateOptions struct {
	// Level labels the new state. Empty leaves it unleveled.
	Level string

	// Catalog validates entry identifiers and supplies metadata. It is
	// required when Entries is non-empty and UseObjects is false.
	Catalog *catalog.DataCatalog

	// Entries are the variables to store in the new state.
	Entries []DataEntry

	// UseObjects treats entry values as prepared *Data objects instead
	// of raw values.
	UseObjects bool

	// LogExceptions downgrades per-entry read failures to log entries,
	// skipping the failed variable.
	LogExceptions bool

	// NoMerge skips refreshing the simulation's merged view.
	NoMerge bool

	// Overwrite replaces the top active state instead of pushing.
	Overwrite bool
}

// AddDatastate records a new data state holding the given entries and
// pushes it onto the simulation. Redo states displaced by the push are
// released from the pool.
func (l *Loader) AddDatastate(pool *DataPool,
	sim *Simulation,
	opts AddDatastateOptions) error {

	newState := l.store.CreateNewDataState(opts.Level)

	if len(opts.Entries) > 0 && !opts.UseObjects && opts.Catalog == nil {
		return NewUsageError(
			"a data catalog must be provided to add data", nil)
	}

	for _, entry := range opts.Entries {
		if err := l.addEntry(pool, newState, entry, opts); err != nil {
			return err
		}
	}

	removed := sim.AddState(newState, opts.Overwrite)

	for _, killState := range removed {
		if err := l.store.RemoveState(pool, killState); err != nil {
			return err
		}
	}

	if opts.Level == "" {
		l.logger.Info().Msg("datastate stored")
	} else {
		l.logger.Info().
			Str("level", opts.Level).
			Msg("datastate stored")
	}

	if opts.NoMerge {
		return nil
	}

	sim.SetMergedState(l.mergeActiveStates(sim))

	return nil
}

func (l *Loader) addEntry(pool *DataPool,
	state *DataState,
	entry DataEntry,
	opts AddDatastateOptions) error {

	if opts.UseObjects {
		data, ok := entry.Value.(*Data)
		if !ok && entry.Value != nil {
			return NewUsageError(
				fmt.Sprintf("entry for variable %q is not a data object",
					entry.Identifier), nil).
				WithVariable(entry.Identifier)
		}

		return l.store.AddDataToState(pool, state, entry.Identifier, data)
	}

	if !l.store.IsValid(opts.Catalog, entry.Identifier) {
		return NewNotFoundError(
			fmt.Sprintf("variable %q is not contained in the data catalog",
				entry.Identifier), nil).
			WithVariable(entry.Identifier)
	}

	meta, err := opts.Catalog.GetMetadata(entry.Identifier)
	if err != nil {
		return NewNotFoundError(
			fmt.Sprintf("metadata for variable %q is unavailable",
				entry.Identifier), err).
			WithVariable(entry.Identifier)
	}

	err = l.store.CreateNewData(pool, state, opts.Catalog, entry.Value, meta)
	if err == nil {
		return nil
	}

	if opts.LogExceptions {
		l.logger.Error().
			Err(err).
			Str("variable", entry.Identifier).
			Msg("reading variable failed")

		return nil
	}

	return err
}

// CreateMergedState returns the merged view of the simulation's active
// states. When useExisting is set the cached view is reused if present.
func (l *Loader) CreateMergedState(sim *Simulation,
	useExisting bool) *PseudoState {

	if useExisting {
		if merged := sim.MergedState(); merged != nil {
			return merged
		}
	}

	return l.mergeActiveStates(sim)
}

// mergeActiveStates folds the unmasked active states into a single
// pseudo state, newest last. A nil handle recorded for a variable
// removes any earlier entry for it.
func (l *Loader) mergeActiveStates(sim *Simulation) *PseudoState {
	activeStates := sim.MirrorActiveStates()

	l.logger.Debug().Msg("merging active datastates")

	if len(activeStates) == 0 {
		return nil
	}

	mergedMap := make(map[string]*Handle)

	for _, state := range activeStates {
		if state.IsMasked() {
			continue
		}

		mergedMap = updateHandleMap(mergedMap, state.MirrorMap(), true)
	}

	return NewPseudoState(mergedMap, "")
}

// activeInputs flattens an input declaration, resolving each
// conditional input against the simulation's merged view.
func (l *Loader) activeInputs(pool *DataPool,
	sim *Simulation,
	declaration []plugins.InputSpec) ([]string, error) {

	var inputIDs []string

	for _, spec := range declaration {
		if !spec.IsConditional() {
			inputIDs = append(inputIDs, spec.VariableID)
			continue
		}

		l.logger.Debug().
			Str("variable", spec.VariableID).
			Msg("checking mask status for input")

		merged := l.CreateMergedState(sim, true)
		if merged == nil {
			continue
		}

		if !merged.HasIndex(spec.UnmaskVariable) {
			continue
		}

		if len(spec.UnmaskValues) == 0 {
			inputIDs = append(inputIDs, spec.VariableID)
			continue
		}

		value, err := l.GetDataValue(pool, sim, spec.UnmaskVariable)
		if err != nil {
			return nil, err
		}

		for _, unmaskValue := range spec.UnmaskValues {
			if reflect.DeepEqual(unmaskValue, value) {
				inputIDs = append(inputIDs, spec.VariableID)
				break
			}
		}
	}

	return inputIDs, nil
}

// updateHandleMap merges new entries over old ones. With removeNoneKeys
// set, a nil handle in the new map deletes the key instead of storing
// nil.
func updateHandleMap(oldMap, newMap map[string]*Handle,
	removeNoneKeys bool) map[string]*Handle {

	finalMap := make(map[string]*Handle, len(oldMap)+len(newMap))

	for k, v := range oldMap {
		finalMap[k] = v
	}

	for k, v := range newMap {
		if removeNoneKeys && v == nil {
			delete(finalMap, k)
			continue
		}

		finalMap[k] = v
	}

	return finalMap
}

// mergedOrNil converts a possibly nil pseudo state into the State
// interface without producing a typed nil.
func mergedOrNil(merged *PseudoState) State {
	if merged == nil {
		return nil
	}

	return merged
}
