package engine

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/arrayforge/arrayforge/pkg/catalog"
)

// DataStorage mediates between data pools, data states and the structure
// registry. It owns all pool mutation so that higher layers never touch
// handle bookkeeping directly.
type DataStorage struct {
	structures *catalog.StructureRegistry
	logger     zerolog.Logger
}

// NewDataStorage creates a DataStorage backed by the given structure
// registry.
func NewDataStorage(structures *catalog.StructureRegistry, logger zerolog.Logger) *DataStorage {
	return &DataStorage{
		structures: structures,
		logger:     logger.With().Str("component", "data-storage").Logger(),
	}
}

// GetStructure resolves a structure by name.
func (s *DataStorage) GetStructure(name string) (catalog.Structure, error) {
	structure, err := s.structures.Get(name)
	if err != nil {
		return nil, NewNotFoundError(
			fmt.Sprintf("structure %q is not registered", name), err)
	}

	return structure, nil
}

// IsValid reports whether a variable identifier appears in the catalog.
func (s *DataStorage) IsValid(cat *catalog.DataCatalog, identifier string) bool {
	return cat.HasVariable(identifier)
}

// CreateNewDataState returns an empty DataState at the given level. An
// empty level leaves the state unleveled.
func (s *DataStorage) CreateNewDataState(level string) *DataState {
	state := NewDataState(level)

	s.logger.Debug().
		Str("level", level).
		Msg("created new datastate")

	return state
}

// CreateNewData validates raw data against the catalog metadata, builds
// the typed value with the declared structure and records the result in
// the pool and state.
func (s *DataStorage) CreateNewData(pool *DataPool,
	state *DataState,
	cat *catalog.DataCatalog,
	raw any,
	meta *catalog.Metadata) error {

	if !cat.HasVariable(meta.Identifier) {
		return NewNotFoundError(
			fmt.Sprintf("variable %q is not contained in the data catalog",
				meta.Identifier), nil).
			WithVariable(meta.Identifier)
	}

	structure, err := s.GetStructure(meta.Structure)
	if err != nil {
		return err
	}

	var data *Data

	if raw != nil {
		value, err := structure.GetData(raw, meta)
		if err != nil {
			return NewValidationError(
				fmt.Sprintf("reading variable %q with structure %q failed",
					meta.Identifier, meta.Structure), err).
				WithVariable(meta.Identifier)
		}

		data = NewData(meta.Identifier, meta.Structure, value)
	}

	return s.AddDataToState(pool, state, meta.Identifier, data)
}

// AddDataToState stores data in the pool and records its handle against
// the identifier in the state. A nil data records the identifier with a
// nil handle, marking the variable as explicitly unset. Overwriting an
// existing non-nil handle releases the previous entry first.
func (s *DataStorage) AddDataToState(pool *DataPool,
	state *DataState,
	identifier string,
	data *Data) error {

	if prev, ok := state.GetIndex(identifier); ok && prev != nil {
		if err := s.RemoveDataFromState(pool, state, identifier); err != nil {
			return err
		}
	}

	if data == nil {
		state.AddIndex(identifier, nil)
		return nil
	}

	h := pool.Add(data)
	if err := pool.Link(h); err != nil {
		return err
	}

	state.AddIndex(identifier, &h)

	s.logger.Debug().
		Str("variable", identifier).
		Str("handle", h.String()).
		Msg("data added to state")

	return nil
}

// RemoveDataFromState drops the identifier from the state, unlinks its
// handle and removes the pool entry once no state references it.
func (s *DataStorage) RemoveDataFromState(pool *DataPool,
	state *DataState,
	identifier string) error {

	h, ok := state.PopIndex(identifier)
	if !ok {
		return NewNotFoundError(
			fmt.Sprintf("variable %q is not indexed by the state",
				identifier), nil).
			WithVariable(identifier)
	}

	if h == nil {
		return nil
	}

	if err := pool.Unlink(*h); err != nil {
		return err
	}

	linked, err := pool.HasLink(*h)
	if err != nil {
		return err
	}

	if !linked {
		if _, err := pool.Pop(*h); err != nil {
			return err
		}
	}

	return nil
}

// RemoveState releases every variable indexed by the state.
func (s *DataStorage) RemoveState(pool *DataPool, state *DataState) error {
	for _, identifier := range state.Identifiers() {
		if err := s.RemoveDataFromState(pool, state, identifier); err != nil {
			return err
		}
	}

	return nil
}

// CopyDatastate builds a new state sharing the pool entries of the
// source, bumping the link count of each shared handle. The copy keeps
// the source's level and mask.
func (s *DataStorage) CopyDatastate(pool *DataPool,
	state *DataState) (*DataState, error) {

	newState := NewDataState(state.Level())

	for id, h := range state.MirrorMap() {
		if h == nil {
			newState.AddIndex(id, nil)
			continue
		}

		if err := pool.Link(*h); err != nil {
			return nil, err
		}

		shared := *h
		newState.AddIndex(id, &shared)
	}

	if state.IsMasked() {
		newState.Mask()
	}

	return newState, nil
}

// ImportDatastate copies a state from one pool into another. Matching
// entries already present in the destination pool are shared rather
// than duplicated: a handle resolves to the same slot when the stored
// data compares equal.
func (s *DataStorage) ImportDatastate(srcPool, dstPool *DataPool,
	state *DataState) (*DataState, error) {

	newState := NewDataState(state.Level())

	for id, h := range state.MirrorMap() {
		if h == nil {
			newState.AddIndex(id, nil)
			continue
		}

		data, err := srcPool.Get(*h)
		if err != nil {
			return nil, err
		}

		target, found, err := findEqualData(dstPool, *h, data)
		if err != nil {
			return nil, err
		}

		if !found {
			target = dstPool.Add(data.DeepCopy())
		}

		if err := dstPool.Link(target); err != nil {
			return nil, err
		}

		newState.AddIndex(id, &target)
	}

	if state.IsMasked() {
		newState.Mask()
	}

	return newState, nil
}

// findEqualData checks whether the destination pool already holds equal
// data at the handle's slot.
func findEqualData(pool *DataPool, h Handle, data *Data) (Handle, bool, error) {
	existing, err := pool.Get(h)
	if err != nil {
		if IsNotFound(err) || IsConsistency(err) {
			return Handle{}, false, nil
		}
		return Handle{}, false, err
	}

	if existing.Equal(data) {
		return h, true, nil
	}

	return Handle{}, false, nil
}

// CreatePoolSubset extracts the entries referenced by the state into a
// fresh pool, returning the new pool and a matching state.
func (s *DataStorage) CreatePoolSubset(pool *DataPool,
	state State) (*DataPool, *DataState, error) {

	newPool := NewDataPool()
	newState := NewDataState(state.Level())

	for id, h := range state.MirrorMap() {
		if h == nil {
			newState.AddIndex(id, nil)
			continue
		}

		data, err := pool.Get(*h)
		if err != nil {
			return nil, nil, err
		}

		copied := newPool.Add(data.DeepCopy())
		if err := newPool.Link(copied); err != nil {
			return nil, nil, err
		}

		newState.AddIndex(id, &copied)
	}

	return newPool, newState, nil
}

// HasData reports whether the state indexes the identifier with a live
// handle.
func (s *DataStorage) HasData(state State, identifier string) bool {
	if state == nil {
		return false
	}

	h, ok := state.GetIndex(identifier)

	return ok && h != nil
}

// GetDataValue resolves the identifier through the state and returns
// the structure's external representation of the stored value.
func (s *DataStorage) GetDataValue(pool *DataPool,
	state State,
	identifier string) (any, error) {

	if state == nil {
		return nil, NewNotFoundError(
			fmt.Sprintf("variable %q has no data in the simulation",
				identifier), nil).
			WithVariable(identifier)
	}

	h, ok := state.GetIndex(identifier)
	if !ok || h == nil {
		return nil, NewNotFoundError(
			fmt.Sprintf("variable %q has no data in the simulation",
				identifier), nil).
			WithVariable(identifier)
	}

	data, err := pool.Get(*h)
	if err != nil {
		return nil, err
	}

	structure, err := s.GetStructure(data.StructureName())
	if err != nil {
		return nil, err
	}

	return structure.GetValue(data.Value()), nil
}
