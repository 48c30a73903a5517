package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/arrayforge/arrayforge/pkg/catalog"
)

// StateFileBox points at a serialised state on disk.
type StateFileBox struct {
	Identifier string `json:"identifier"`
	FilePath   string `json:"file_path"`
}

// SimulationRecord externalises a simulation's state stacks as file
// references, for embedding in a project archive.
type SimulationRecord struct {
	Title        string         `json:"title"`
	ActiveStates []StateFileBox `json:"active_states"`
	RedoStates   []StateFileBox `json:"redo_states"`
	MergedState  *StateFileBox  `json:"merged_state,omitempty"`
}

// PoolEntryRecord points at one serialised pool entry.
type PoolEntryRecord struct {
	Handle   string `json:"handle"`
	Links    int    `json:"links"`
	FilePath string `json:"file_path"`
}

// PoolRecord externalises a data pool as file references.
type PoolRecord struct {
	Entries []PoolEntryRecord `json:"entries"`
}

// dataRecord is the on-disk form of one pool entry.
type dataRecord struct {
	Identifier string `json:"identifier"`
	Structure  string `json:"structure"`
	Value      any    `json:"value"`
}

// SerialiseStates writes every state of the simulation to JSON files
// under stateDir and returns a record referencing them. Paths in the
// record are relative to rootDir when given. The simulation itself is
// not modified.
func (l *Loader) SerialiseStates(sim *Simulation,
	stateDir, rootDir string) (*SimulationRecord, error) {

	record := &SimulationRecord{Title: sim.Title()}

	for _, state := range sim.ActiveStates() {
		box, err := convertStateToBox(state, stateDir, rootDir)
		if err != nil {
			return nil, err
		}

		record.ActiveStates = append(record.ActiveStates, box)
	}

	for _, state := range sim.RedoStates() {
		box, err := convertStateToBox(state, stateDir, rootDir)
		if err != nil {
			return nil, err
		}

		record.RedoStates = append(record.RedoStates, box)
	}

	if merged := sim.MergedState(); merged != nil {
		box, err := convertStateToBox(merged, stateDir, rootDir)
		if err != nil {
			return nil, err
		}

		record.MergedState = &box
	}

	return record, nil
}

// DeserialiseStates rebuilds a simulation's state stacks from a record
// written by SerialiseStates. Existing states are discarded.
func (l *Loader) DeserialiseStates(sim *Simulation,
	record *SimulationRecord,
	rootDir string) error {

	sim.ClearStates()

	for _, box := range record.ActiveStates {
		state, err := convertBoxToDataState(box, rootDir)
		if err != nil {
			return err
		}

		sim.AddState(state, false)
	}

	for _, box := range record.RedoStates {
		state, err := convertBoxToDataState(box, rootDir)
		if err != nil {
			return err
		}

		sim.pushRedoState(state)
	}

	if record.MergedState != nil {
		merged, err := convertBoxToPseudoState(*record.MergedState, rootDir)
		if err != nil {
			return err
		}

		sim.SetMergedState(merged)
	}

	return nil
}

// SerialisePool writes every live pool entry to a JSON file under
// dataDir and returns a record referencing them. With warnSave set,
// entries whose values cannot be encoded are logged and skipped instead
// of failing the whole pool.
func (s *DataStorage) SerialisePool(pool *DataPool,
	dataDir, rootDir string,
	warnSave bool) (*PoolRecord, error) {

	record := &PoolRecord{}

	for _, h := range pool.Handles() {
		data, err := pool.Get(h)
		if err != nil {
			return nil, err
		}

		links, err := pool.Links(h)
		if err != nil {
			return nil, err
		}

		fileName := fmt.Sprintf("data_%d_%d.json", h.Index, h.Gen)
		filePath := filepath.Join(dataDir, fileName)

		err = writeJSONFile(filePath, dataRecord{
			Identifier: data.ID(),
			Structure:  data.StructureName(),
			Value:      data.Value(),
		})

		if err != nil {
			if warnSave {
				s.logger.Warn().
					Err(err).
					Str("variable", data.ID()).
					Msg("serialising pool entry failed")

				continue
			}

			return nil, NewInternalError(
				fmt.Sprintf("serialising data for variable %q failed",
					data.ID()), err).
				WithVariable(data.ID())
		}

		record.Entries = append(record.Entries, PoolEntryRecord{
			Handle:   h.String(),
			Links:    links,
			FilePath: storePath(filePath, rootDir),
		})
	}

	return record, nil
}

// DeserialisePool rebuilds a data pool from a record written by
// SerialisePool. When the catalog knows a variable, its value is
// rebuilt through the declared structure; unknown variables keep the
// decoded value when warnMissing is set and fail otherwise. With
// warnLoad set, unreadable entries are logged and skipped.
func (s *DataStorage) DeserialisePool(cat *catalog.DataCatalog,
	record *PoolRecord,
	rootDir string,
	warnLoad, warnMissing bool) (*DataPool, error) {

	pool := NewDataPool()

	for _, entry := range record.Entries {
		if err := s.loadPoolEntry(pool, cat, entry, rootDir,
			warnMissing); err != nil {

			if warnLoad {
				s.logger.Warn().
					Err(err).
					Str("handle", entry.Handle).
					Msg("loading pool entry failed")

				continue
			}

			return nil, err
		}
	}

	return pool, nil
}

func (s *DataStorage) loadPoolEntry(pool *DataPool,
	cat *catalog.DataCatalog,
	entry PoolEntryRecord,
	rootDir string,
	warnMissing bool) error {

	h, err := ParseHandle(entry.Handle)
	if err != nil {
		return err
	}

	var rec dataRecord
	if err := readJSONFile(loadPath(entry.FilePath, rootDir), &rec); err != nil {
		return NewInternalError(
			fmt.Sprintf("reading data file %q failed", entry.FilePath), err)
	}

	value := rec.Value

	if cat != nil && cat.HasVariable(rec.Identifier) {
		meta, err := cat.GetMetadata(rec.Identifier)
		if err != nil {
			return err
		}

		structure, err := s.GetStructure(rec.Structure)
		if err != nil {
			return err
		}

		value, err = structure.GetData(rec.Value, meta)
		if err != nil {
			return NewValidationError(
				fmt.Sprintf("rebuilding variable %q with structure %q "+
					"failed", rec.Identifier, rec.Structure), err).
				WithVariable(rec.Identifier)
		}
	} else if !warnMissing {
		return NewNotFoundError(
			fmt.Sprintf("variable %q is not contained in the data catalog",
				rec.Identifier), nil).
			WithVariable(rec.Identifier)
	} else {
		s.logger.Warn().
			Str("variable", rec.Identifier).
			Msg("variable missing from catalog; keeping raw value")
	}

	pool.restore(h, NewData(rec.Identifier, rec.Structure, value),
		entry.Links)

	return nil
}

// convertStateToBox writes the state dump to a uniquely named file.
func convertStateToBox(state State,
	saveDir, rootDir string) (StateFileBox, error) {

	identifier := uuid.NewString()
	fileName := fmt.Sprintf("datastate_%s.json", identifier)
	filePath := filepath.Join(saveDir, fileName)

	if err := writeJSONFile(filePath, state.Dump()); err != nil {
		return StateFileBox{}, NewInternalError(
			fmt.Sprintf("serialising state to %q failed", filePath), err)
	}

	return StateFileBox{
		Identifier: identifier,
		FilePath:   storePath(filePath, rootDir),
	}, nil
}

func convertBoxToDump(box StateFileBox,
	rootDir string) (*StateDump, error) {

	var dump StateDump
	if err := readJSONFile(loadPath(box.FilePath, rootDir), &dump); err != nil {
		return nil, NewInternalError(
			fmt.Sprintf("reading state file %q failed", box.FilePath), err)
	}

	return &dump, nil
}

// convertBoxToDataState restores a serialised state onto a simulation
// stack. Dumps carrying the bare base tag are accepted and load
// unmasked, matching the three tags the file format defines.
func convertBoxToDataState(box StateFileBox,
	rootDir string) (*DataState, error) {

	dump, err := convertBoxToDump(box, rootDir)
	if err != nil {
		return nil, err
	}

	if dump.Type != StateTypeData && dump.Type != StateTypeBase {
		return nil, NewValidationError(
			fmt.Sprintf("state file %q holds a %q, expected %q or %q",
				box.FilePath, dump.Type, StateTypeData, StateTypeBase),
			nil).
			WithCode(ErrCodeSerialFormat)
	}

	state := NewDataState(dumpLevel(dump))

	if dump.Masked != nil && *dump.Masked {
		state.Mask()
	}

	if err := restoreIndices(dump, state.AddIndex); err != nil {
		return nil, err
	}

	return state, nil
}

func convertBoxToPseudoState(box StateFileBox,
	rootDir string) (*PseudoState, error) {

	dump, err := convertBoxToDump(box, rootDir)
	if err != nil {
		return nil, err
	}

	if dump.Type != StateTypePseudo && dump.Type != StateTypeBase {
		return nil, NewValidationError(
			fmt.Sprintf("state file %q holds a %q, expected %q or %q",
				box.FilePath, dump.Type, StateTypePseudo, StateTypeBase),
			nil).
			WithCode(ErrCodeSerialFormat)
	}

	data := make(map[string]*Handle, len(dump.Data))

	err = restoreIndices(dump, func(id string, h *Handle) {
		data[id] = h
	})
	if err != nil {
		return nil, err
	}

	return NewPseudoState(data, dumpLevel(dump)), nil
}

func restoreIndices(dump *StateDump, add func(string, *Handle)) error {
	for id, serial := range dump.Data {
		if serial == nil {
			add(id, nil)
			continue
		}

		h, err := ParseHandle(*serial)
		if err != nil {
			return err
		}

		add(id, &h)
	}

	return nil
}

func dumpLevel(dump *StateDump) string {
	if dump.Level == nil {
		return ""
	}

	return *dump.Level
}

func writeJSONFile(path string, v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, encoded, 0o644)
}

func readJSONFile(path string, v any) error {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return json.Unmarshal(encoded, v)
}

func storePath(filePath, rootDir string) string {
	if rootDir == "" {
		return filePath
	}

	if rel, err := filepath.Rel(rootDir, filePath); err == nil {
		return rel
	}

	return filePath
}

func loadPath(filePath, rootDir string) string {
	if rootDir == "" || filepath.IsAbs(filePath) {
		return filePath
	}

	return filepath.Join(rootDir, filePath)
}
