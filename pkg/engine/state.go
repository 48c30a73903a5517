package engine

import (
	"sort"
	"strings"
)

// State type tags used in the persisted datastate file format.
const (
	StateTypeBase   = "BaseState"
	StateTypePseudo = "PseudoState"
	StateTypeData   = "DataState"
)

// State is the read side shared by BaseState, PseudoState and DataState: a
// mapping from variable identifier to pool handle, with an optional level.
// A nil handle records a cleared variable.
type State interface {
	TypeName() string
	Level() string
	HasLevel() bool
	Identifiers() []string
	HasIndex(id string) bool
	GetIndex(id string) (*Handle, bool)
	MirrorMap() map[string]*Handle
	Count() int
	Dump() *StateDump
}

// StateDump is the JSON document written for one serialized state.
type StateDump struct {
	Type   string             `json:"type"`
	Level  *string            `json:"level"`
	Data   map[string]*string `json:"data"`
	Masked *bool              `json:"masked,omitempty"`
}

// baseState carries the identifier map and level shared by all state kinds.
// Levels are case-folded at assignment; the empty string means unleveled.
type baseState struct {
	level string
	data  map[string]*Handle
}

func newBaseStateData(data map[string]*Handle, level string) baseState {
	if data == nil {
		data = make(map[string]*Handle)
	}
	return baseState{
		level: strings.ToLower(level),
		data:  data,
	}
}

func (s *baseState) Level() string {
	return s.level
}

func (s *baseState) HasLevel() bool {
	return s.level != ""
}

// Identifiers returns the variable identifiers in the state, sorted. Order
// within one state carries no meaning; sorting keeps listings deterministic.
func (s *baseState) Identifiers() []string {
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *baseState) HasIndex(id string) bool {
	_, ok := s.data[id]
	return ok
}

func (s *baseState) GetIndex(id string) (*Handle, bool) {
	h, ok := s.data[id]
	return h, ok
}

// MirrorMap copies the identifier map. Handles in the copy are independent
// pointers; the pool bookkeeping is untouched, so store the result with care.
func (s *baseState) MirrorMap() map[string]*Handle {
	return copyHandleMap(s.data)
}

func (s *baseState) Count() int {
	return len(s.data)
}

func (s *baseState) dump(typeName string) *StateDump {
	var level *string
	if s.level != "" {
		l := s.level
		level = &l
	}

	data := make(map[string]*string, len(s.data))
	for id, h := range s.data {
		if h == nil {
			data[id] = nil
			continue
		}
		str := h.String()
		data[id] = &str
	}

	return &StateDump{Type: typeName, Level: level, Data: data}
}

func copyHandleMap(data map[string]*Handle) map[string]*Handle {
	out := make(map[string]*Handle, len(data))
	for id, h := range data {
		if h == nil {
			out[id] = nil
			continue
		}
		copied := *h
		out[id] = &copied
	}
	return out
}

// BaseState is a mutable identifier map with no masking. It exists for the
// serialized format; live simulations hold DataStates and PseudoStates.
type BaseState struct {
	baseState
}

// NewBaseState creates an empty base state at the given level ("" for
// unleveled).
func NewBaseState(level string) *BaseState {
	return &BaseState{newBaseStateData(nil, level)}
}

func (s *BaseState) TypeName() string {
	return StateTypeBase
}

// AddIndex maps a variable identifier to a pool handle. A nil handle records
// a cleared variable.
func (s *BaseState) AddIndex(id string, h *Handle) {
	s.data[id] = h
}

func (s *BaseState) Dump() *StateDump {
	return s.dump(StateTypeBase)
}

// PseudoState is the immutable result of merging the active states of a
// simulation. It owns no pool links and must never be used to add or remove
// pool references. The identifier map is copied at construction and no
// mutators exist.
type PseudoState struct {
	baseState
}

// NewPseudoState creates a merge result over a copy of the given map.
func NewPseudoState(data map[string]*Handle, level string) *PseudoState {
	return &PseudoState{newBaseStateData(copyHandleMap(data), level)}
}

func (s *PseudoState) TypeName() string {
	return StateTypePseudo
}

func (s *PseudoState) Dump() *StateDump {
	return s.dump(StateTypePseudo)
}

// DataState is one discrete write of variable values: a mutable, maskable,
// optionally leveled identifier map whose handles hold links in the owning
// pool. Links are created and released by the Controller as states are
// built and destroyed.
type DataState struct {
	baseState
	masked bool
}

// NewDataState creates an empty data state at the given level ("" for
// unleveled).
func NewDataState(level string) *DataState {
	return &DataState{baseState: newBaseStateData(nil, level)}
}

func newDataStateFromMap(data map[string]*Handle, level string) *DataState {
	return &DataState{baseState: newBaseStateData(data, level)}
}

func (s *DataState) TypeName() string {
	return StateTypeData
}

// SetLevel replaces the state's level, case-folded.
func (s *DataState) SetLevel(level string) {
	s.level = strings.ToLower(level)
}

// Mask excludes the state from merge computations without deleting it.
func (s *DataState) Mask() {
	s.masked = true
}

// Unmask returns the state to the merge computation.
func (s *DataState) Unmask() {
	s.masked = false
}

// IsMasked reports whether the state is excluded from merges.
func (s *DataState) IsMasked() bool {
	return s.masked
}

// AddIndex maps a variable identifier to a pool handle. A nil handle records
// a cleared variable.
func (s *DataState) AddIndex(id string, h *Handle) {
	s.data[id] = h
}

// PopIndex removes and returns the handle for a variable identifier.
func (s *DataState) PopIndex(id string) (*Handle, bool) {
	h, ok := s.data[id]
	if !ok {
		return nil, false
	}
	delete(s.data, id)
	return h, true
}

// Clone copies the state, including an independent identifier map. The pool
// is not updated; the caller owns the link accounting for the copy.
func (s *DataState) Clone() *DataState {
	clone := newDataStateFromMap(copyHandleMap(s.data), s.level)
	clone.masked = s.masked
	return clone
}

func (s *DataState) Dump() *StateDump {
	dump := s.dump(StateTypeData)
	masked := s.masked
	dump.Masked = &masked
	return dump
}
