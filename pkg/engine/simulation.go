package engine

import (
	"fmt"
	"strings"
)

// Simulation holds the branchable history of one simulation: the active
// data state stack (applied in push order, last wins on merge), the redo
// stack holding states popped by undo, the cached merged state and the
// named hubs that schedule interface execution.
type Simulation struct {
	title        string
	hubs         map[string]*Hub
	hubOrder     []string
	activeStates []*DataState
	redoStates   []*DataState
	merged       *PseudoState
}

// NewSimulation creates an empty simulation with the given title.
func NewSimulation(title string) *Simulation {
	return &Simulation{
		title: title,
		hubs:  make(map[string]*Hub),
	}
}

// Title returns the simulation title.
func (s *Simulation) Title() string {
	return s.title
}

// SetTitle replaces the simulation title.
func (s *Simulation) SetTitle(title string) {
	s.title = title
}

// SetHub attaches a hub under the given identifier, replacing any existing
// hub with that identifier.
func (s *Simulation) SetHub(hubID string, hub *Hub) {
	if _, ok := s.hubs[hubID]; !ok {
		s.hubOrder = append(s.hubOrder, hubID)
	}
	s.hubs[hubID] = hub
	hub.id = hubID
}

// GetHub returns the hub with the given identifier.
func (s *Simulation) GetHub(hubID string) (*Hub, error) {
	hub, ok := s.hubs[hubID]
	if !ok {
		return nil, NewNotFoundError(
			fmt.Sprintf("hub %q not found in simulation", hubID),
			nil).WithCode(ErrCodeNotFound)
	}
	return hub, nil
}

// HubIDs returns the hub identifiers in attachment order.
func (s *Simulation) HubIDs() []string {
	ids := make([]string, len(s.hubOrder))
	copy(ids, s.hubOrder)
	return ids
}

// SetMergedState caches the merged pseudo state.
func (s *Simulation) SetMergedState(merged *PseudoState) {
	s.merged = merged
}

// MergedState returns the cached merge, or nil when it has been invalidated.
func (s *Simulation) MergedState() *PseudoState {
	return s.merged
}

// MirrorActiveStates deep-copies the active state stack. Storing the copies
// without updating the pool invalidates the link accounting.
func (s *Simulation) MirrorActiveStates() []*DataState {
	return cloneStates(s.activeStates)
}

// MirrorAllStates deep-copies every state, active in push order followed by
// the redo stack in chronological order.
func (s *Simulation) MirrorAllStates() []*DataState {
	mirror := cloneStates(s.activeStates)
	redo := cloneStates(s.redoStates)
	for i := len(redo) - 1; i >= 0; i-- {
		mirror = append(mirror, redo[i])
	}
	return mirror
}

// CountStates returns the total number of states, active plus redo.
func (s *Simulation) CountStates() int {
	return len(s.activeStates) + len(s.redoStates)
}

// ActiveStates returns the active state stack in push order. The slice is a
// copy; the states are not.
func (s *Simulation) ActiveStates() []*DataState {
	out := make([]*DataState, len(s.activeStates))
	copy(out, s.activeStates)
	return out
}

// RedoStates returns the redo stack. The slice is a copy; the states are
// not.
func (s *Simulation) RedoStates() []*DataState {
	out := make([]*DataState, len(s.redoStates))
	copy(out, s.redoStates)
	return out
}

// AddState pushes a data state onto the active stack, or replaces the top
// state when overwrite is set. Pushing clears the redo stack; the displaced
// redo states are returned so the caller can release their pool links. The
// merged cache is invalidated.
func (s *Simulation) AddState(state *DataState, overwrite bool) []*DataState {
	if overwrite && len(s.activeStates) > 0 {
		s.activeStates[len(s.activeStates)-1] = state
	} else {
		s.activeStates = append(s.activeStates, state)
	}

	removed := s.redoStates
	s.redoStates = nil
	s.merged = nil

	return removed
}

// Clone returns an independent copy of the simulation state stacks and
// hubs. Pool links are not bumped: clones are read-only views and must
// not be released against the pool.
func (s *Simulation) Clone() *Simulation {
	clone := NewSimulation(s.title)

	for _, hubID := range s.hubOrder {
		clone.SetHub(hubID, s.hubs[hubID].Clone())
	}

	clone.activeStates = cloneStates(s.activeStates)
	clone.redoStates = cloneStates(s.redoStates)

	return clone
}

// pushRedoState appends directly to the redo stack, used when
// rebuilding a simulation from serialised form.
func (s *Simulation) pushRedoState(state *DataState) {
	s.redoStates = append(s.redoStates, state)
}

// UndoState moves the newest active state onto the redo stack. It reports
// whether a state was moved.
func (s *Simulation) UndoState() bool {
	if len(s.activeStates) == 0 {
		return false
	}

	last := s.activeStates[len(s.activeStates)-1]
	s.activeStates = s.activeStates[:len(s.activeStates)-1]
	s.redoStates = append(s.redoStates, last)
	s.merged = nil

	return true
}

// RedoState moves the newest redo state back onto the active stack. It
// reports whether a state was moved.
func (s *Simulation) RedoState() bool {
	if len(s.redoStates) == 0 {
		return false
	}

	next := s.redoStates[len(s.redoStates)-1]
	s.redoStates = s.redoStates[:len(s.redoStates)-1]
	s.activeStates = append(s.activeStates, next)
	s.merged = nil

	return true
}

// ClearStates drops every state and the merged cache. The pool is not
// touched; release links first.
func (s *Simulation) ClearStates() {
	s.activeStates = nil
	s.redoStates = nil
	s.merged = nil
}

// MaskStates masks states whose level contains the search string
// (case-insensitive; empty matches every state). When maskAfter names a
// level, masking starts after the final appearance of that level in the
// state history, spanning the active and redo stacks. Returns the number of
// states masked.
func (s *Simulation) MaskStates(searchStr, maskAfter string) int {
	var (
		activeObserved, redoObserved bool
		activeStart, redoStart       int
		activeFound, redoFound       bool
	)

	// Search both stacks so masking that starts inside the redo history is
	// handled: if the final appearance of the level was undone, only redo
	// states after it may be masked.
	if maskAfter != "" {
		maskAfter = strings.ToLower(maskAfter)
		activeObserved, activeStart, activeFound =
			startIndexAfterLevel(s.activeStates, maskAfter, false)
		redoObserved, redoStart, redoFound =
			startIndexAfterLevel(s.redoStates, maskAfter, true)
	} else {
		activeObserved = true
		activeFound = true
	}

	maskCount := 0

	if activeObserved && !redoObserved && activeFound {
		maskCount += maskStateList(s.activeStates, searchStr, activeStart, false)
	}

	if activeObserved && !redoObserved {
		maskCount += maskStateList(s.redoStates, searchStr, 0, true)
	}

	if redoObserved && redoFound {
		maskCount += maskStateList(s.redoStates, searchStr, redoStart, true)
	}

	if maskCount > 0 {
		s.merged = nil
	}

	return maskCount
}

// UnmaskStates unmasks states whose level contains the search string, or
// every masked state when the search string is empty. Returns the number of
// states unmasked.
func (s *Simulation) UnmaskStates(searchStr string) int {
	unmaskCount := 0

	for _, states := range [][]*DataState{s.activeStates, s.redoStates} {
		for _, state := range states {
			if !state.IsMasked() {
				continue
			}
			if !levelMatches(state.Level(), searchStr) {
				continue
			}
			state.Unmask()
			unmaskCount++
		}
	}

	if unmaskCount > 0 {
		s.merged = nil
	}

	return unmaskCount
}

// PopMaskedStates permanently removes every masked state from both stacks
// and returns them, active first, so the caller can release their pool
// links.
func (s *Simulation) PopMaskedStates() []*DataState {
	var removed []*DataState
	var newActive, newRedo []*DataState

	for _, state := range s.activeStates {
		if state.IsMasked() {
			removed = append(removed, state)
		} else {
			newActive = append(newActive, state)
		}
	}
	for _, state := range s.redoStates {
		if state.IsMasked() {
			removed = append(removed, state)
		} else {
			newRedo = append(newRedo, state)
		}
	}

	s.activeStates = newActive
	s.redoStates = newRedo
	s.merged = nil

	return removed
}

// ActiveLevels lists the levels of the active states in push order.
// Unleveled states contribute an empty string when showNone is set and are
// skipped otherwise; masked states are skipped unless showMasked is set.
func (s *Simulation) ActiveLevels(showNone, showMasked bool) []string {
	return stateLevels(s.activeStates, showNone, showMasked)
}

// AllLevels lists the levels of the active states followed by the redo
// states.
func (s *Simulation) AllLevels(showNone, showMasked bool) []string {
	result := stateLevels(s.activeStates, showNone, showMasked)
	return append(result, stateLevels(s.redoStates, showNone, showMasked)...)
}

// LastLevel returns the level of the newest qualifying active state.
func (s *Simulation) LastLevel(showNone, showMasked bool) (string, bool) {
	levels := s.ActiveLevels(showNone, showMasked)
	if len(levels) == 0 {
		return "", false
	}
	return levels[len(levels)-1], true
}

func cloneStates(states []*DataState) []*DataState {
	out := make([]*DataState, len(states))
	for i, state := range states {
		out[i] = state.Clone()
	}
	return out
}

func stateLevels(states []*DataState, showNone, showMasked bool) []string {
	var result []string
	for _, state := range states {
		if !showNone && !state.HasLevel() {
			continue
		}
		if !showMasked && state.IsMasked() {
			continue
		}
		result = append(result, state.Level())
	}
	return result
}

func levelMatches(level, searchStr string) bool {
	if searchStr == "" {
		return true
	}
	return level != "" && strings.Contains(level, strings.ToLower(searchStr))
}

// startIndexAfterLevel locates the first state after the final appearance
// of the given level. The scan tolerates the level reappearing: a candidate
// start index is cancelled whenever the level is seen again. For the redo
// stack, which stores states newest-first, the scan runs reversed and the
// returned index counts from the chronological start.
func startIndexAfterLevel(states []*DataState, maskAfter string,
	listReversed bool) (observed bool, start int, found bool) {

	iterate := func(fn func(i int, state *DataState)) {
		if listReversed {
			for i := 0; i < len(states); i++ {
				fn(i, states[len(states)-1-i])
			}
		} else {
			for i, state := range states {
				fn(i, state)
			}
		}
	}

	iterate(func(i int, state *DataState) {
		if observed {
			if !found && state.Level() != maskAfter {
				start = i
				found = true
			} else if found && state.Level() == maskAfter {
				found = false
			}
		} else if state.Level() == maskAfter {
			observed = true
		}
	})

	return observed, start, found
}

func maskStateList(states []*DataState, searchStr string, startIndex int,
	listReversed bool) int {

	if len(states) == 0 {
		return 0
	}

	var targets []*DataState
	if listReversed {
		end := len(states) - startIndex
		for i := end - 1; i >= 0; i-- {
			targets = append(targets, states[i])
		}
	} else {
		targets = states[startIndex:]
	}

	maskCount := 0
	for _, state := range targets {
		if state.IsMasked() {
			continue
		}
		if !levelMatches(state.Level(), searchStr) {
			continue
		}
		state.Mask()
		maskCount++
	}

	return maskCount
}
