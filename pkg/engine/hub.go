package engine

import (
	"fmt"

	"github.com/arrayforge/arrayforge/pkg/plugins"
)

// Hub groups interfaces of one kind within a simulation and tracks their
// progress from scheduled to completed. Ordering is kept as explicit
// validated sequences: scheduled interfaces in execution order and completed
// interfaces in chronological completion order. A strict hub (a pipeline)
// only completes the next scheduled interface; a plain hub completes any
// scheduled interface.
type Hub struct {
	id             string
	interfaceType  string
	hasOrder       bool
	strict         bool
	noComplete     bool
	forceCompleted bool

	scheduledOrder []string
	completedOrder []string
	interfaces     map[string]plugins.Interface
}

// NewHub creates an unordered hub for the given interface type. A
// no-complete hub ignores completion calls, for hubs whose interfaces may
// run repeatedly.
func NewHub(interfaceType string, noComplete bool) *Hub {
	return &Hub{
		interfaceType: interfaceType,
		noComplete:    noComplete,
		interfaces:    make(map[string]plugins.Interface),
	}
}

// NewPipeline creates an ordered hub with strict next-only completion.
func NewPipeline(interfaceType string, noComplete bool) *Hub {
	hub := NewHub(interfaceType, noComplete)
	hub.hasOrder = true
	hub.strict = true
	return hub
}

// Clone returns a copy of the hub with independent sequence bookkeeping.
// Interface instances are shared; refresh them to obtain clean objects.
func (h *Hub) Clone() *Hub {
	clone := &Hub{
		id:             h.id,
		interfaceType:  h.interfaceType,
		hasOrder:       h.hasOrder,
		strict:         h.strict,
		noComplete:     h.noComplete,
		forceCompleted: h.forceCompleted,
		scheduledOrder: append([]string(nil), h.scheduledOrder...),
		completedOrder: append([]string(nil), h.completedOrder...),
		interfaces:     make(map[string]plugins.Interface, len(h.interfaces)),
	}

	for name, iface := range h.interfaces {
		clone.interfaces[name] = iface
	}

	return clone
}

// ID returns the identifier the hub is attached under in its simulation.
func (h *Hub) ID() string {
	return h.id
}

// InterfaceType returns the interface kind the hub schedules.
func (h *Hub) InterfaceType() string {
	return h.interfaceType
}

// HasOrder reports whether the hub's sequence order is meaningful for
// preceding/upcoming queries.
func (h *Hub) HasOrder() bool {
	return h.hasOrder
}

// IsStrict reports whether completion is restricted to the next scheduled
// interface.
func (h *Hub) IsStrict() bool {
	return h.strict
}

// NoComplete reports whether completion calls are ignored.
func (h *Hub) NoComplete() bool {
	return h.noComplete
}

// ForceCompleted reports whether the hub has been fast-forwarded.
func (h *Hub) ForceCompleted() bool {
	return h.forceCompleted
}

// SetForceCompleted marks every interface as notionally completed without
// executing anything.
func (h *Hub) SetForceCompleted(force bool) {
	h.forceCompleted = force
}

// AddInterface associates an interface instance with the hub at the end of
// the scheduled sequence.
func (h *Hub) AddInterface(name string, iface plugins.Interface) error {
	if _, ok := h.interfaces[name]; ok {
		return NewUsageError(
			fmt.Sprintf("interface %q is already associated to the hub", name),
			nil).WithInterface(name)
	}

	h.interfaces[name] = iface
	h.scheduledOrder = append(h.scheduledOrder, name)

	return nil
}

// RemoveInterface dissociates an interface from the hub.
func (h *Hub) RemoveInterface(name string) error {
	if _, ok := h.interfaces[name]; !ok {
		return h.notFound(name)
	}

	delete(h.interfaces, name)
	h.scheduledOrder = removeName(h.scheduledOrder, name)
	h.completedOrder = removeName(h.completedOrder, name)

	return nil
}

// RefreshInterface replaces the instance for a name without moving it in
// the sequence.
func (h *Hub) RefreshInterface(name string, iface plugins.Interface) error {
	if _, ok := h.interfaces[name]; !ok {
		return h.notFound(name)
	}
	h.interfaces[name] = iface
	return nil
}

// GetInterface returns the instance associated with a name.
func (h *Hub) GetInterface(name string) (plugins.Interface, error) {
	iface, ok := h.interfaces[name]
	if !ok {
		return nil, h.notFound(name)
	}
	return iface, nil
}

// HasInterface reports whether a name is associated with the hub.
func (h *Hub) HasInterface(name string) bool {
	_, ok := h.interfaces[name]
	return ok
}

// ScheduledNames returns the not-yet-completed interfaces in execution
// order.
func (h *Hub) ScheduledNames() []string {
	out := make([]string, len(h.scheduledOrder))
	copy(out, h.scheduledOrder)
	return out
}

// CompletedNames returns the completed interfaces in chronological
// completion order.
func (h *Hub) CompletedNames() []string {
	out := make([]string, len(h.completedOrder))
	copy(out, h.completedOrder)
	return out
}

// SequencedNames returns every associated interface, scheduled first then
// completed in chronological order.
func (h *Hub) SequencedNames() []string {
	out := make([]string, 0, len(h.scheduledOrder)+len(h.completedOrder))
	out = append(out, h.scheduledOrder...)
	out = append(out, h.completedOrder...)
	return out
}

// PrecedingNames returns the interfaces before the named one in hub order.
// With ignoreCompleted set only the scheduled sequence is considered. An
// unordered hub has no preceding interfaces.
func (h *Hub) PrecedingNames(name string, ignoreCompleted bool) []string {
	if !h.hasOrder {
		return nil
	}

	var order []string
	if ignoreCompleted {
		order = h.scheduledOrder
	} else {
		order = h.SequencedNames()
	}

	for i, candidate := range order {
		if candidate == name {
			out := make([]string, i)
			copy(out, order[:i])
			return out
		}
	}

	return nil
}

// UpcomingNames returns the named interface and those after it in hub
// order. With ignoreScheduled set only the completed sequence is
// considered. An unordered hub has no upcoming interfaces.
func (h *Hub) UpcomingNames(name string, ignoreScheduled bool) []string {
	if !h.hasOrder {
		return nil
	}

	var order []string
	if ignoreScheduled {
		order = h.completedOrder
	} else {
		order = h.SequencedNames()
	}

	for i, candidate := range order {
		if candidate == name {
			out := make([]string, len(order)-i)
			copy(out, order[i:])
			return out
		}
	}

	return nil
}

// NextScheduled returns the next interface due to execute.
func (h *Hub) NextScheduled() (string, bool) {
	if len(h.scheduledOrder) == 0 {
		return "", false
	}
	return h.scheduledOrder[0], true
}

// LastCompleted returns the most recently completed interface.
func (h *Hub) LastCompleted() (string, bool) {
	if len(h.completedOrder) == 0 {
		return "", false
	}
	return h.completedOrder[len(h.completedOrder)-1], true
}

// SetCompleted moves an interface from scheduled to completed. On a strict
// hub the name must be the next scheduled interface; an empty name
// completes the next one. On a no-complete hub the call is a no-op.
func (h *Hub) SetCompleted(name string) error {
	if h.noComplete {
		return nil
	}

	if h.strict {
		next, ok := h.NextScheduled()
		if !ok {
			return NewUsageError("no scheduled interfaces remain", nil)
		}
		if name != "" && name != next {
			return NewUsageError(
				fmt.Sprintf("interface %q is not the next interface in the pipeline",
					name),
				nil).WithInterface(name)
		}
		name = next
	}

	found := false
	for _, candidate := range h.scheduledOrder {
		if candidate == name {
			found = true
			break
		}
	}
	if !found {
		return NewNotFoundError(
			fmt.Sprintf("interface %q not found in the scheduled sequence", name),
			nil).WithInterface(name).WithCode(ErrCodeNotFound)
	}

	h.scheduledOrder = removeName(h.scheduledOrder, name)
	h.completedOrder = append(h.completedOrder, name)

	return nil
}

// IsCompleted reports whether the named interface has completed.
func (h *Hub) IsCompleted(name string) bool {
	for _, candidate := range h.completedOrder {
		if candidate == name {
			return true
		}
	}
	return false
}

// Undo moves the most recently completed interface back to the front of
// the scheduled sequence. It reports whether anything moved.
func (h *Hub) Undo() bool {
	name, ok := h.LastCompleted()
	if !ok {
		return false
	}

	h.completedOrder = h.completedOrder[:len(h.completedOrder)-1]
	h.scheduledOrder = append([]string{name}, h.scheduledOrder...)

	return true
}

// Rollback undoes completions until the named interface is scheduled
// again.
func (h *Hub) Rollback(name string) error {
	if !h.IsCompleted(name) {
		return NewNotFoundError(
			fmt.Sprintf("interface %q not found in the completed sequence", name),
			nil).WithInterface(name).WithCode(ErrCodeNotFound)
	}

	for h.IsCompleted(name) {
		h.Undo()
	}

	return nil
}

// Reset undoes every completion, returning the hub to its initial
// schedule.
func (h *Hub) Reset() {
	for h.Undo() {
	}
	h.forceCompleted = false
}

// CheckNextScheduled makes the named interface the next to execute,
// rolling back completions if needed. On a strict hub a scheduled
// interface other than the next cannot be promoted.
func (h *Hub) CheckNextScheduled(name string) error {
	if h.IsCompleted(name) {
		return h.Rollback(name)
	}

	if h.strict {
		next, _ := h.NextScheduled()
		if next != name {
			return NewUsageError(
				fmt.Sprintf("interface %q can not be scheduled", name),
				nil).WithInterface(name)
		}
		return nil
	}

	if !h.HasInterface(name) {
		return NewUsageError(
			fmt.Sprintf("interface %q can not be scheduled", name),
			nil).WithInterface(name)
	}

	return nil
}

func (h *Hub) notFound(name string) error {
	return NewNotFoundError(
		fmt.Sprintf("interface %q not found in hub %q", name, h.id),
		nil).WithInterface(name).WithCode(ErrCodeNotFound)
}

func removeName(names []string, name string) []string {
	out := names[:0]
	for _, candidate := range names {
		if candidate != name {
			out = append(out, candidate)
		}
	}
	return out
}
