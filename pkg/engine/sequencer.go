package engine

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/arrayforge/arrayforge/pkg/plugins"
)

// Sequencer manages activation and ordering of interfaces for hubs of a
// given interface type. Each interface type is bound to a registry of
// interface classes, registered explicitly at startup.
type Sequencer struct {
	registries   map[string]*plugins.Registry
	sortWeighted bool
	logger       zerolog.Logger
}

// NewSequencer creates a Sequencer. When sortWeighted is true, available
// interface names for a type are ordered by their declared weights.
func NewSequencer(sortWeighted bool, logger zerolog.Logger) *Sequencer {
	return &Sequencer{
		registries:   make(map[string]*plugins.Registry),
		sortWeighted: sortWeighted,
		logger:       logger.With().Str("component", "sequencer").Logger(),
	}
}

// AddInterfaceType binds an interface type to a registry of interface
// classes. Binding an already known type replaces the registry.
func (s *Sequencer) AddInterfaceType(interfaceType string,
	registry *plugins.Registry) {

	s.registries[interfaceType] = registry
}

// InterfaceTypes returns the bound interface types.
func (s *Sequencer) InterfaceTypes() []string {
	types := make([]string, 0, len(s.registries))
	for t := range s.registries {
		types = append(types, t)
	}

	return types
}

// Registry returns the registry bound to the interface type.
func (s *Sequencer) Registry(interfaceType string) (*plugins.Registry, error) {
	registry, ok := s.registries[interfaceType]
	if !ok {
		return nil, NewNotFoundError(
			fmt.Sprintf("no registry bound for interface type %q",
				interfaceType), nil)
	}

	return registry, nil
}

// names returns the display-name to class-name listing for an interface
// type, checking for duplicate display names.
func (s *Sequencer) names(interfaceType string) ([]plugins.NamedClass, error) {
	registry, err := s.Registry(interfaceType)
	if err != nil {
		return nil, err
	}

	named, err := registry.InterfaceNames(s.sortWeighted)
	if err != nil {
		return nil, NewValidationError(
			fmt.Sprintf("listing interfaces of type %q failed",
				interfaceType), err).
			WithCode(ErrCodeWeightOrder)
	}

	seen := make(map[string]string, len(named))

	for _, nc := range named {
		if prior, ok := seen[nc.Name]; ok {
			return nil, NewConsistencyError(
				fmt.Sprintf("duplicate interface name %q declared by "+
					"classes %s and %s", nc.Name, prior, nc.ClassName), nil)
		}
		seen[nc.Name] = nc.ClassName
	}

	return named, nil
}

// CreateNewHub makes an unordered hub for the interface type.
func (s *Sequencer) CreateNewHub(interfaceType string,
	noComplete bool) (*Hub, error) {

	if _, err := s.Registry(interfaceType); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("interface_type", interfaceType).
		Msg("new hub created")

	return NewHub(interfaceType, noComplete), nil
}

// CreateNewPipeline makes a strictly ordered hub for the interface type.
func (s *Sequencer) CreateNewPipeline(interfaceType string,
	noComplete bool) (*Hub, error) {

	if _, err := s.Registry(interfaceType); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("interface_type", interfaceType).
		Msg("new pipeline created")

	return NewPipeline(interfaceType, noComplete), nil
}

// AvailableNames returns every interface name registered for the hub's
// interface type.
func (s *Sequencer) AvailableNames(hub *Hub) ([]string, error) {
	named, err := s.names(hub.InterfaceType())
	if err != nil {
		return nil, err
	}

	names := make([]string, len(named))
	for i, nc := range named {
		names[i] = nc.Name
	}

	return names, nil
}

// ScheduledNames returns display names of the hub's scheduled
// interfaces, in schedule order.
func (s *Sequencer) ScheduledNames(hub *Hub) ([]string, error) {
	return s.filterNames(hub, hub.ScheduledNames())
}

// CompletedNames returns display names of the hub's completed
// interfaces, in completion order.
func (s *Sequencer) CompletedNames(hub *Hub) ([]string, error) {
	return s.filterNames(hub, hub.CompletedNames())
}

// SequencedNames returns display names of every sequenced interface,
// scheduled first then completed.
func (s *Sequencer) SequencedNames(hub *Hub) ([]string, error) {
	return s.filterNames(hub, hub.SequencedNames())
}

// NextName returns the display name of the next scheduled interface.
func (s *Sequencer) NextName(hub *Hub) (string, bool, error) {
	className, ok := hub.NextScheduled()
	if !ok {
		return "", false, nil
	}

	names, err := s.filterNames(hub, []string{className})
	if err != nil {
		return "", false, err
	}

	if len(names) == 0 {
		return "", false, NewConsistencyError(
			fmt.Sprintf("scheduled class %q is not registered for "+
				"interface type %q", className, hub.InterfaceType()), nil)
	}

	return names[0], true, nil
}

// IsAvailable reports whether the interface name is registered for the
// hub's interface type.
func (s *Sequencer) IsAvailable(hub *Hub, interfaceName string) bool {
	named, err := s.names(hub.InterfaceType())
	if err != nil {
		return false
	}

	for _, nc := range named {
		if nc.Name == interfaceName {
			return true
		}
	}

	return false
}

// ClassName resolves the display name to its class name.
func (s *Sequencer) ClassName(hub *Hub, interfaceName string) (string, bool) {
	named, err := s.names(hub.InterfaceType())
	if err != nil {
		return "", false
	}

	for _, nc := range named {
		if nc.Name == interfaceName {
			return nc.ClassName, true
		}
	}

	return "", false
}

// Weight returns the declared weight of the interface, if any.
func (s *Sequencer) Weight(hub *Hub, interfaceName string) (int, bool, error) {
	className, ok := s.ClassName(hub, interfaceName)
	if !ok {
		return 0, false, nil
	}

	registry, err := s.Registry(hub.InterfaceType())
	if err != nil {
		return 0, false, err
	}

	prototype, err := registry.Prototype(className)
	if err != nil {
		return 0, false, NewNotFoundError(
			fmt.Sprintf("interface class %q is not registered",
				className), err)
	}

	if weighted, ok := prototype.(plugins.WeightedInterface); ok {
		return weighted.DeclareWeight(), true, nil
	}

	return 0, false, nil
}

// HasName reports whether the hub has sequenced the interface name.
func (s *Sequencer) HasName(hub *Hub, interfaceName string) bool {
	className, ok := s.ClassName(hub, interfaceName)
	if !ok {
		return false
	}

	return hub.HasInterface(className)
}

// Sequence schedules a fresh instance of the named interface on the hub.
func (s *Sequencer) Sequence(hub *Hub, interfaceName string) error {
	className, iface, err := s.newInterface(hub, interfaceName)
	if err != nil {
		return err
	}

	if err := hub.AddInterface(className, iface); err != nil {
		return err
	}

	s.logger.Debug().
		Str("interface", interfaceName).
		Str("class", className).
		Msg("interface sequenced")

	return nil
}

// RefreshInterfaces replaces every sequenced interface object on the hub
// with a fresh instance, discarding any loaded data.
func (s *Sequencer) RefreshInterfaces(hub *Hub) error {
	for _, className := range hub.SequencedNames() {
		registry, err := s.Registry(hub.InterfaceType())
		if err != nil {
			return err
		}

		iface, err := registry.NewInterface(className)
		if err != nil {
			return NewInternalError(
				fmt.Sprintf("constructing interface class %q failed",
					className), err)
		}

		if err := hub.RefreshInterface(className, iface); err != nil {
			return err
		}
	}

	return nil
}

// CheckNext verifies that the named interface is next in a strictly
// ordered hub.
func (s *Sequencer) CheckNext(hub *Hub, interfaceName string) error {
	className, ok := s.ClassName(hub, interfaceName)
	if !ok {
		return s.wrongType(hub, interfaceName)
	}

	return hub.CheckNextScheduled(className)
}

// Complete marks the named interface as completed on the hub.
func (s *Sequencer) Complete(hub *Hub, interfaceName string) error {
	className, ok := s.ClassName(hub, interfaceName)
	if !ok {
		return s.wrongType(hub, interfaceName)
	}

	return hub.SetCompleted(className)
}

// IsComplete reports whether the named interface has been completed.
func (s *Sequencer) IsComplete(hub *Hub, interfaceName string) (bool, error) {
	className, ok := s.ClassName(hub, interfaceName)
	if !ok {
		return false, s.wrongType(hub, interfaceName)
	}

	return hub.IsCompleted(className), nil
}

// SuggestSequence orders the available interfaces of the hub's type by
// their data dependencies, returning display names in a topological
// order of the variable flow graph.
func (s *Sequencer) SuggestSequence(hub *Hub) ([]string, error) {
	registry, err := s.Registry(hub.InterfaceType())
	if err != nil {
		return nil, err
	}

	builder := plugins.NewGraphBuilder()

	graph, err := builder.BuildGraph(registry, registry.ClassNames())
	if err != nil {
		return nil, NewValidationError(
			fmt.Sprintf("building dependency graph for interface type %q "+
				"failed", hub.InterfaceType()), err)
	}

	return s.filterNames(hub, graph.TopologicalOrder())
}

// filterNames maps class names to display names, preserving the order
// of the class name list.
func (s *Sequencer) filterNames(hub *Hub,
	classNames []string) ([]string, error) {

	named, err := s.names(hub.InterfaceType())
	if err != nil {
		return nil, err
	}

	byClass := make(map[string]string, len(named))
	for _, nc := range named {
		byClass[nc.ClassName] = nc.Name
	}

	names := make([]string, 0, len(classNames))

	for _, className := range classNames {
		if name, ok := byClass[className]; ok {
			names = append(names, name)
		}
	}

	return names, nil
}

// newInterface resolves and constructs a fresh interface instance.
func (s *Sequencer) newInterface(hub *Hub,
	interfaceName string) (string, plugins.Interface, error) {

	className, ok := s.ClassName(hub, interfaceName)
	if !ok {
		return "", nil, s.wrongType(hub, interfaceName)
	}

	registry, err := s.Registry(hub.InterfaceType())
	if err != nil {
		return "", nil, err
	}

	iface, err := registry.NewInterface(className)
	if err != nil {
		return "", nil, NewInternalError(
			fmt.Sprintf("constructing interface class %q failed",
				className), err)
	}

	return className, iface, nil
}

func (s *Sequencer) wrongType(hub *Hub, interfaceName string) error {
	return NewUsageError(
		fmt.Sprintf("interface %q is not of type %q", interfaceName,
			hub.InterfaceType()), nil).
		WithInterface(interfaceName)
}
