package plugins

import (
	"errors"
	"fmt"
	"sort"
)

// ErrWeightOrder is returned when interface weights are duplicated or
// otherwise fail to order the interfaces strictly.
var ErrWeightOrder = errors.New("interface weights are not monotonic")

// Factory constructs a fresh instance of an interface class.
type Factory func() (Interface, error)

// Registration associates an interface class name with its constructor.
// The kind is recorded so registries can filter without instantiating.
type Registration struct {
	ClassName string
	Kind      Kind
	New       Factory
}

// Manifest is the explicit list of interface classes exposed by a plugin
// package.
type Manifest struct {
	Package    string
	Interfaces []Registration
}

// NamedClass pairs an interface's display name with its class name, in
// resolved ordering.
type NamedClass struct {
	Name      string
	ClassName string
}

type registryEntry struct {
	registration Registration
	prototype    Interface
}

// Registry holds the known interface classes and answers contract queries
// over them. Registration is explicit through manifests; one prototype
// instance per class is constructed and validated up front, and execution
// always works on fresh instances.
type Registry struct {
	order   []string
	entries map[string]registryEntry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

// Register adds one interface class. The prototype is constructed and its
// declarations validated immediately, so a malformed plugin fails at
// registration rather than first use.
func (r *Registry) Register(reg Registration) error {
	if reg.ClassName == "" {
		return fmt.Errorf("a registration requires a class name")
	}
	if reg.New == nil {
		return fmt.Errorf(
			"registration for class %s has no factory", reg.ClassName)
	}
	if _, ok := r.entries[reg.ClassName]; ok {
		return fmt.Errorf(
			"interface class %s is already registered", reg.ClassName)
	}

	prototype, err := reg.New()
	if err != nil {
		return fmt.Errorf(
			"constructing prototype for class %s: %w", reg.ClassName, err)
	}
	if err := Validate(prototype); err != nil {
		return fmt.Errorf("validating class %s: %w", reg.ClassName, err)
	}
	if reg.Kind == "" {
		reg.Kind = prototype.Kind()
	}

	r.entries[reg.ClassName] = registryEntry{
		registration: reg,
		prototype:    prototype,
	}
	r.order = append(r.order, reg.ClassName)

	return nil
}

// RegisterManifest registers every class a plugin package exposes.
func (r *Registry) RegisterManifest(manifest Manifest) error {
	for _, reg := range manifest.Interfaces {
		if err := r.Register(reg); err != nil {
			return fmt.Errorf(
				"registering manifest for package %s: %w", manifest.Package, err)
		}
	}
	return nil
}

// ClassNames returns the registered class names in registration order.
func (r *Registry) ClassNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// HasClass reports whether a class name is registered.
func (r *Registry) HasClass(className string) bool {
	_, ok := r.entries[className]
	return ok
}

// Prototype returns the validated prototype instance for contract queries.
// Callers must not execute or mutate it.
func (r *Registry) Prototype(className string) (Interface, error) {
	entry, ok := r.entries[className]
	if !ok {
		return nil, fmt.Errorf("interface class %s is not registered", className)
	}
	return entry.prototype, nil
}

// NewInterface constructs a fresh instance of a class for execution.
func (r *Registry) NewInterface(className string) (Interface, error) {
	entry, ok := r.entries[className]
	if !ok {
		return nil, fmt.Errorf("interface class %s is not registered", className)
	}
	return entry.registration.New()
}

// AllVariables returns the union of every variable declared as an input or
// output across the registered interfaces, sorted.
func (r *Registry) AllVariables() []string {
	seen := make(map[string]struct{})
	for _, className := range r.order {
		for _, id := range AllVariableIDs(r.entries[className].prototype) {
			seen[id] = struct{}{}
		}
	}

	all := make([]string, 0, len(seen))
	for id := range seen {
		all = append(all, id)
	}
	sort.Strings(all)

	return all
}

// ProvidingInterfaces returns the classes which output the given variable,
// in registration order.
func (r *Registry) ProvidingInterfaces(variableID string) []string {
	var providing []string
	for _, className := range r.order {
		for _, id := range r.entries[className].prototype.DeclareOutputs() {
			if id == variableID {
				providing = append(providing, className)
				break
			}
		}
	}
	return providing
}

// ReceivingInterfaces returns the classes which take the given variable as
// an input, in registration order.
func (r *Registry) ReceivingInterfaces(variableID string) []string {
	var receiving []string
	for _, className := range r.order {
		inputs, _ := InputIDs(r.entries[className].prototype)
		for _, id := range inputs {
			if id == variableID {
				receiving = append(receiving, className)
				break
			}
		}
	}
	return receiving
}

// InterfaceNames maps display names to class names. With sortWeighted set
// and any interface declaring a weight, every interface must declare one
// and the result is ordered by strictly increasing weight; a duplicate
// weight returns ErrWeightOrder.
func (r *Registry) InterfaceNames(sortWeighted bool) ([]NamedClass, error) {
	type weighted struct {
		named  NamedClass
		weight int
	}

	var names []NamedClass
	var weights []weighted
	anyWeighted := false

	for _, className := range r.order {
		prototype := r.entries[className].prototype
		named := NamedClass{Name: prototype.Name(), ClassName: className}
		names = append(names, named)

		if w, ok := prototype.(WeightedInterface); ok {
			anyWeighted = true
			weights = append(weights, weighted{named: named, weight: w.DeclareWeight()})
		}
	}

	if !sortWeighted || !anyWeighted {
		return names, nil
	}

	if len(weights) != len(names) {
		return nil, fmt.Errorf(
			"%w: %d of %d interfaces declare no weight",
			ErrWeightOrder, len(names)-len(weights), len(names))
	}

	sort.SliceStable(weights, func(i, j int) bool {
		return weights[i].weight < weights[j].weight
	})

	for i := 1; i < len(weights); i++ {
		if weights[i].weight <= weights[i-1].weight {
			return nil, fmt.Errorf(
				"%w: interfaces %s and %s share weight %d",
				ErrWeightOrder,
				weights[i-1].named.ClassName,
				weights[i].named.ClassName,
				weights[i].weight)
		}
	}

	sorted := make([]NamedClass, len(weights))
	for i, w := range weights {
		sorted[i] = w.named
	}

	return sorted, nil
}

// FilterByKind returns a view containing only the classes of one kind,
// preserving registration order.
func (r *Registry) FilterByKind(kind Kind) *Registry {
	filtered := NewRegistry()
	for _, className := range r.order {
		entry := r.entries[className]
		if entry.registration.Kind != kind {
			continue
		}
		filtered.entries[className] = entry
		filtered.order = append(filtered.order, className)
	}
	return filtered
}

// NamedRegistry is a registry restricted to a single interface kind,
// mirroring a hub that schedules only one kind of interface. Manifest
// registration silently skips classes of other kinds.
type NamedRegistry struct {
	*Registry
	kind Kind
}

// NewNamedRegistry creates a registry accepting only the given kind.
func NewNamedRegistry(kind Kind) *NamedRegistry {
	return &NamedRegistry{Registry: NewRegistry(), kind: kind}
}

// InterfaceKind returns the accepted kind.
func (r *NamedRegistry) InterfaceKind() Kind {
	return r.kind
}

// Register adds one class, rejecting a kind mismatch.
func (r *NamedRegistry) Register(reg Registration) error {
	if reg.Kind != "" && reg.Kind != r.kind {
		return fmt.Errorf(
			"interface class %s has kind %s, registry accepts %s",
			reg.ClassName, reg.Kind, r.kind)
	}
	return r.Registry.Register(reg)
}

// RegisterManifest registers the classes of the accepted kind, skipping
// the rest.
func (r *NamedRegistry) RegisterManifest(manifest Manifest) error {
	for _, reg := range manifest.Interfaces {
		if reg.Kind != "" && reg.Kind != r.kind {
			continue
		}
		if err := r.Register(reg); err != nil {
			return fmt.Errorf(
				"registering manifest for package %s: %w", manifest.Package, err)
		}
	}
	return nil
}
