package plugins

import (
	"context"
	"fmt"
)

// ConnectFunc executes an interface, reading inputs from and writing
// outputs to the bag.
type ConnectFunc func(ctx context.Context, data *DataBag) error

// Builder composes an Interface from its capability parts at construction
// time. Plugins that do not need a bespoke type declare their contract
// through a builder instead.
type Builder struct {
	name     string
	kind     Kind
	inputs   []InputSpec
	outputs  []string
	optional []string
	idMap    map[string]string
	weight   int
	weighted bool
	connect  ConnectFunc
}

// NewBuilder starts a builder for an interface with the given unique name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, kind: KindMap}
}

// Kind sets how the interface exchanges data. Defaults to KindMap.
func (b *Builder) Kind(kind Kind) *Builder {
	b.kind = kind
	return b
}

// Inputs declares the input variables.
func (b *Builder) Inputs(specs ...InputSpec) *Builder {
	b.inputs = specs
	return b
}

// Outputs declares the output variables.
func (b *Builder) Outputs(ids ...string) *Builder {
	b.outputs = ids
	return b
}

// Optional declares the optional subset of the inputs.
func (b *Builder) Optional(ids ...string) *Builder {
	b.optional = ids
	return b
}

// IDMap declares the local-alias to universal-identifier mapping.
func (b *Builder) IDMap(idMap map[string]string) *Builder {
	b.idMap = idMap
	return b
}

// Weight declares a hub ordering weight, making the result a
// WeightedInterface.
func (b *Builder) Weight(weight int) *Builder {
	b.weight = weight
	b.weighted = true
	return b
}

// Connect sets the execution function.
func (b *Builder) Connect(fn ConnectFunc) *Builder {
	b.connect = fn
	return b
}

// Build validates the declarations and returns the composed interface.
func (b *Builder) Build() (Interface, error) {
	if b.name == "" {
		return nil, fmt.Errorf("an interface requires a name")
	}
	if b.connect == nil {
		return nil, fmt.Errorf(
			"interface %s requires a connect function", b.name)
	}

	built := &builtInterface{
		name:     b.name,
		kind:     b.kind,
		inputs:   append([]InputSpec(nil), b.inputs...),
		outputs:  append([]string(nil), b.outputs...),
		optional: append([]string(nil), b.optional...),
		idMap:    b.idMap,
		connect:  b.connect,
	}

	var iface Interface = built
	if b.weighted {
		iface = &weightedInterface{builtInterface: built, weight: b.weight}
	}

	if err := Validate(iface); err != nil {
		return nil, err
	}

	return iface, nil
}

type builtInterface struct {
	name     string
	kind     Kind
	inputs   []InputSpec
	outputs  []string
	optional []string
	idMap    map[string]string
	connect  ConnectFunc
}

func (i *builtInterface) Name() string                  { return i.name }
func (i *builtInterface) Kind() Kind                    { return i.kind }
func (i *builtInterface) DeclareInputs() []InputSpec    { return i.inputs }
func (i *builtInterface) DeclareOutputs() []string      { return i.outputs }
func (i *builtInterface) DeclareOptional() []string     { return i.optional }
func (i *builtInterface) DeclareIDMap() map[string]string {
	return i.idMap
}

func (i *builtInterface) Connect(ctx context.Context, data *DataBag) error {
	return i.connect(ctx, data)
}

type weightedInterface struct {
	*builtInterface
	weight int
}

func (i *weightedInterface) DeclareWeight() int { return i.weight }

// RawInterface collects caller-provided values for any declared outputs.
// It is how user-entered data flows into the system: the caller sets
// variables on the interface and Connect passes them through.
type RawInterface struct {
	name      string
	outputs   []string
	variables map[string]any
}

// NewRawInterface creates a raw interface named for the variables it
// feeds.
func NewRawInterface(name string, outputs ...string) *RawInterface {
	return &RawInterface{
		name:      name,
		outputs:   outputs,
		variables: make(map[string]any),
	}
}

func (i *RawInterface) Name() string               { return i.name }
func (i *RawInterface) Kind() Kind                 { return KindRaw }
func (i *RawInterface) DeclareInputs() []InputSpec { return nil }
func (i *RawInterface) DeclareOutputs() []string   { return i.outputs }
func (i *RawInterface) DeclareOptional() []string  { return nil }
func (i *RawInterface) DeclareIDMap() map[string]string {
	return nil
}

// SetVariables stores identifier to value pairs for the connect call.
func (i *RawInterface) SetVariables(variables map[string]any) error {
	valid := make(map[string]struct{}, len(i.outputs))
	for _, id := range i.outputs {
		valid[id] = struct{}{}
	}

	for id, value := range variables {
		if _, ok := valid[id]; !ok {
			return fmt.Errorf(
				"identifier %s not recognised for interface %s", id, i.name)
		}
		i.variables[id] = value
	}

	return nil
}

func (i *RawInterface) Connect(_ context.Context, data *DataBag) error {
	for id, value := range i.variables {
		if err := data.PutData(id, value); err != nil {
			return err
		}
	}
	return nil
}
