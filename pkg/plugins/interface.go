// Package plugins defines the contract between the simulation core and
// external computational modules, together with the registry through which
// implementations are made known. Discovery is explicit: a plugin package
// exposes a manifest of named constructors rather than being found by
// scanning for implementations.
package plugins

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind classifies how an interface exchanges data with the core.
type Kind string

const (
	// KindMap interfaces exchange values through a local-alias id map.
	// Modules and themes are map interfaces.
	KindMap Kind = "map"

	// KindRaw interfaces accept caller-provided values directly, used to
	// feed user input into the system.
	KindRaw Kind = "raw"

	// KindFile interfaces read or write values from a file path.
	KindFile Kind = "file"
)

// InputSpec declares one input variable. A plain input names only the
// variable. A conditional input is active only when the unmask variable is
// present in the merged state and, if unmask values are listed, currently
// holds one of them.
type InputSpec struct {
	VariableID     string
	UnmaskVariable string
	UnmaskValues   []any
}

// Input declares a plain, always-active input.
func Input(variableID string) InputSpec {
	return InputSpec{VariableID: variableID}
}

// MaskedInput declares a conditional input gated on another variable's
// presence or value.
func MaskedInput(variableID, unmaskVariable string, unmaskValues ...any) InputSpec {
	return InputSpec{
		VariableID:     variableID,
		UnmaskVariable: unmaskVariable,
		UnmaskValues:   unmaskValues,
	}
}

// IsConditional reports whether the input is gated on another variable.
func (s InputSpec) IsConditional() bool {
	return s.UnmaskVariable != ""
}

// Interface is the contract implemented by every computational plugin. The
// declared inputs and outputs name variables in the data catalog; Connect
// reads resolved input values from the bag and writes outputs back into it.
type Interface interface {
	Name() string
	Kind() Kind
	DeclareInputs() []InputSpec
	DeclareOutputs() []string
	DeclareOptional() []string
	DeclareIDMap() map[string]string
	Connect(ctx context.Context, data *DataBag) error
}

// WeightedInterface is an interface with a hub ordering weight. Lower
// weights sort first; weights must be unique within a registry.
type WeightedInterface interface {
	Interface
	DeclareWeight() int
}

// FileInterface is an interface which reads or writes a file. The path is
// set before Connect and validated against the declared extensions.
type FileInterface interface {
	Interface
	ValidExtensions() []string
	SetFilePath(path string)
	FilePath() string
}

// InputIDs flattens the declared inputs to their variable identifiers,
// dropping the conditional wrapping, and returns the optional subset.
func InputIDs(iface Interface) (inputs, optional []string) {
	declared := iface.DeclareInputs()
	inputs = make([]string, 0, len(declared))
	for _, spec := range declared {
		inputs = append(inputs, spec.VariableID)
	}

	inputSet := make(map[string]struct{}, len(inputs))
	for _, id := range inputs {
		inputSet[id] = struct{}{}
	}
	for _, id := range iface.DeclareOptional() {
		if _, ok := inputSet[id]; ok {
			optional = append(optional, id)
		}
	}

	return inputs, optional
}

// AllVariableIDs returns the union of an interface's input and output
// identifiers, in declaration order without duplicates.
func AllVariableIDs(iface Interface) []string {
	var all []string
	seen := make(map[string]struct{})

	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		all = append(all, id)
	}

	for _, spec := range iface.DeclareInputs() {
		add(spec.VariableID)
	}
	for _, id := range iface.DeclareOutputs() {
		add(id)
	}

	return all
}

// Validate checks an interface's declarations for internal consistency:
// the optional list must be a subset of the inputs, and a non-empty id map
// must cover every input and output exactly once.
func Validate(iface Interface) error {
	inputs, _ := InputIDs(iface)
	inputSet := make(map[string]struct{}, len(inputs))
	for _, id := range inputs {
		inputSet[id] = struct{}{}
	}

	var badOptional []string
	for _, id := range iface.DeclareOptional() {
		if _, ok := inputSet[id]; !ok {
			badOptional = append(badOptional, id)
		}
	}
	if len(badOptional) > 0 {
		return fmt.Errorf(
			"interface %s declares identifiers as optional without declaring "+
				"them as inputs: %s",
			iface.Name(), strings.Join(badOptional, ", "))
	}

	idMap := iface.DeclareIDMap()
	if len(idMap) == 0 {
		return nil
	}

	mapped := make(map[string]string, len(idMap))
	for local, universal := range idMap {
		if strings.Contains(local, ".") {
			return fmt.Errorf(
				"interface %s maps variable %s to local name %q containing '.'",
				iface.Name(), universal, local)
		}
		if prior, ok := mapped[universal]; ok {
			return fmt.Errorf(
				"interface %s maps identifier %s to both %q and %q",
				iface.Name(), universal, prior, local)
		}
		mapped[universal] = local
	}

	var notMapped []string
	for _, id := range AllVariableIDs(iface) {
		if _, ok := mapped[id]; !ok {
			notMapped = append(notMapped, id)
		}
	}
	if len(notMapped) > 0 {
		return fmt.Errorf(
			"interface %s has unmapped identifiers: %s",
			iface.Name(), strings.Join(notMapped, ", "))
	}

	var errMapped []string
	declared := make(map[string]struct{})
	for _, id := range AllVariableIDs(iface) {
		declared[id] = struct{}{}
	}
	for universal := range mapped {
		if _, ok := declared[universal]; !ok {
			errMapped = append(errMapped, universal)
		}
	}
	if len(errMapped) > 0 {
		return fmt.Errorf(
			"interface %s maps identifiers it does not declare: %s",
			iface.Name(), strings.Join(errMapped, ", "))
	}

	return nil
}

// CheckFilePath validates a file interface's path against its declared
// extensions.
func CheckFilePath(iface FileInterface) error {
	path := iface.FilePath()
	if path == "" {
		return fmt.Errorf(
			"interface %s requires a file path before connecting", iface.Name())
	}

	ext := filepath.Ext(path)
	for _, valid := range iface.ValidExtensions() {
		if ext == valid {
			return nil
		}
	}

	return fmt.Errorf(
		"file extension %q is not valid for interface %s; available are %s",
		ext, iface.Name(), strings.Join(iface.ValidExtensions(), ", "))
}
