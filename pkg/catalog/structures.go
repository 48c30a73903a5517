package catalog

import (
	"fmt"
	"sort"
)

// Structure types and validates the values stored for a variable. GetData
// coerces a raw value into its stored form; GetValue returns an
// independent copy for callers.
type Structure interface {
	Name() string
	GetData(raw any, meta *Metadata) (any, error)
	GetValue(stored any) any
}

// StructureRegistry maps structure class names to implementations.
type StructureRegistry struct {
	structures map[string]Structure
}

// NewStructureRegistry creates a registry pre-populated with the builtin
// structures.
func NewStructureRegistry() *StructureRegistry {
	r := &StructureRegistry{structures: make(map[string]Structure)}
	for _, s := range builtinStructures() {
		r.structures[s.Name()] = s
	}
	return r
}

// Register adds a structure class.
func (r *StructureRegistry) Register(s Structure) error {
	if _, ok := r.structures[s.Name()]; ok {
		return fmt.Errorf("structure class %s is already registered", s.Name())
	}
	r.structures[s.Name()] = s
	return nil
}

// Get returns the structure class with the given name.
func (r *StructureRegistry) Get(name string) (Structure, error) {
	s, ok := r.structures[name]
	if !ok {
		return nil, fmt.Errorf("structure class %s is not registered", name)
	}
	return s, nil
}

// Has reports whether a structure class is registered.
func (r *StructureRegistry) Has(name string) bool {
	_, ok := r.structures[name]
	return ok
}

// Names returns the registered structure class names, sorted.
func (r *StructureRegistry) Names() []string {
	names := make([]string, 0, len(r.structures))
	for name := range r.structures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func builtinStructures() []Structure {
	return []Structure{
		&SimpleData{},
		&SimpleList{},
		&SimpleDict{},
		&PointData{},
		&TableData{},
	}
}

func checkSimpleType(value any, typeName string) error {
	ok := false
	switch typeName {
	case "int":
		switch value.(type) {
		case int, int32, int64:
			ok = true
		}
	case "float":
		switch value.(type) {
		case float32, float64, int, int32, int64:
			ok = true
		}
	case "str":
		_, ok = value.(string)
	case "bool":
		_, ok = value.(bool)
	default:
		return fmt.Errorf("unknown simple type %q", typeName)
	}

	if !ok {
		return fmt.Errorf("value %v (%T) is not of type %s",
			value, value, typeName)
	}

	return nil
}

func checkValidValues(value any, meta *Metadata) error {
	if meta == nil || len(meta.ValidValues) == 0 {
		return nil
	}

	str, ok := value.(string)
	if !ok {
		return nil
	}

	for _, valid := range meta.ValidValues {
		if str == valid {
			return nil
		}
	}

	return fmt.Errorf("value %q for variable %s is not one of the valid values",
		str, meta.Identifier)
}

// SimpleData stores a single scalar. The first entry in the metadata
// types list, when present, constrains the value kind.
type SimpleData struct{}

func (s *SimpleData) Name() string { return "SimpleData" }

func (s *SimpleData) GetData(raw any, meta *Metadata) (any, error) {
	if raw == nil {
		return nil, fmt.Errorf("SimpleData requires a value")
	}
	if meta != nil && len(meta.Types) > 0 {
		if err := checkSimpleType(raw, meta.Types[0]); err != nil {
			return nil, err
		}
	}
	if err := checkValidValues(raw, meta); err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *SimpleData) GetValue(stored any) any {
	return stored
}

// SimpleList stores a homogeneous list of scalars.
type SimpleList struct{}

func (s *SimpleList) Name() string { return "SimpleList" }

func (s *SimpleList) GetData(raw any, meta *Metadata) (any, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("SimpleList requires a list, got %T", raw)
	}

	if meta != nil && len(meta.Types) > 0 {
		for _, item := range list {
			if err := checkSimpleType(item, meta.Types[0]); err != nil {
				return nil, err
			}
		}
	}

	return append([]any(nil), list...), nil
}

func (s *SimpleList) GetValue(stored any) any {
	list, ok := stored.([]any)
	if !ok {
		return stored
	}
	return append([]any(nil), list...)
}

// SimpleDict stores a string-keyed mapping of scalars.
type SimpleDict struct{}

func (s *SimpleDict) Name() string { return "SimpleDict" }

func (s *SimpleDict) GetData(raw any, meta *Metadata) (any, error) {
	dict, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("SimpleDict requires a string-keyed map, got %T",
			raw)
	}

	if meta != nil && len(meta.Types) > 0 {
		for key, item := range dict {
			if err := checkSimpleType(item, meta.Types[0]); err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
		}
	}

	out := make(map[string]any, len(dict))
	for key, item := range dict {
		out[key] = item
	}

	return out, nil
}

func (s *SimpleDict) GetValue(stored any) any {
	dict, ok := stored.(map[string]any)
	if !ok {
		return stored
	}
	out := make(map[string]any, len(dict))
	for key, item := range dict {
		out[key] = item
	}
	return out
}

// PointData stores a coordinate as a fixed-length float slice, two or
// three dimensions.
type PointData struct{}

func (s *PointData) Name() string { return "PointData" }

func (s *PointData) GetData(raw any, _ *Metadata) (any, error) {
	var coords []float64

	switch v := raw.(type) {
	case []float64:
		coords = v
	case []any:
		coords = make([]float64, 0, len(v))
		for _, item := range v {
			f, ok := toFloat(item)
			if !ok {
				return nil, fmt.Errorf(
					"PointData requires numeric coordinates, got %T", item)
			}
			coords = append(coords, f)
		}
	default:
		return nil, fmt.Errorf("PointData requires a coordinate list, got %T",
			raw)
	}

	if len(coords) < 2 || len(coords) > 3 {
		return nil, fmt.Errorf(
			"PointData requires two or three coordinates, got %d", len(coords))
	}

	return append([]float64(nil), coords...), nil
}

func (s *PointData) GetValue(stored any) any {
	coords, ok := stored.([]float64)
	if !ok {
		return stored
	}
	return append([]float64(nil), coords...)
}

// TableData stores a column-oriented table: a map from column label to a
// float column, all columns the same length. The metadata labels list,
// when present, fixes the expected columns.
type TableData struct{}

func (s *TableData) Name() string { return "TableData" }

func (s *TableData) GetData(raw any, meta *Metadata) (any, error) {
	table, ok := raw.(map[string][]float64)
	if !ok {
		generic, isGeneric := raw.(map[string]any)
		if !isGeneric {
			return nil, fmt.Errorf(
				"TableData requires a column map, got %T", raw)
		}
		table = make(map[string][]float64, len(generic))
		for label, column := range generic {
			items, isList := column.([]any)
			if !isList {
				return nil, fmt.Errorf(
					"TableData column %q is not a list", label)
			}
			floats := make([]float64, 0, len(items))
			for _, item := range items {
				f, isNum := toFloat(item)
				if !isNum {
					return nil, fmt.Errorf(
						"TableData column %q holds non-numeric value %v",
						label, item)
				}
				floats = append(floats, f)
			}
			table[label] = floats
		}
	}

	if meta != nil && len(meta.Labels) > 0 {
		for _, label := range meta.Labels {
			if _, ok := table[label]; !ok {
				return nil, fmt.Errorf(
					"TableData for variable %s is missing column %q",
					meta.Identifier, label)
			}
		}
	}

	length := -1
	for label, column := range table {
		if length == -1 {
			length = len(column)
		} else if len(column) != length {
			return nil, fmt.Errorf(
				"TableData column %q has length %d, expected %d",
				label, len(column), length)
		}
	}

	out := make(map[string][]float64, len(table))
	for label, column := range table {
		out[label] = append([]float64(nil), column...)
	}

	return out, nil
}

func (s *TableData) GetValue(stored any) any {
	table, ok := stored.(map[string][]float64)
	if !ok {
		return stored
	}
	out := make(map[string][]float64, len(table))
	for label, column := range table {
		out[label] = append([]float64(nil), column...)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
