package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCatalogAddMetadata(t *testing.T) {
	cat := NewDataCatalog()

	meta := &Metadata{
		Identifier: "device.power_rating",
		Structure:  "SimpleData",
		Title:      "Rated Power",
		Units:      []string{"MW"},
		Group:      "device",
		Tags:       []string{"energy"},
	}
	if err := cat.AddMetadata(meta); err != nil {
		t.Fatalf("AddMetadata: %v", err)
	}

	if !cat.HasVariable("device.power_rating") {
		t.Error("expected variable to be defined")
	}
	if cat.Len() != 1 {
		t.Errorf("Len = %d, want 1", cat.Len())
	}

	got, err := cat.GetMetadata("device.power_rating")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if got.Title != "Rated Power" || got.Units[0] != "MW" {
		t.Errorf("metadata = %+v", got)
	}

	// The stored copy is independent of both the input and the returned
	// value.
	meta.Title = "changed"
	got.Units[0] = "kW"
	fresh, err := cat.GetMetadata("device.power_rating")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if fresh.Title != "Rated Power" || fresh.Units[0] != "MW" {
		t.Errorf("stored metadata was mutated: %+v", fresh)
	}
}

func TestCatalogAddMetadataRequiredFields(t *testing.T) {
	cat := NewDataCatalog()

	if err := cat.AddMetadata(&Metadata{Structure: "SimpleData"}); err == nil {
		t.Error("expected missing identifier to fail")
	}
	if err := cat.AddMetadata(&Metadata{Identifier: "a.b"}); err == nil {
		t.Error("expected missing structure to fail")
	}
}

func TestCatalogDuplicateReplaces(t *testing.T) {
	cat := NewDataCatalog()

	for _, title := range []string{"first", "second"} {
		err := cat.AddMetadata(&Metadata{
			Identifier: "site.area",
			Structure:  "SimpleData",
			Title:      title,
		})
		if err != nil {
			t.Fatalf("AddMetadata: %v", err)
		}
	}

	if cat.Len() != 1 {
		t.Errorf("Len = %d, want 1", cat.Len())
	}
	meta, err := cat.GetMetadata("site.area")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.Title != "second" {
		t.Errorf("Title = %s, want second", meta.Title)
	}
}

func TestCatalogFilters(t *testing.T) {
	cat := NewDataCatalog()
	entries := []*Metadata{
		{Identifier: "device.rating", Structure: "SimpleData", Group: "device", Tags: []string{"energy"}},
		{Identifier: "site.area", Structure: "SimpleData", Group: "site"},
		{Identifier: "farm.energy", Structure: "SimpleData", Group: "farm", Tags: []string{"energy"}},
	}
	for _, meta := range entries {
		if err := cat.AddMetadata(meta); err != nil {
			t.Fatalf("AddMetadata %s: %v", meta.Identifier, err)
		}
	}

	ids := cat.VariableIdentifiers()
	if len(ids) != 3 || ids[0] != "device.rating" || ids[2] != "farm.energy" {
		t.Errorf("VariableIdentifiers = %v, want definition order", ids)
	}

	if got := cat.FilterByGroup("site"); len(got) != 1 || got[0] != "site.area" {
		t.Errorf("FilterByGroup(site) = %v", got)
	}
	if got := cat.FilterByTag("energy"); len(got) != 2 {
		t.Errorf("FilterByTag(energy) = %v, want two", got)
	}
	if got := cat.FilterByTag("missing"); len(got) != 0 {
		t.Errorf("FilterByTag(missing) = %v, want empty", got)
	}
}

func TestStructureRegistryBuiltins(t *testing.T) {
	reg := NewStructureRegistry()

	for _, name := range []string{
		"SimpleData", "SimpleList", "SimpleDict", "PointData", "TableData",
	} {
		if !reg.Has(name) {
			t.Errorf("builtin structure %s not registered", name)
		}
	}

	if _, err := reg.Get("Unknown"); err == nil {
		t.Error("expected unknown structure to fail")
	}

	if err := reg.Register(&SimpleData{}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestSimpleDataTyping(t *testing.T) {
	s := &SimpleData{}
	meta := &Metadata{
		Identifier: "device.system_type",
		Structure:  "SimpleData",
		Types:      []string{"str"},
		ValidValues: []string{
			"wave", "tidal",
		},
	}

	stored, err := s.GetData("wave", meta)
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if stored != "wave" {
		t.Errorf("stored = %v, want wave", stored)
	}

	if _, err := s.GetData(1.5, meta); err == nil {
		t.Error("expected type mismatch to fail")
	}
	if _, err := s.GetData("solar", meta); err == nil {
		t.Error("expected out-of-range value to fail")
	}
	if _, err := s.GetData(nil, meta); err == nil {
		t.Error("expected nil value to fail")
	}

	// Untyped metadata accepts any scalar.
	if _, err := s.GetData(1.5, &Metadata{Identifier: "x", Structure: "SimpleData"}); err != nil {
		t.Errorf("untyped GetData: %v", err)
	}
}

func TestSimpleListCopies(t *testing.T) {
	s := &SimpleList{}

	raw := []any{1.0, 2.0}
	stored, err := s.GetData(raw, nil)
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}

	raw[0] = 99.0
	if stored.([]any)[0] != 1.0 {
		t.Error("stored list shares backing array with input")
	}

	value := s.GetValue(stored).([]any)
	value[1] = 99.0
	if stored.([]any)[1] != 2.0 {
		t.Error("returned value shares backing array with store")
	}

	if _, err := s.GetData("not a list", nil); err == nil {
		t.Error("expected non-list to fail")
	}

	meta := &Metadata{Identifier: "x", Structure: "SimpleList", Types: []string{"float"}}
	if _, err := s.GetData([]any{1.0, "two"}, meta); err == nil {
		t.Error("expected mixed types to fail")
	}
}

func TestPointData(t *testing.T) {
	s := &PointData{}

	stored, err := s.GetData([]any{1.0, 2, 3.5}, nil)
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	coords := stored.([]float64)
	if len(coords) != 3 || coords[1] != 2.0 {
		t.Errorf("coords = %v", coords)
	}

	if _, err := s.GetData([]any{1.0}, nil); err == nil {
		t.Error("expected single coordinate to fail")
	}
	if _, err := s.GetData([]any{1.0, 2.0, 3.0, 4.0}, nil); err == nil {
		t.Error("expected four coordinates to fail")
	}
	if _, err := s.GetData([]any{1.0, "north"}, nil); err == nil {
		t.Error("expected non-numeric coordinate to fail")
	}
}

func TestTableData(t *testing.T) {
	s := &TableData{}
	meta := &Metadata{
		Identifier: "site.bathymetry",
		Structure:  "TableData",
		Labels:     []string{"x", "y", "depth"},
	}

	raw := map[string]any{
		"x":     []any{0.0, 100.0},
		"y":     []any{0.0, 0.0},
		"depth": []any{20.0, 35.5},
	}
	stored, err := s.GetData(raw, meta)
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	table := stored.(map[string][]float64)
	if table["depth"][1] != 35.5 {
		t.Errorf("depth column = %v", table["depth"])
	}

	missing := map[string]any{"x": []any{0.0}, "y": []any{0.0}}
	if _, err := s.GetData(missing, meta); err == nil {
		t.Error("expected missing column to fail")
	}

	ragged := map[string][]float64{"x": {0, 1}, "y": {0}, "depth": {1, 2}}
	if _, err := s.GetData(ragged, meta); err == nil {
		t.Error("expected ragged columns to fail")
	}
}

const definitionDoc = `- identifier: device.power_rating
  structure: SimpleData
  title: Rated Power
  units: [MW]
  types: [float]
  group: device
- identifier: device.system_type
  structure: SimpleData
  title: System Type
  types: [str]
  valid_values: [wave, tidal]
  group: device
`

func TestLoaderLoadFile(t *testing.T) {
	loader, err := NewLoader()
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "device.yaml")
	if err := os.WriteFile(path, []byte(definitionDoc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cat := NewDataCatalog()
	if err := loader.LoadFile(cat, path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cat.Len() != 2 {
		t.Fatalf("Len = %d, want 2", cat.Len())
	}
	meta, err := cat.GetMetadata("device.system_type")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if len(meta.ValidValues) != 2 || meta.ValidValues[0] != "wave" {
		t.Errorf("ValidValues = %v", meta.ValidValues)
	}
	if meta.Group != "device" {
		t.Errorf("Group = %s, want device", meta.Group)
	}
}

func TestLoaderRejectsBadDefinitions(t *testing.T) {
	loader, err := NewLoader()
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	cases := []struct {
		name string
		doc  string
	}{
		{"uppercase identifier", "- identifier: Device.Rating\n  structure: SimpleData\n"},
		{"missing structure", "- identifier: device.rating\n"},
		{"bad type name", "- identifier: device.rating\n  structure: SimpleData\n  types: [double]\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "bad.yaml")
			if err := os.WriteFile(path, []byte(tc.doc), 0o644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			if err := loader.LoadFile(NewDataCatalog(), path); err == nil {
				t.Error("expected definition to be rejected")
			}
		})
	}
}

func TestLoaderLoadDirectory(t *testing.T) {
	loader, err := NewLoader()
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "device.yaml"),
		[]byte(definitionDoc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	siteDoc := "- identifier: site.area\n  structure: SimpleData\n  types: [float]\n  group: site\n"
	if err := os.WriteFile(filepath.Join(dir, "site.yml"),
		[]byte(siteDoc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// Non-definition files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"),
		[]byte("ignore me"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cat := NewDataCatalog()
	if err := loader.LoadDirectory(cat, dir); err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if cat.Len() != 3 {
		t.Errorf("Len = %d, want 3", cat.Len())
	}
	if !cat.HasVariable("site.area") {
		t.Error("expected site.area from the .yml file")
	}
}
