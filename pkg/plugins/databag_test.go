package plugins

import (
	"sort"
	"strings"
	"testing"
)

func newMappedInterface(t *testing.T) Interface {
	t.Helper()
	iface, err := NewBuilder("Mapped Exchange").
		Inputs(Input("project.depth"), Input("project.distance")).
		Outputs("project.cost").
		IDMap(map[string]string{
			"depth":    "project.depth",
			"distance": "project.distance",
			"cost":     "project.cost",
		}).
		Connect(passthrough).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return iface
}

func TestDataBagPrepopulatesDeclaredVariables(t *testing.T) {
	iface := newMappedInterface(t)
	bag, err := NewDataBag(iface)
	if err != nil {
		t.Fatalf("NewDataBag: %v", err)
	}

	keys := bag.Keys()
	sort.Strings(keys)
	want := []string{"cost", "depth", "distance"}
	if len(keys) != len(want) {
		t.Fatalf("Keys = %v, want %v", keys, want)
	}
	for i, key := range want {
		if keys[i] != key {
			t.Errorf("Keys[%d] = %s, want %s", i, keys[i], key)
		}
	}

	if !bag.Has("depth") {
		t.Error("expected depth key to exist")
	}
	if value := bag.Get("depth"); value != nil {
		t.Errorf("Get(depth) = %v, want nil", value)
	}
}

func TestDataBagUniversalTranslation(t *testing.T) {
	iface := newMappedInterface(t)
	bag, err := NewDataBag(iface)
	if err != nil {
		t.Fatalf("NewDataBag: %v", err)
	}

	if err := bag.PutData("project.depth", 42.5); err != nil {
		t.Fatalf("PutData: %v", err)
	}

	// The universal identifier lands under its local alias.
	if value := bag.Get("depth"); value != 42.5 {
		t.Errorf("Get(depth) = %v, want 42.5", value)
	}

	value, err := bag.GetData("project.depth")
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if value != 42.5 {
		t.Errorf("GetData = %v, want 42.5", value)
	}
}

func TestDataBagLocalAccess(t *testing.T) {
	iface := newMappedInterface(t)
	bag, err := NewDataBag(iface)
	if err != nil {
		t.Fatalf("NewDataBag: %v", err)
	}

	bag.Set("cost", 1.25e6)
	value, err := bag.GetData("project.cost")
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if value != 1.25e6 {
		t.Errorf("GetData = %v, want 1.25e6", value)
	}
}

func TestDataBagUnknownIdentifier(t *testing.T) {
	iface := newMappedInterface(t)
	bag, err := NewDataBag(iface)
	if err != nil {
		t.Fatalf("NewDataBag: %v", err)
	}

	if err := bag.PutData("project.unknown", 1.0); err == nil {
		t.Error("expected PutData with unknown identifier to fail")
	} else if !strings.Contains(err.Error(), "not recognised") {
		t.Errorf("err = %v, want not recognised", err)
	}

	if _, err := bag.GetData("project.unknown"); err == nil {
		t.Error("expected GetData with unknown identifier to fail")
	}
}

func TestDataBagIdentityWithoutIDMap(t *testing.T) {
	iface, err := NewBuilder("Plain Exchange").
		Inputs(Input("site.area")).
		Outputs("site.summary").
		Connect(passthrough).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	bag, err := NewDataBag(iface)
	if err != nil {
		t.Fatalf("NewDataBag: %v", err)
	}
	if err := bag.PutData("site.area", 2.0e6); err != nil {
		t.Fatalf("PutData: %v", err)
	}

	// Without an idMap the universal identifier doubles as the local key.
	if value := bag.Get("site.area"); value != 2.0e6 {
		t.Errorf("Get(site.area) = %v, want 2e6", value)
	}
}
