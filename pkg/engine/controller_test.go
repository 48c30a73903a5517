package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/arrayforge/arrayforge/pkg/catalog"
	"github.com/arrayforge/arrayforge/pkg/plugins"
)

func newSpreadInterface() (plugins.Interface, error) {
	return plugins.NewBuilder("Spread Metrics").
		Inputs(
			plugins.Input("alpha.in"),
			plugins.Input("beta.in"),
			plugins.Input("gamma.opt"),
		).
		Optional("gamma.opt").
		Outputs("delta.out").
		Weight(10).
		Connect(func(_ context.Context, bag *plugins.DataBag) error {
			a := bag.Get("alpha.in").(float64)
			b := bag.Get("beta.in").(float64)
			bag.Set("delta.out", a+b)
			return nil
		}).
		Build()
}

func newRefineInterface() (plugins.Interface, error) {
	return plugins.NewBuilder("Refine Spread").
		Inputs(plugins.Input("delta.out")).
		Outputs("epsilon.out").
		Weight(20).
		Connect(func(_ context.Context, bag *plugins.DataBag) error {
			bag.Set("epsilon.out", bag.Get("delta.out").(float64)*2)
			return nil
		}).
		Build()
}

type controllerRig struct {
	ctrl *Controller
	cat  *catalog.DataCatalog
	pool *DataPool
	sim  *Simulation
}

func newControllerRig(t *testing.T) *controllerRig {
	t.Helper()

	cat := catalog.NewDataCatalog()
	for _, id := range []string{"alpha.in", "beta.in", "gamma.opt",
		"delta.out", "epsilon.out"} {
		err := cat.AddMetadata(&catalog.Metadata{
			Identifier: id,
			Structure:  "SimpleData",
		})
		if err != nil {
			t.Fatalf("adding metadata for %s: %v", id, err)
		}
	}

	registry := plugins.NewRegistry()
	for _, reg := range []plugins.Registration{
		{ClassName: "SpreadInterface", Kind: plugins.KindMap, New: newSpreadInterface},
		{ClassName: "RefineInterface", Kind: plugins.KindMap, New: newRefineInterface},
	} {
		if err := registry.Register(reg); err != nil {
			t.Fatalf("registering %s: %v", reg.ClassName, err)
		}
	}

	logger := zerolog.Nop()
	sequencer := NewSequencer(true, logger)
	sequencer.AddInterfaceType("modules", registry)

	store := NewDataStorage(catalog.NewStructureRegistry(), logger)
	ctrl := NewController(store, sequencer, logger)

	sim := NewSimulation("study")
	if err := ctrl.CreateNewPipeline(sim, "modules", "mods", false); err != nil {
		t.Fatalf("creating pipeline: %v", err)
	}

	return &controllerRig{
		ctrl: ctrl,
		cat:  cat,
		pool: NewDataPool(),
		sim:  sim,
	}
}

func (r *controllerRig) sequence(t *testing.T, names ...string) {
	t.Helper()

	for _, name := range names {
		if err := r.ctrl.SequenceInterface(r.sim, "mods", name); err != nil {
			t.Fatalf("sequencing %s: %v", name, err)
		}
	}
}

func (r *controllerRig) addInputs(t *testing.T) {
	t.Helper()

	err := r.ctrl.AddDatastate(r.pool, r.sim, AddDatastateOptions{
		Level:   "inputs",
		Catalog: r.cat,
		Entries: []DataEntry{
			{Identifier: "alpha.in", Value: 1.0},
			{Identifier: "beta.in", Value: 2.0},
		},
	})
	if err != nil {
		t.Fatalf("adding inputs: %v", err)
	}
}

// executeSpread runs the Spread Metrics interface the way a connector
// would: load, connect, store outputs, complete.
func (r *controllerRig) executeSpread(t *testing.T) {
	t.Helper()

	bag, err := r.ctrl.LoadHubInterface(r.pool, r.sim, "mods",
		"Spread Metrics", nil)
	if err != nil {
		t.Fatalf("loading interface: %v", err)
	}

	iface, err := r.ctrl.InterfaceObject(r.sim, "mods", "Spread Metrics")
	if err != nil {
		t.Fatalf("resolving interface: %v", err)
	}

	if err := iface.Connect(context.Background(), bag); err != nil {
		t.Fatalf("connecting: %v", err)
	}

	value, err := bag.GetData("delta.out")
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}

	err = r.ctrl.AddDatastate(r.pool, r.sim, AddDatastateOptions{
		Level:   "spread metrics",
		Catalog: r.cat,
		Entries: []DataEntry{{Identifier: "delta.out", Value: value}},
	})
	if err != nil {
		t.Fatalf("storing output: %v", err)
	}

	if err := r.ctrl.SetInterfaceCompleted(r.sim, "mods", "Spread Metrics"); err != nil {
		t.Fatalf("completing: %v", err)
	}
}

func TestControllerInputStatus(t *testing.T) {
	rig := newControllerRig(t)
	rig.sequence(t, "Spread Metrics")

	status, err := rig.ctrl.GetInputStatus(rig.pool, rig.sim, "mods",
		"Spread Metrics", nil)
	if err != nil {
		t.Fatalf("input status: %v", err)
	}

	want := map[string]Status{
		"alpha.in":  StatusRequired,
		"beta.in":   StatusRequired,
		"gamma.opt": StatusOptional,
	}
	for id, expect := range want {
		if status[id] != expect {
			t.Errorf("%s = %s, want %s", id, status[id], expect)
		}
	}

	ok, err := rig.ctrl.CanLoadInterface(rig.pool, rig.sim, "mods",
		"Spread Metrics")
	if err != nil {
		t.Fatalf("can load: %v", err)
	}
	if ok {
		t.Fatal("interface loadable without inputs")
	}

	rig.addInputs(t)

	status, err = rig.ctrl.GetInputStatus(rig.pool, rig.sim, "mods",
		"Spread Metrics", nil)
	if err != nil {
		t.Fatalf("input status: %v", err)
	}

	if status["alpha.in"] != StatusSatisfied || status["beta.in"] != StatusSatisfied {
		t.Fatalf("statuses after loading inputs: %v", status)
	}
	if status["gamma.opt"] != StatusOptional {
		t.Fatalf("optional status = %s", status["gamma.opt"])
	}
}

func TestControllerUnmetInput(t *testing.T) {
	rig := newControllerRig(t)
	rig.sequence(t, "Spread Metrics")

	_, err := rig.ctrl.LoadHubInterface(rig.pool, rig.sim, "mods",
		"Spread Metrics", nil)
	if err == nil {
		t.Fatal("interface loaded without required inputs")
	}

	var coreErr *CoreError
	if !errors.As(err, &coreErr) || coreErr.Code != ErrCodeUnmetInput {
		t.Fatalf("error = %v, want code %s", err, ErrCodeUnmetInput)
	}
}

func TestControllerExecuteAndOutputStatus(t *testing.T) {
	rig := newControllerRig(t)
	rig.sequence(t, "Spread Metrics")
	rig.addInputs(t)
	rig.executeSpread(t)

	value, err := rig.ctrl.GetDataValue(rig.pool, rig.sim, "delta.out")
	if err != nil {
		t.Fatalf("reading delta: %v", err)
	}
	if value != 3.0 {
		t.Fatalf("delta = %v, want 3", value)
	}

	outputs, err := rig.ctrl.GetOutputStatus(rig.sim, "mods",
		"Spread Metrics", nil, "")
	if err != nil {
		t.Fatalf("output status: %v", err)
	}
	if outputs["delta.out"] != StatusSatisfied {
		t.Fatalf("delta output = %s, want %s", outputs["delta.out"],
			StatusSatisfied)
	}

	// Inputs to a completed interface are no longer actionable.
	inputs, err := rig.ctrl.GetInputStatus(rig.pool, rig.sim, "mods",
		"Spread Metrics", nil)
	if err != nil {
		t.Fatalf("input status: %v", err)
	}
	if inputs["alpha.in"] != StatusUnavailable {
		t.Fatalf("alpha after completion = %s", inputs["alpha.in"])
	}
}

func TestControllerOverwrittenInput(t *testing.T) {
	rig := newControllerRig(t)
	rig.sequence(t, "Spread Metrics", "Refine Spread")

	// Refine Spread consumes delta.out, which the uncompleted Spread
	// Metrics will produce first.
	status, err := rig.ctrl.GetInputStatus(rig.pool, rig.sim, "mods",
		"Refine Spread", nil)
	if err != nil {
		t.Fatalf("input status: %v", err)
	}

	if status["delta.out"] != StatusOverwritten {
		t.Fatalf("delta for refine = %s, want %s", status["delta.out"],
			StatusOverwritten)
	}
}

func TestControllerCopySimulation(t *testing.T) {
	rig := newControllerRig(t)
	rig.sequence(t, "Spread Metrics")
	rig.addInputs(t)
	rig.executeSpread(t)

	clone, err := rig.ctrl.CopySimulation(rig.pool, rig.sim,
		CopySimulationOptions{ForceTitle: "variant"})
	if err != nil {
		t.Fatalf("copying: %v", err)
	}

	if clone.Title() != "variant" {
		t.Fatalf("clone title = %q", clone.Title())
	}

	value, err := rig.ctrl.GetDataValue(rig.pool, clone, "delta.out")
	if err != nil {
		t.Fatalf("reading clone delta: %v", err)
	}
	if value != 3.0 {
		t.Fatalf("clone delta = %v", value)
	}

	// Removing the clone releases only its links; the original still
	// reads its data and nothing is swept.
	if err := rig.ctrl.RemoveSimulation(rig.pool, clone); err != nil {
		t.Fatalf("removing clone: %v", err)
	}

	if swept := rig.pool.Compact(); swept != 0 {
		t.Fatalf("swept %d entries while the original holds links", swept)
	}

	if _, err := rig.ctrl.GetDataValue(rig.pool, rig.sim, "delta.out"); err != nil {
		t.Fatalf("original unreadable after clone removal: %v", err)
	}

	if err := rig.ctrl.RemoveSimulation(rig.pool, rig.sim); err != nil {
		t.Fatalf("removing original: %v", err)
	}

	if swept := rig.pool.Compact(); rig.pool.Count() != 0 {
		t.Fatalf("pool holds %d entries after sweep of %d", rig.pool.Count(), swept)
	}
}

func TestControllerMaskAndDelete(t *testing.T) {
	rig := newControllerRig(t)
	rig.sequence(t, "Spread Metrics")
	rig.addInputs(t)
	rig.executeSpread(t)

	if masked := rig.ctrl.MaskStates(rig.sim, "", "inputs", false); masked != 1 {
		t.Fatalf("masked %d states, want 1", masked)
	}

	if err := rig.ctrl.DeleteMaskedStates(rig.pool, rig.sim, false); err != nil {
		t.Fatalf("deleting masked states: %v", err)
	}

	if rig.ctrl.HasData(rig.sim, "delta.out") {
		t.Fatal("masked output survived deletion")
	}

	if !rig.ctrl.HasData(rig.sim, "alpha.in") {
		t.Fatal("input state deleted")
	}
}

func TestSerialiseRoundTrip(t *testing.T) {
	rig := newControllerRig(t)
	rig.sequence(t, "Spread Metrics")
	rig.addInputs(t)
	rig.executeSpread(t)

	rootDir := t.TempDir()
	stateDir := filepath.Join(rootDir, "states")
	dataDir := filepath.Join(rootDir, "data")

	simRecord, err := rig.ctrl.SerialiseStates(rig.sim, stateDir, rootDir)
	if err != nil {
		t.Fatalf("serialising states: %v", err)
	}

	poolRecord, err := rig.ctrl.Store().SerialisePool(rig.pool, dataDir,
		rootDir, false)
	if err != nil {
		t.Fatalf("serialising pool: %v", err)
	}

	restoredPool, err := rig.ctrl.Store().DeserialisePool(rig.cat,
		poolRecord, rootDir, false, false)
	if err != nil {
		t.Fatalf("deserialising pool: %v", err)
	}

	restoredSim := NewSimulation("")
	if err := rig.ctrl.DeserialiseStates(restoredSim, simRecord, rootDir); err != nil {
		t.Fatalf("deserialising states: %v", err)
	}

	if restoredSim.CountStates() != rig.sim.CountStates() {
		t.Fatalf("restored %d states, want %d", restoredSim.CountStates(),
			rig.sim.CountStates())
	}

	for _, id := range []string{"alpha.in", "beta.in", "delta.out"} {
		want, err := rig.ctrl.GetDataValue(rig.pool, rig.sim, id)
		if err != nil {
			t.Fatalf("reading original %s: %v", id, err)
		}

		got, err := rig.ctrl.GetDataValue(restoredPool, restoredSim, id)
		if err != nil {
			t.Fatalf("reading restored %s: %v", id, err)
		}

		if got != want {
			t.Errorf("%s = %v, want %v", id, got, want)
		}
	}
}
