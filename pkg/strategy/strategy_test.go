package strategy

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/arrayforge/arrayforge/pkg/catalog"
	"github.com/arrayforge/arrayforge/pkg/engine"
	"github.com/arrayforge/arrayforge/pkg/plugins"
	"github.com/arrayforge/arrayforge/pkg/project"
)

func newSumInterface() (plugins.Interface, error) {
	return plugins.NewBuilder("Sum Numbers").
		Inputs(plugins.Input("test.a"), plugins.Input("test.b")).
		Outputs("test.sum").
		Weight(1).
		Connect(func(_ context.Context, bag *plugins.DataBag) error {
			a := bag.Get("test.a").(float64)
			b := bag.Get("test.b").(float64)
			bag.Set("test.sum", a+b)
			return nil
		}).
		Build()
}

func newScaleInterface() (plugins.Interface, error) {
	return plugins.NewBuilder("Scale Sum").
		Inputs(plugins.Input("test.sum")).
		Outputs("test.scaled").
		Weight(2).
		Connect(func(_ context.Context, bag *plugins.DataBag) error {
			sum := bag.Get("test.sum").(float64)
			bag.Set("test.scaled", sum*2)
			return nil
		}).
		Build()
}

func newTestCore(t *testing.T) *project.Core {
	t.Helper()

	core := project.NewCore(zerolog.Nop())

	ids := []string{"test.a", "test.b", "test.sum", "test.scaled"}
	for _, id := range ids {
		err := core.Catalog().AddMetadata(&catalog.Metadata{
			Identifier: id,
			Structure:  "SimpleData",
		})
		if err != nil {
			t.Fatalf("adding metadata for %s: %v", id, err)
		}
	}

	registry := plugins.NewRegistry()

	err := registry.RegisterManifest(plugins.Manifest{
		Package: "test",
		Interfaces: []plugins.Registration{
			{ClassName: "SumInterface", New: newSumInterface},
			{ClassName: "ScaleInterface", New: newScaleInterface},
		},
	})
	if err != nil {
		t.Fatalf("registering manifest: %v", err)
	}

	core.Sequencer().AddInterfaceType("modules", registry)

	return core
}

func newTestProject(t *testing.T,
	core *project.Core) (*project.Project, *engine.Simulation) {

	t.Helper()

	proj, err := core.NewProject("wave farm")
	if err != nil {
		t.Fatalf("creating project: %v", err)
	}

	sim, err := proj.ActiveSimulation()
	if err != nil {
		t.Fatalf("getting active simulation: %v", err)
	}

	err = core.Controller().CreateNewPipeline(sim, "modules", "modules",
		false)
	if err != nil {
		t.Fatalf("creating pipeline: %v", err)
	}

	for _, name := range []string{"Sum Numbers", "Scale Sum"} {
		if err := core.Controller().SequenceInterface(sim, "modules",
			name); err != nil {
			t.Fatalf("sequencing %s: %v", name, err)
		}
	}

	return proj, sim
}

func loadInputs(t *testing.T, core *project.Core, proj *project.Project,
	sim *engine.Simulation, a, b float64) {

	t.Helper()

	err := core.Controller().AddDatastate(proj.Pool(), sim,
		engine.AddDatastateOptions{
			Level:   "input",
			Catalog: core.Catalog(),
			Entries: []engine.DataEntry{
				{Identifier: "test.a", Value: a},
				{Identifier: "test.b", Value: b},
			},
		})
	if err != nil {
		t.Fatalf("adding input datastate: %v", err)
	}
}

func TestBasicExecute(t *testing.T) {
	core := newTestCore(t)
	proj, sim := newTestProject(t, core)
	loadInputs(t, core, proj, sim, 2.0, 3.0)

	basic := NewBasic()

	if basic.Name() != "basic" {
		t.Errorf("name = %q, want %q", basic.Name(), "basic")
	}

	if err := basic.Execute(context.Background(), core, proj); err != nil {
		t.Fatalf("executing strategy: %v", err)
	}

	value, err := core.Controller().GetDataValue(proj.Pool(), sim,
		"test.scaled")
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if value.(float64) != 10.0 {
		t.Errorf("test.scaled = %v, want 10", value)
	}

	scheduled, err := core.Controller().ScheduledInterfaces(sim, "modules")
	if err != nil {
		t.Fatalf("listing scheduled: %v", err)
	}
	if len(scheduled) != 0 {
		t.Errorf("scheduled = %v, want none", scheduled)
	}
}

func TestBasicUnmetInputs(t *testing.T) {
	core := newTestCore(t)
	proj, _ := newTestProject(t, core)

	basic := NewBasic()

	if err := basic.Execute(context.Background(), core, proj); err == nil {
		t.Error("expected execution to fail on unmet inputs")
	}
}

func TestSensitivityValues(t *testing.T) {
	s := NewSensitivity("test.a", "values = [1.0, 2.5, 4.0]")

	values, err := s.Values(context.Background())
	if err != nil {
		t.Fatalf("evaluating values: %v", err)
	}

	if len(values) != 3 {
		t.Fatalf("got %d values, want 3", len(values))
	}
	if values[1].(float64) != 2.5 {
		t.Errorf("values[1] = %v, want 2.5", values[1])
	}
}

func TestSensitivityEmptyValues(t *testing.T) {
	s := NewSensitivity("test.a", "values = []")

	if _, err := s.Values(context.Background()); err == nil {
		t.Error("expected error for empty value sequence")
	}
}

func TestSensitivityBadScript(t *testing.T) {
	s := NewSensitivity("test.a", "other = 1")

	if _, err := s.Values(context.Background()); err == nil {
		t.Error("expected error when the script defines no values global")
	}
}

func TestSensitivityExecute(t *testing.T) {
	core := newTestCore(t)
	proj, sim := newTestProject(t, core)

	// Only the varied variable's partner is preset; test.a comes from
	// the value sequence.
	err := core.Controller().AddDatastate(proj.Pool(), sim,
		engine.AddDatastateOptions{
			Level:   "input",
			Catalog: core.Catalog(),
			Entries: []engine.DataEntry{
				{Identifier: "test.b", Value: 3.0},
			},
		})
	if err != nil {
		t.Fatalf("adding input datastate: %v", err)
	}

	s := NewSensitivity("test.a", "values = [1.0, 2.0]")

	if err := s.Execute(context.Background(), core, proj); err != nil {
		t.Fatalf("executing strategy: %v", err)
	}

	// Base simulation plus one clone per value.
	if proj.CountSimulations() != 3 {
		t.Fatalf("got %d simulations, want 3", proj.CountSimulations())
	}

	wantScaled := []float64{8.0, 10.0}

	for i, want := range wantScaled {
		clone, err := proj.GetSimulation(i + 1)
		if err != nil {
			t.Fatalf("getting clone %d: %v", i+1, err)
		}

		if !strings.HasPrefix(clone.Title(), "test.a = ") {
			t.Errorf("clone title = %q, want a value title", clone.Title())
		}

		value, err := core.Controller().GetDataValue(proj.Pool(), clone,
			"test.scaled")
		if err != nil {
			t.Fatalf("reading clone %d output: %v", i+1, err)
		}
		if value.(float64) != want {
			t.Errorf("clone %d test.scaled = %v, want %v", i+1, value, want)
		}
	}

	if report := core.CheckIntegrity(proj); !report.Ok() {
		t.Errorf("project failed integrity after fan-out: %+v", report)
	}
}

func TestSensitivityUnknownVariable(t *testing.T) {
	core := newTestCore(t)
	proj, _ := newTestProject(t, core)

	s := NewSensitivity("test.missing", "values = [1.0]")

	if err := s.Execute(context.Background(), core, proj); err == nil {
		t.Error("expected error for a variable missing from the catalog")
	}
}

func TestWorker(t *testing.T) {
	core := newTestCore(t)
	proj, sim := newTestProject(t, core)
	loadInputs(t, core, proj, sim, 2.0, 3.0)

	worker := NewWorker(core, 2, zerolog.Nop())

	if err := worker.Submit(NewBasic(), proj); err != nil {
		t.Fatalf("submitting strategy: %v", err)
	}

	select {
	case result := <-worker.Results():
		if result.Err != nil {
			t.Fatalf("strategy failed: %v", result.Err)
		}
		if result.Strategy != "basic" {
			t.Errorf("result strategy = %q, want %q", result.Strategy,
				"basic")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the strategy result")
	}

	worker.Stop()

	if err := worker.Submit(NewBasic(), proj); err == nil {
		t.Error("expected submission after stop to fail")
	}

	// The results channel closes once the worker winds down.
	if _, ok := <-worker.Results(); ok {
		t.Error("results channel should be closed after stop")
	}
}

func TestWorkerQueueFull(t *testing.T) {
	core := newTestCore(t)
	proj, _ := newTestProject(t, core)

	worker := NewWorker(core, 1, zerolog.Nop())
	defer worker.Stop()

	// The worker may start draining immediately, so keep submitting
	// until the queue rejects.
	rejected := false
	for i := 0; i < 100; i++ {
		if err := worker.Submit(NewBasic(), proj); err != nil {
			rejected = true
			break
		}
	}

	if !rejected {
		t.Error("expected the queue to reject at some depth")
	}
}
