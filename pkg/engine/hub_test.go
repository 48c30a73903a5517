package engine

import (
	"testing"

	"github.com/arrayforge/arrayforge/pkg/plugins"
)

func addInterfaces(t *testing.T, hub *Hub, names ...string) {
	t.Helper()

	for _, name := range names {
		if err := hub.AddInterface(name, plugins.NewRawInterface(name)); err != nil {
			t.Fatalf("adding %s: %v", name, err)
		}
	}
}

func TestHubCompleteAnyOrder(t *testing.T) {
	hub := NewHub("modules", false)
	addInterfaces(t, hub, "first", "second", "third")

	if err := hub.SetCompleted("second"); err != nil {
		t.Fatalf("completing out of order on a plain hub: %v", err)
	}

	if got := hub.ScheduledNames(); len(got) != 2 {
		t.Fatalf("scheduled = %v", got)
	}

	if !hub.IsCompleted("second") {
		t.Fatal("second not recorded as completed")
	}
}

func TestPipelineCompletesNextOnly(t *testing.T) {
	pipe := NewPipeline("modules", false)
	addInterfaces(t, pipe, "first", "second")

	if err := pipe.SetCompleted("second"); err == nil {
		t.Fatal("out-of-order completion allowed on a pipeline")
	}

	// Empty name completes the next scheduled interface.
	if err := pipe.SetCompleted(""); err != nil {
		t.Fatalf("completing next: %v", err)
	}

	if !pipe.IsCompleted("first") {
		t.Fatal("first not completed")
	}

	if next, ok := pipe.NextScheduled(); !ok || next != "second" {
		t.Fatalf("next = %q, %v", next, ok)
	}
}

func TestHubNoComplete(t *testing.T) {
	hub := NewHub("themes", true)
	addInterfaces(t, hub, "assess")

	if err := hub.SetCompleted("assess"); err != nil {
		t.Fatalf("no-complete hub rejected completion call: %v", err)
	}

	if hub.IsCompleted("assess") {
		t.Fatal("no-complete hub recorded a completion")
	}

	if got := hub.ScheduledNames(); len(got) != 1 {
		t.Fatalf("scheduled = %v", got)
	}
}

func TestHubUndoRollbackReset(t *testing.T) {
	pipe := NewPipeline("modules", false)
	addInterfaces(t, pipe, "first", "second", "third")

	for i := 0; i < 3; i++ {
		if err := pipe.SetCompleted(""); err != nil {
			t.Fatalf("completing: %v", err)
		}
	}

	if !pipe.Undo() {
		t.Fatal("undo reported nothing moved")
	}

	if next, _ := pipe.NextScheduled(); next != "third" {
		t.Fatalf("next after undo = %q", next)
	}

	if err := pipe.Rollback("first"); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	if got := pipe.ScheduledNames(); len(got) != 3 || got[0] != "first" {
		t.Fatalf("scheduled after rollback = %v", got)
	}

	pipe.SetForceCompleted(true)
	pipe.Reset()

	if pipe.ForceCompleted() {
		t.Fatal("reset kept the force-completed flag")
	}
}

func TestHubRollbackPreservesOrder(t *testing.T) {
	pipe := NewPipeline("modules", false)
	addInterfaces(t, pipe, "first", "second", "third")

	pipe.SetCompleted("")
	pipe.SetCompleted("")

	if err := pipe.Rollback("second"); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	want := []string{"second", "third"}
	got := pipe.ScheduledNames()
	if len(got) != len(want) {
		t.Fatalf("scheduled = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scheduled = %v, want %v", got, want)
		}
	}
}

func TestHubPrecedingAndUpcoming(t *testing.T) {
	pipe := NewPipeline("modules", false)
	addInterfaces(t, pipe, "first", "second", "third")

	pipe.SetCompleted("")

	// Sequenced order is scheduled first, then completed.
	preceding := pipe.PrecedingNames("third", false)
	if len(preceding) != 1 || preceding[0] != "second" {
		t.Fatalf("preceding = %v", preceding)
	}

	upcoming := pipe.UpcomingNames("second", false)
	if len(upcoming) != 3 {
		t.Fatalf("upcoming = %v", upcoming)
	}

	// Unordered hubs answer neither query.
	hub := NewHub("modules", false)
	addInterfaces(t, hub, "first", "second")
	if got := hub.PrecedingNames("second", false); got != nil {
		t.Fatalf("unordered hub preceding = %v", got)
	}
}

func TestHubCheckNextScheduled(t *testing.T) {
	pipe := NewPipeline("modules", false)
	addInterfaces(t, pipe, "first", "second")

	pipe.SetCompleted("")

	// A completed interface is promoted by rolling back.
	if err := pipe.CheckNextScheduled("first"); err != nil {
		t.Fatalf("check next on completed: %v", err)
	}
	if next, _ := pipe.NextScheduled(); next != "first" {
		t.Fatalf("next = %q, want first", next)
	}

	// A strict hub cannot jump over the next scheduled interface.
	if err := pipe.CheckNextScheduled("second"); err == nil {
		t.Fatal("strict hub promoted a later interface")
	}
}

func TestHubCloneIsIndependent(t *testing.T) {
	hub := NewHub("modules", false)
	addInterfaces(t, hub, "first", "second")
	hub.SetCompleted("first")

	clone := hub.Clone()
	clone.SetCompleted("second")

	if hub.IsCompleted("second") {
		t.Fatal("clone completion leaked into original")
	}

	if !clone.IsCompleted("first") {
		t.Fatal("clone lost completion history")
	}
}
