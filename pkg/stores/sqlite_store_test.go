package stores

import (
	"context"
	"os"
	"testing"
	"time"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	return store
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()

	// Check that tables exist by querying them
	tables := []string{"runs", "events", "snapshots"}
	for _, table := range tables {
		query := "SELECT COUNT(*) FROM " + table
		var count int
		err := store.db.QueryRowContext(ctx, query).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

// TestRunCRUD tests Run CRUD operations
func TestRunCRUD(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	// Create
	run := &Run{
		ID:          "run-001",
		ProjectName: "wave_farm",
		Strategy:    "basic",
		Status:      RunStatusPending,
		StartedAt:   now,
		Metadata:    `{"env":"test"}`,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	// Read
	retrieved, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get run: %v", err)
	}

	if retrieved.ID != run.ID {
		t.Errorf("expected ID %s, got %s", run.ID, retrieved.ID)
	}
	if retrieved.ProjectName != run.ProjectName {
		t.Errorf("expected ProjectName %s, got %s", run.ProjectName, retrieved.ProjectName)
	}
	if retrieved.Strategy != run.Strategy {
		t.Errorf("expected Strategy %s, got %s", run.Strategy, retrieved.Strategy)
	}
	if retrieved.Status != run.Status {
		t.Errorf("expected Status %s, got %s", run.Status, retrieved.Status)
	}

	// Update
	errMsg := "test error"
	if err := store.UpdateRunStatus(ctx, run.ID, RunStatusFailed, &errMsg); err != nil {
		t.Fatalf("failed to update run status: %v", err)
	}

	updated, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get updated run: %v", err)
	}

	if updated.Status != RunStatusFailed {
		t.Errorf("expected Status %s, got %s", RunStatusFailed, updated.Status)
	}
	if updated.Error == nil || *updated.Error != errMsg {
		t.Errorf("expected Error %s, got %v", errMsg, updated.Error)
	}
	if updated.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}

	// List
	runs, err := store.ListRuns(ctx, 10, 0)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}

	if len(runs) != 1 {
		t.Errorf("expected 1 run, got %d", len(runs))
	}

	// Delete
	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	_, err = store.GetRun(ctx, run.ID)
	if err == nil {
		t.Error("expected error when getting deleted run")
	}
}

// TestEventOperations tests Event operations
func TestEventOperations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	// Create a run first
	run := &Run{
		ID:          "run-002",
		ProjectName: "wave_farm",
		Strategy:    "basic",
		Status:      RunStatusRunning,
		StartedAt:   now,
		Metadata:    `{}`,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	hubModules := "modules"
	ifaceHydro := "HydrodynamicsInterface"

	// Append events
	events := []*Event{
		{
			RunID:     &run.ID,
			HubID:     &hubModules,
			Interface: &ifaceHydro,
			Level:     EventLevelInfo,
			Message:   "Starting interface execution",
			Timestamp: now,
		},
		{
			RunID:     &run.ID,
			HubID:     &hubModules,
			Level:     EventLevelWarning,
			Message:   "Optional input missing",
			Timestamp: now.Add(1 * time.Second),
		},
		{
			RunID:     &run.ID,
			Level:     EventLevelError,
			Message:   "Interface execution failed",
			Timestamp: now.Add(2 * time.Second),
		},
	}

	for _, event := range events {
		if err := store.AppendEvent(ctx, event); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if event.ID == 0 {
			t.Error("expected event ID to be set after insert")
		}
	}

	// Get all events for run
	retrieved, err := store.GetEvents(ctx, &run.ID, nil, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}

	if len(retrieved) != 3 {
		t.Errorf("expected 3 events, got %d", len(retrieved))
	}

	// Filter by hub
	hubFiltered, err := store.GetEvents(ctx, nil, &hubModules, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to get hub filtered events: %v", err)
	}

	if len(hubFiltered) != 2 {
		t.Errorf("expected 2 hub events, got %d", len(hubFiltered))
	}

	// Filter by level
	errorLevel := EventLevelError
	filtered, err := store.GetEvents(ctx, nil, nil, &errorLevel, 10, 0)
	if err != nil {
		t.Fatalf("failed to get filtered events: %v", err)
	}

	if len(filtered) != 1 {
		t.Errorf("expected 1 error event, got %d", len(filtered))
	}
	if filtered[0].Level != EventLevelError {
		t.Errorf("expected level %s, got %s", EventLevelError, filtered[0].Level)
	}
}

// TestSnapshotOperations tests Snapshot operations
func TestSnapshotOperations(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	// Create a run first
	run := &Run{
		ID:          "run-003",
		ProjectName: "wave_farm",
		Strategy:    "sensitivity",
		Status:      RunStatusCompleted,
		StartedAt:   now,
		Metadata:    `{}`,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	simID := "sim-1"
	snapshot := &Snapshot{
		ID:           "snap-001",
		ProjectName:  "wave_farm",
		SimulationID: &simID,
		RunID:        &run.ID,
		Bundle:       `{"title":"wave_farm","simulations":[]}`,
		Hash:         "abc123def456",
		CreatedAt:    now,
	}

	if err := store.CreateSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("failed to create snapshot: %v", err)
	}

	// Get by ID
	retrieved, err := store.GetSnapshot(ctx, snapshot.ID)
	if err != nil {
		t.Fatalf("failed to get snapshot: %v", err)
	}

	if retrieved.Hash != snapshot.Hash {
		t.Errorf("expected Hash %s, got %s", snapshot.Hash, retrieved.Hash)
	}
	if retrieved.Bundle != snapshot.Bundle {
		t.Error("bundle content does not match")
	}
	if retrieved.SimulationID == nil || *retrieved.SimulationID != simID {
		t.Errorf("expected SimulationID %s, got %v", simID, retrieved.SimulationID)
	}

	// Latest
	later := &Snapshot{
		ID:          "snap-002",
		ProjectName: "wave_farm",
		Bundle:      `{"title":"wave_farm","simulations":["sim-1"]}`,
		Hash:        "xyz789ghi012",
		CreatedAt:   now.Add(1 * time.Minute),
	}
	if err := store.CreateSnapshot(ctx, later); err != nil {
		t.Fatalf("failed to create second snapshot: %v", err)
	}

	latest, err := store.LatestSnapshot(ctx, "wave_farm")
	if err != nil {
		t.Fatalf("failed to get latest snapshot: %v", err)
	}
	if latest.ID != later.ID {
		t.Errorf("expected latest snapshot %s, got %s", later.ID, latest.ID)
	}

	// List
	snapshots, err := store.ListSnapshots(ctx, "wave_farm", 10, 0)
	if err != nil {
		t.Fatalf("failed to list snapshots: %v", err)
	}
	if len(snapshots) != 2 {
		t.Errorf("expected 2 snapshots, got %d", len(snapshots))
	}

	// Prune keeps the newest
	deleted, err := store.PruneSnapshots(ctx, "wave_farm", 1)
	if err != nil {
		t.Fatalf("failed to prune snapshots: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected 1 snapshot pruned, got %d", deleted)
	}

	_, err = store.GetSnapshot(ctx, snapshot.ID)
	if err == nil {
		t.Error("expected oldest snapshot to be pruned")
	}

	kept, err := store.GetSnapshot(ctx, later.ID)
	if err != nil {
		t.Fatalf("expected newest snapshot to survive prune: %v", err)
	}
	if kept.ID != later.ID {
		t.Errorf("expected kept snapshot %s, got %s", later.ID, kept.ID)
	}

	// Delete
	if err := store.DeleteSnapshot(ctx, later.ID); err != nil {
		t.Fatalf("failed to delete snapshot: %v", err)
	}

	_, err = store.GetSnapshot(ctx, later.ID)
	if err == nil {
		t.Error("expected error when getting deleted snapshot")
	}
}

// TestSnapshotRunDetach verifies that deleting a run detaches its
// snapshots rather than deleting them.
func TestSnapshotRunDetach(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	run := &Run{
		ID:          "run-004",
		ProjectName: "wave_farm",
		Strategy:    "basic",
		Status:      RunStatusCompleted,
		StartedAt:   now,
		Metadata:    `{}`,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	snapshot := &Snapshot{
		ID:          "snap-003",
		ProjectName: "wave_farm",
		RunID:       &run.ID,
		Bundle:      `{}`,
		Hash:        "deadbeef",
		CreatedAt:   now,
	}
	if err := store.CreateSnapshot(ctx, snapshot); err != nil {
		t.Fatalf("failed to create snapshot: %v", err)
	}

	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	retrieved, err := store.GetSnapshot(ctx, snapshot.ID)
	if err != nil {
		t.Fatalf("snapshot should survive run deletion: %v", err)
	}
	if retrieved.RunID != nil {
		t.Errorf("expected RunID to be cleared, got %v", *retrieved.RunID)
	}
}

// TestTransactions tests transaction support
func TestTransactions(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	// Begin transaction
	tx, err := store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}

	// Create run within transaction
	run := &Run{
		ID:          "run-tx-001",
		ProjectName: "wave_farm",
		Strategy:    "basic",
		Status:      RunStatusPending,
		StartedAt:   now,
		Metadata:    `{}`,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := `
		INSERT INTO runs (id, project_name, strategy, status, started_at, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query, run.ID, run.ProjectName, run.Strategy, run.Status, run.StartedAt, run.Metadata, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		store.RollbackTx(tx)
		t.Fatalf("failed to insert run in transaction: %v", err)
	}

	// Rollback
	if err := store.RollbackTx(tx); err != nil {
		t.Fatalf("failed to rollback transaction: %v", err)
	}

	// Verify run was not created
	_, err = store.GetRun(ctx, run.ID)
	if err == nil {
		t.Error("expected error when getting rolled back run")
	}

	// Begin new transaction and commit
	tx, err = store.BeginTx(ctx)
	if err != nil {
		t.Fatalf("failed to begin second transaction: %v", err)
	}

	_, err = tx.ExecContext(ctx, query, run.ID, run.ProjectName, run.Strategy, run.Status, run.StartedAt, run.Metadata, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		store.RollbackTx(tx)
		t.Fatalf("failed to insert run in second transaction: %v", err)
	}

	if err := store.CommitTx(tx); err != nil {
		t.Fatalf("failed to commit transaction: %v", err)
	}

	// Verify run was created
	retrieved, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to get committed run: %v", err)
	}

	if retrieved.ID != run.ID {
		t.Errorf("expected ID %s, got %s", run.ID, retrieved.ID)
	}
}

// TestCascadeDelete tests foreign key cascading
func TestCascadeDelete(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	// Create run
	run := &Run{
		ID:          "run-cascade-001",
		ProjectName: "wave_farm",
		Strategy:    "basic",
		Status:      RunStatusRunning,
		StartedAt:   now,
		Metadata:    `{}`,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	// Create event
	event := &Event{
		RunID:     &run.ID,
		Level:     EventLevelInfo,
		Message:   "test event",
		Timestamp: now,
	}
	if err := store.AppendEvent(ctx, event); err != nil {
		t.Fatalf("failed to append event: %v", err)
	}

	// Delete run (should cascade to events)
	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("failed to delete run: %v", err)
	}

	// Verify events were deleted
	events, err := store.GetEvents(ctx, &run.ID, nil, nil, 10, 0)
	if err != nil {
		t.Fatalf("failed to get events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected 0 events after cascade delete, got %d", len(events))
	}
}

// TestMain sets up and tears down test environment
func TestMain(m *testing.M) {
	// Run tests
	code := m.Run()

	// Exit
	os.Exit(code)
}
