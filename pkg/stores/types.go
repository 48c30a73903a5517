package stores

import (
	"context"
	"database/sql"
	"time"
)

// RunStatus represents the status of an execution run
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Run represents one execution of a project, whether driven by the CLI
// or by a strategy.
type Run struct {
	ID          string     `json:"id"`
	ProjectName string     `json:"project_name"`
	Strategy    string     `json:"strategy"`
	Status      RunStatus  `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       *string    `json:"error,omitempty"`
	Metadata    string     `json:"metadata"` // JSON blob
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Event represents an append-only log event from simulation execution
type Event struct {
	ID        int64      `json:"id"`
	RunID     *string    `json:"run_id,omitempty"`
	HubID     *string    `json:"hub_id,omitempty"`
	Interface *string    `json:"interface,omitempty"`
	Level     EventLevel `json:"level"`
	Message   string     `json:"message"`
	Details   *string    `json:"details,omitempty"` // JSON blob
	Timestamp time.Time  `json:"timestamp"`
}

// Snapshot represents a serialized project bundle captured at a point in
// time, indexed by project and optionally by simulation and run.
type Snapshot struct {
	ID           string    `json:"id"`
	ProjectName  string    `json:"project_name"`
	SimulationID *string   `json:"simulation_id,omitempty"`
	RunID        *string   `json:"run_id,omitempty"`
	Bundle       string    `json:"bundle"` // JSON blob
	Hash         string    `json:"hash"`   // SHA256 of bundle for integrity checks
	CreatedAt    time.Time `json:"created_at"`
}

// Store defines the interface for the persistence layer
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Transaction support
	BeginTx(ctx context.Context) (*sql.Tx, error)
	CommitTx(tx *sql.Tx) error
	RollbackTx(tx *sql.Tx) error

	// Run operations
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	UpdateRunStatus(ctx context.Context, id string, status RunStatus, err *string) error
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	DeleteRun(ctx context.Context, id string) error

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, runID *string, hubID *string, level *EventLevel, limit, offset int) ([]*Event, error)

	// Snapshot operations
	CreateSnapshot(ctx context.Context, snapshot *Snapshot) error
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
	LatestSnapshot(ctx context.Context, projectName string) (*Snapshot, error)
	ListSnapshots(ctx context.Context, projectName string, limit, offset int) ([]*Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error
	PruneSnapshots(ctx context.Context, projectName string, keep int) (int64, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
