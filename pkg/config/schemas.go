package config

import (
	"context"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	ctx := cuecontext.New()
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}

	// Register built-in schemas
	sr.registerBuiltInSchemas()

	return sr
}

// registerBuiltInSchemas registers all built-in schemas.
func (sr *SchemaRegistry) registerBuiltInSchemas() {
	// Register project schema
	sr.RegisterSchema("project", builtinProjectSchema)

	// Register hub schema
	sr.RegisterSchema("hub", builtinHubSchema)

	// Register store schema
	sr.RegisterSchema("store", builtinStoreSchema)

	// Register policy schema
	sr.RegisterSchema("policy", builtinPolicySchema)

	// Register telemetry schema
	sr.RegisterSchema("telemetry", builtinTelemetrySchema)
}

// RegisterSchema registers a CUE schema with the given name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	// Convert data to CUE value
	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	// Unify with schema (validates)
	unified := schemaDefinition(schema).Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// schemaDefinition resolves the first definition in a compiled schema file,
// so constraints apply to the unified data rather than sitting alongside it.
func schemaDefinition(val cue.Value) cue.Value {
	iter, err := val.Fields(cue.Definitions(true))
	if err != nil {
		return val
	}
	for iter.Next() {
		if iter.Selector().IsDefinition() {
			return iter.Value()
		}
	}
	return val
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

// Built-in schema definitions

const builtinProjectSchema = `
// Project schema for ArrayForge project configuration
#Project: {
	// Name is the project name
	name: string & =~"^[a-zA-Z0-9_-]+$"

	// Title is the human-readable project title
	title?: string

	// Version is the configuration version
	version?: string

	// CatalogDirs lists variable definition directories
	catalog_dirs?: [...string]

	// Hubs declares the hubs and pipelines
	hubs?: [...#Hub]

	// Levels names the simulation levels in execution order
	levels?: [...string]

	// Store configures persistence
	store?: {
		path?:      string
		in_memory?: bool
	}

	// Policy configures policy enforcement
	policy?: {
		enabled: bool
		paths?: [...string]
		mode?:         "advisory" | "enforcing"
		on_violation?: "warn" | "fail"
	}

	// Telemetry configures metrics and tracing
	telemetry?: {
		enabled: bool
		environment?:      "development" | "production"
		metrics_listen?:   string
		tracing_exporter?: "stdout" | "otlp" | "none"
		tracing_endpoint?: string
	}

	// Variables are project-level variables
	variables?: {[string]: _}

	// Metadata contains additional project metadata
	metadata?: {[string]: _}
}
`

const builtinHubSchema = `
// Hub schema for hub and pipeline declarations
#Hub: {
	// ID is the unique identifier for this hub
	id: string & =~"^[a-zA-Z0-9_-]+$"

	// Kind selects the sequencing model
	kind: "hub" | "pipeline"

	// InterfaceType names the registered interface type
	interface_type: string & =~"^[A-Za-z0-9]+$"

	// NoComplete disables completion bookkeeping
	no_complete?: bool
}
`

const builtinStoreSchema = `
// Store schema for persistence configuration
#Store: {
	// Path is the SQLite database path
	path?: string

	// InMemory selects an in-memory database
	in_memory?: bool
}
`

const builtinPolicySchema = `
// Policy schema for sequencing policy configuration
#Policy: {
	// Enabled indicates if policy enforcement is enabled
	enabled: bool

	// Paths lists policy file or directory paths
	paths?: [...string]

	// Mode is the enforcement mode
	mode?: "advisory" | "enforcing"

	// OnViolation specifies the action on violation
	on_violation?: "warn" | "fail"
}
`

const builtinTelemetrySchema = `
// Telemetry schema for metrics and tracing configuration
#Telemetry: {
	// Enabled switches the telemetry stack on
	enabled: bool

	// Environment selects the telemetry profile
	environment?: "development" | "production"

	// MetricsListen is the Prometheus endpoint address
	metrics_listen?: string

	// TracingExporter selects the span exporter
	tracing_exporter?: "stdout" | "otlp" | "none"

	// TracingEndpoint is the OTLP collector endpoint
	tracing_endpoint?: string
}
`

// ValidateProject validates a project configuration against the project schema.
func (sr *SchemaRegistry) ValidateProject(ctx context.Context, project ProjectConfig) error {
	return sr.ValidateAgainstSchema(ctx, "project", project)
}

// ValidateHub validates a hub declaration against the hub schema.
func (sr *SchemaRegistry) ValidateHub(ctx context.Context, hub HubConfig) error {
	return sr.ValidateAgainstSchema(ctx, "hub", hub)
}

// ValidateStore validates a store configuration against the store schema.
func (sr *SchemaRegistry) ValidateStore(ctx context.Context, store StoreConfig) error {
	return sr.ValidateAgainstSchema(ctx, "store", store)
}

// ValidatePolicy validates a policy configuration against the policy schema.
func (sr *SchemaRegistry) ValidatePolicy(ctx context.Context, policy PolicyConfig) error {
	return sr.ValidateAgainstSchema(ctx, "policy", policy)
}

// ValidateTelemetry validates a telemetry configuration against the
// telemetry schema.
func (sr *SchemaRegistry) ValidateTelemetry(ctx context.Context, telemetry TelemetryConfig) error {
	return sr.ValidateAgainstSchema(ctx, "telemetry", telemetry)
}
