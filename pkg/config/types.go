package config

import (
	"time"
)

// HubConfig declares one hub or pipeline in a project configuration.
type HubConfig struct {
	// ID is the unique identifier for this hub (e.g., "modules").
	ID string `json:"id" validate:"required"`

	// Kind selects the sequencing model: a hub completes interfaces in any
	// order, a pipeline enforces the scheduled order.
	Kind string `json:"kind" validate:"required,oneof=hub pipeline"`

	// InterfaceType names the registered interface type this hub sequences.
	InterfaceType string `json:"interface_type" validate:"required"`

	// NoComplete disables completion bookkeeping for the hub.
	NoComplete bool `json:"no_complete,omitempty"`
}

// StoreConfig configures run and snapshot persistence.
type StoreConfig struct {
	// Path is the SQLite database path. Ignored when InMemory is set.
	Path string `json:"path,omitempty"`

	// InMemory selects an in-memory database, useful for tests.
	InMemory bool `json:"in_memory,omitempty"`
}

// PolicyConfig configures sequencing policy enforcement.
type PolicyConfig struct {
	// Enabled indicates if policy enforcement is enabled.
	Enabled bool `json:"enabled"`

	// Paths lists policy file or directory paths.
	Paths []string `json:"paths,omitempty"`

	// Mode is the enforcement mode (advisory, enforcing).
	Mode string `json:"mode,omitempty" validate:"omitempty,oneof=advisory enforcing"`

	// OnViolation specifies the action on violation (warn, fail).
	OnViolation string `json:"on_violation,omitempty" validate:"omitempty,oneof=warn fail"`
}

// TelemetryConfig configures metrics and tracing for commands.
type TelemetryConfig struct {
	// Enabled switches the telemetry stack on.
	Enabled bool `json:"enabled"`

	// Environment selects the telemetry profile.
	Environment string `json:"environment,omitempty" validate:"omitempty,oneof=development production"`

	// MetricsListen is the address of the Prometheus endpoint. Metrics
	// are disabled when empty.
	MetricsListen string `json:"metrics_listen,omitempty"`

	// TracingExporter selects the span exporter (stdout, otlp, none).
	TracingExporter string `json:"tracing_exporter,omitempty" validate:"omitempty,oneof=stdout otlp none"`

	// TracingEndpoint is the OTLP collector endpoint.
	TracingEndpoint string `json:"tracing_endpoint,omitempty"`
}

// ProjectConfig is the project configuration parsed from CUE.
type ProjectConfig struct {
	// Name is the project name.
	Name string `json:"name" validate:"required"`

	// Title is the human-readable project title.
	Title string `json:"title,omitempty"`

	// Version is the configuration version.
	Version string `json:"version,omitempty"`

	// CatalogDirs lists directories holding variable definition documents.
	CatalogDirs []string `json:"catalog_dirs,omitempty"`

	// Hubs declares the hubs and pipelines for new simulations.
	Hubs []HubConfig `json:"hubs,omitempty" validate:"dive"`

	// Levels names the simulation levels in execution order.
	Levels []string `json:"levels,omitempty"`

	// Store configures persistence.
	Store *StoreConfig `json:"store,omitempty"`

	// Policy configures policy enforcement.
	Policy *PolicyConfig `json:"policy,omitempty"`

	// Telemetry configures metrics and tracing.
	Telemetry *TelemetryConfig `json:"telemetry,omitempty"`

	// Variables are project-level variables available to strategies.
	Variables map[string]interface{} `json:"variables,omitempty"`

	// Metadata contains additional project metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ParsedConfig represents the fully parsed configuration from CUE.
type ParsedConfig struct {
	// Project is the project configuration.
	Project ProjectConfig `json:"project"`

	// SourceFiles are the CUE files that were parsed.
	SourceFiles []string `json:"source_files"`

	// ParsedAt is when the configuration was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors lists any validation errors.
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the CUE path to the error (e.g., "project.hubs").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity" validate:"required,oneof=error warning info"`
}

// ConfigSource represents a source of CUE configuration.
type ConfigSource struct {
	// Type is the source type (file, directory, inline).
	Type string `json:"type" validate:"required,oneof=file directory inline"`

	// Path is the file or directory path.
	Path string `json:"path,omitempty"`

	// Content is the inline CUE content.
	Content string `json:"content,omitempty"`
}

// EvaluateOptions controls CUE evaluation behavior.
type EvaluateOptions struct {
	// Package is the CUE package to evaluate.
	Package string `json:"package,omitempty"`

	// Tags are CUE build tags (e.g., "env=prod").
	Tags []string `json:"tags,omitempty"`

	// Concrete requires all values to be concrete (no unresolved references).
	Concrete bool `json:"concrete"`

	// ValidateSchemas enables schema validation during evaluation.
	ValidateSchemas bool `json:"validate_schemas"`

	// StarlarkTimeout is the timeout for Starlark execution.
	StarlarkTimeout time.Duration `json:"starlark_timeout,omitempty"`
}

// StarlarkResult represents the result of Starlark execution.
type StarlarkResult struct {
	// Output is the output data from Starlark.
	Output map[string]interface{} `json:"output,omitempty"`

	// ExecutionTime is how long the script took to execute.
	ExecutionTime time.Duration `json:"execution_time"`

	// Error is any error that occurred.
	Error string `json:"error,omitempty"`
}

// HubByID returns the hub declaration with the given id.
func (pc *ProjectConfig) HubByID(id string) (HubConfig, bool) {
	for _, hub := range pc.Hubs {
		if hub.ID == id {
			return hub, true
		}
	}
	return HubConfig{}, false
}

// StorePath returns the configured store path or the given default.
func (pc *ProjectConfig) StorePath(fallback string) string {
	if pc.Store == nil || pc.Store.Path == "" {
		return fallback
	}
	return pc.Store.Path
}
