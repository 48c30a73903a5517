package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed but do not
	// block execution.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that block the interface from
	// executing.
	SeverityError Severity = "error"

	// SeverityCritical is for severe violations that block execution and
	// require immediate attention.
	SeverityCritical Severity = "critical"
)

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description explains what the policy enforces.
	Description string `json:"description"`

	// Rego is the policy source in the Rego language.
	Rego string `json:"rego"`

	// Severity is the default severity for violations of this policy.
	// Individual deny rules may override it.
	Severity Severity `json:"severity"`

	// Enabled controls whether the policy is evaluated.
	Enabled bool `json:"enabled"`

	// Tags categorise the policy.
	Tags []string `json:"tags,omitempty"`

	// Metadata holds additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation represents a single policy violation raised during evaluation.
type Violation struct {
	// Policy is the name of the policy that produced the violation.
	Policy string `json:"policy"`

	// Message describes the violation.
	Message string `json:"message"`

	// Severity of this violation.
	Severity string `json:"severity"`

	// HubID identifies the hub the gated interface belongs to.
	HubID string `json:"hub_id,omitempty"`

	// Interface is the class name of the gated interface.
	Interface string `json:"interface,omitempty"`

	// Details holds structured violation details from the deny rule.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Result is the outcome of evaluating all enabled policies against an input.
type Result struct {
	// Allowed is false when any violation has error or critical severity.
	Allowed bool `json:"allowed"`

	// Violations raised during evaluation.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings about policies that failed to evaluate.
	Warnings []string `json:"warnings,omitempty"`

	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Input is the document handed to Rego policies when an interface is about
// to be sequenced or executed.
type Input struct {
	// HubID identifies the hub the interface belongs to.
	HubID string `json:"hub_id"`

	// Interface is the class name of the interface being gated.
	Interface string `json:"interface"`

	// UnsatisfiedInputs lists required input variables that have no value
	// in the active data state.
	UnsatisfiedInputs []string `json:"unsatisfied_inputs"`

	// Project carries project-level metadata (name, title, and arbitrary
	// key/value pairs from the configuration).
	Project map[string]interface{} `json:"project,omitempty"`

	// Context provides evaluation context.
	Context *Context `json:"context,omitempty"`
}

// Context provides additional context for policy evaluation.
type Context struct {
	// User who initiated the operation.
	User string `json:"user,omitempty"`

	// Environment is the target environment (production, staging, etc.).
	Environment string `json:"environment,omitempty"`

	// Timestamp of the evaluation.
	Timestamp time.Time `json:"timestamp"`

	// Operation being gated (sequence, execute).
	Operation string `json:"operation"`

	// Simulation is the title of the active simulation, if any.
	Simulation string `json:"simulation,omitempty"`

	// DryRun indicates whether this is a dry-run evaluation.
	DryRun bool `json:"dry_run"`

	// Metadata holds additional context values.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// PolicyBundle is a versioned collection of policies loaded as a unit.
type PolicyBundle struct {
	// Name of the bundle.
	Name string `json:"name"`

	// Version of the bundle.
	Version string `json:"version"`

	// Description of the bundle.
	Description string `json:"description,omitempty"`

	// Policies in the bundle.
	Policies []Policy `json:"policies"`

	CreatedAt time.Time `json:"created_at"`
}

// Report summarises policy evaluation across a whole simulation run.
type Report struct {
	// SimulationID identifies the simulation the report covers.
	SimulationID string `json:"simulation_id"`

	// GeneratedAt is when the report was produced.
	GeneratedAt time.Time `json:"generated_at"`

	// Results collects every evaluation performed during the run.
	Results []Result `json:"results"`

	// Summary aggregates counts across all results.
	Summary Summary `json:"summary"`

	// Violations flattens all violations for convenience.
	Violations []Violation `json:"violations,omitempty"`
}

// Summary aggregates evaluation and violation counts by severity.
type Summary struct {
	Evaluations int `json:"evaluations"`
	Allowed     int `json:"allowed"`
	Denied      int `json:"denied"`
	Info        int `json:"info"`
	Warning     int `json:"warning"`
	Error       int `json:"error"`
	Critical    int `json:"critical"`
}

// AddResult folds a single evaluation result into the report.
func (r *Report) AddResult(res Result) {
	r.Results = append(r.Results, res)
	r.Summary.Evaluations++
	if res.Allowed {
		r.Summary.Allowed++
	} else {
		r.Summary.Denied++
	}
	for i := range res.Violations {
		r.Violations = append(r.Violations, res.Violations[i])
		switch Severity(res.Violations[i].Severity) {
		case SeverityInfo:
			r.Summary.Info++
		case SeverityWarning:
			r.Summary.Warning++
		case SeverityError:
			r.Summary.Error++
		case SeverityCritical:
			r.Summary.Critical++
		}
	}
}
