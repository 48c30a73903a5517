package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		unsatisfiedInputsPolicy(),
		hubNamingPolicy(),
		interfaceNamingPolicy(),
		projectLockPolicy(),
		productionExecutionPolicy(),
	}
}

// unsatisfiedInputsPolicy denies execution of interfaces whose required
// inputs have no value in the active data state. This mirrors the check
// the loader performs, but at the gate level where custom policies can
// observe and extend it.
func unsatisfiedInputsPolicy() Policy {
	return Policy{
		Name:        "unsatisfied-inputs",
		Description: "Denies interface execution when required input variables are unsatisfied",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"inputs", "sequencing"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package arrayforge.policies.inputs

import rego.v1

# An interface may not run while required inputs are missing
deny contains violation if {
	count(input.unsatisfied_inputs) > 0
	missing := concat(", ", input.unsatisfied_inputs)

	violation := {
		"message": sprintf("Interface %s has unsatisfied required inputs: %s", [input.interface, missing]),
		"severity": "error",
		"hub": input.hub_id,
		"interface": input.interface,
	}
}`,
	}
}

// hubNamingPolicy enforces hub identifier conventions.
func hubNamingPolicy() Policy {
	return Policy{
		Name:        "hub-naming",
		Description: "Enforces hub identifier conventions (lowercase, alphanumeric, underscores and hyphens)",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package arrayforge.policies.hubnaming

import rego.v1

deny contains violation if {
	input.hub_id

	# Hub ids must be lowercase
	lower(input.hub_id) != input.hub_id
	violation := {
		"message": sprintf("Hub id '%s' must be lowercase", [input.hub_id]),
		"severity": "warning",
		"hub": input.hub_id,
	}
}

deny contains violation if {
	input.hub_id

	# Hub ids must be alphanumeric with underscores or hyphens
	not regex.match("^[a-z0-9_-]+$", input.hub_id)
	violation := {
		"message": sprintf("Hub id '%s' must contain only lowercase letters, numbers, underscores, and hyphens", [input.hub_id]),
		"severity": "warning",
		"hub": input.hub_id,
	}
}`,
	}
}

// interfaceNamingPolicy enforces interface class name conventions.
func interfaceNamingPolicy() Policy {
	return Policy{
		Name:        "interface-naming",
		Description: "Enforces interface class naming conventions (CamelCase, alphanumeric)",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"naming", "conventions"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package arrayforge.policies.ifacenaming

import rego.v1

deny contains violation if {
	input.interface

	# Interface class names start with an uppercase letter
	not regex.match("^[A-Z][A-Za-z0-9]*$", input.interface)
	violation := {
		"message": sprintf("Interface class name '%s' must be CamelCase alphanumeric", [input.interface]),
		"severity": "warning",
		"hub": input.hub_id,
		"interface": input.interface,
	}
}`,
	}
}

// projectLockPolicy denies any interface execution when the project is
// marked as locked in its metadata.
func projectLockPolicy() Policy {
	return Policy{
		Name:        "project-lock",
		Description: "Denies interface execution when the project is locked",
		Severity:    SeverityCritical,
		Enabled:     true,
		Tags:        []string{"governance"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package arrayforge.policies.lock

import rego.v1

deny contains violation if {
	input.project.locked == true

	violation := {
		"message": sprintf("Project '%s' is locked; interface execution is not permitted", [input.project.name]),
		"severity": "critical",
		"hub": input.hub_id,
		"interface": input.interface,
	}
}`,
	}
}

// productionExecutionPolicy restricts execution against production
// environments to projects explicitly approved for it.
func productionExecutionPolicy() Policy {
	return Policy{
		Name:        "production-execution",
		Description: "Restricts interface execution in production environments to approved projects",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"governance", "environments"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package arrayforge.policies.production

import rego.v1

deny contains violation if {
	input.context.environment == "production"
	input.context.operation == "execute"
	not input.context.dry_run
	not input.project.production_approved

	violation := {
		"message": sprintf("Interface %s may not execute in production without project approval", [input.interface]),
		"severity": "error",
		"hub": input.hub_id,
		"interface": input.interface,
	}
}`,
	}
}
