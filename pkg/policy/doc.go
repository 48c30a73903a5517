// Package policy provides Open Policy Agent (OPA) integration for ArrayForge.
//
// This package implements policy enforcement for interface execution using
// the Rego policy language. Before an interface is sequenced or executed, the
// engine evaluates every enabled policy against an input document describing
// the interface, its hub, its unsatisfied required inputs, and the project's
// metadata. It includes built-in policies for common governance requirements
// and supports custom policy loading with hot reload.
//
// # Architecture
//
// The policy system consists of four main components:
//
//  1. Engine - Compiles and evaluates Rego policies
//  2. Loader - Loads policies from files, directories, and bundles
//  3. Types - Data structures for policies, violations, and results
//  4. Built-in Policies - Pre-defined policies for common requirements
//
// # Usage
//
// Creating a policy engine:
//
//	logger := zerolog.New(os.Stdout)
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Gating an interface:
//
//	input := &policy.Input{
//	    HubID:             "modules",
//	    Interface:         "HydrodynamicsInterface",
//	    UnsatisfiedInputs: []string{"device.system_type"},
//	    Project: map[string]interface{}{
//	        "name": "wave_farm",
//	    },
//	}
//
//	result, err := engine.EvaluateInterface(ctx, input)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !result.Allowed {
//	    for _, violation := range result.Violations {
//	        fmt.Printf("Policy %s violated: %s\n", violation.Policy, violation.Message)
//	    }
//	}
//
// Loading custom policies:
//
//	paths := []string{
//	    "/etc/arrayforge/policies",
//	    "/opt/policies/custom.rego",
//	}
//
//	err = engine.LoadPolicies(ctx, paths)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Built-in Policies
//
// The following policies are included by default:
//
//  1. unsatisfied-inputs - Denies execution while required inputs are missing
//  2. hub-naming - Enforces hub identifier conventions
//  3. interface-naming - Enforces interface class naming conventions
//  4. project-lock - Denies execution when the project is locked
//  5. production-execution - Restricts unapproved execution in production
//
// # Custom Policies
//
// Custom policies can be written in Rego and loaded from files:
//
//	package custom.policies.approvals
//
//	import rego.v1
//
//	deny contains violation if {
//	    # Theme interfaces need sign-off before running
//	    input.hub_id == "themes"
//	    not input.project.themes_approved
//
//	    violation := {
//	        "message": "Theme interfaces require project approval",
//	        "severity": "error",
//	        "hub": input.hub_id,
//	        "interface": input.interface,
//	    }
//	}
//
// # Policy Evaluation Points
//
// Policies are evaluated at two points in the ArrayForge workflow:
//
//  1. Sequencing - Before an interface is scheduled onto a hub
//  2. Execution - Before a connected interface runs
//
// # Severity Levels
//
// Violations have four severity levels:
//
//  - info: Informational messages
//  - warning: Issues that should be reviewed but don't block execution
//  - error: Issues that block execution
//  - critical: Severe issues requiring immediate attention
//
// # Hot Reload
//
// The engine can watch policy files for changes and swap the compiled
// set automatically:
//
//	err = engine.WatchPolicies(ctx, paths)
//
// Lower-level callers can drive the loader directly:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return engine.ReplacePolicies(ctx, policies)
//	})
//
// # Performance
//
// Policies are compiled once and reused for multiple evaluations. The engine
// uses OPA's PreparedEvalQuery for optimal performance. Caching is implemented
// at both the loader and engine levels.
//
// # Context Injection
//
// Policy evaluations can include context information:
//
//  - User: Who initiated the operation
//  - Environment: Target environment (production, staging, etc.)
//  - Operation: Type of operation (sequence, execute)
//  - Simulation: Title of the active simulation
//  - Timestamp: When the evaluation occurred
//  - Dry run: Whether this is a dry-run evaluation
//
// This context allows policies to make environment-aware decisions.
package policy
