// Package config provides CUE configuration parsing and Starlark evaluation
// for ArrayForge simulation projects.
//
// # Overview
//
// The config package implements the configuration evaluation phase of
// ArrayForge, responsible for parsing CUE project files, validating schemas,
// and executing Starlark scripts for value generation.
//
// # Features
//
//   - CUE configuration parsing from files, directories, and inline content
//   - Schema validation with built-in schemas for projects, hubs, and policies
//   - Starlark script execution for value sequence generation
//   - Type-safe configuration structures
//   - Error reporting with file locations and line numbers
//
// # Components
//
// CUEParser: Main parser for CUE configuration files, producing a validated
// ProjectConfig for the project layer.
//
// SchemaRegistry: Manages CUE schemas for validation. Provides built-in
// schemas for common configuration patterns and supports custom schema
// registration.
//
// StarlarkEvaluator: Safe Starlark script execution with timeout enforcement
// and sandboxing. Provides built-in functions and type conversion between Go
// and Starlark.
//
// # Usage Example
//
//	// Create a new parser
//	parser := config.NewCUEParser()
//
//	// Parse configuration files
//	cfg, err := parser.Evaluate(ctx, []string{"project.cue"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Validate against schemas
//	if err := parser.Validate(ctx, cfg); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Execute Starlark to generate a value sequence
//	input := map[string]interface{}{"count": 5}
//	output, err := parser.EvaluateStarlark(ctx, script, input)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # CUE Configuration Structure
//
// ArrayForge uses CUE to define simulation projects with strong typing and
// validation. A typical configuration includes:
//
//	project: {
//	    name: "wave_farm"
//	    title: "Wave Farm Study"
//	    catalog_dirs: ["./catalog"]
//	    levels: ["system input", "hydrodynamics", "electrical", "economics"]
//	    store: {path: "./wave_farm.db"}
//	}
//
//	hubs: {
//	    modules: {
//	        kind: "pipeline"
//	        interface_type: "ModuleInterface"
//	    }
//	    themes: {
//	        kind: "hub"
//	        interface_type: "ThemeInterface"
//	        no_complete: true
//	    }
//	}
//
// # Starlark Integration
//
// Starlark scripts generate value sequences for sensitivity runs. The
// convention is to assign the sequence to a global named "values":
//
//	# Sweep rated power from 100 kW to 500 kW
//	values = [100.0 + 100.0 * i for i in range(5)]
//
// # Schema Validation
//
// Built-in schemas enforce configuration correctness:
//
//   - Project schema: Validates the project block with required fields
//   - Hub schema: Validates hub and pipeline declarations
//   - Store schema: Validates persistence configuration
//   - Policy schema: Validates policy enforcement configuration
//
// Custom schemas can be registered for domain-specific validation.
//
// # Error Handling
//
// All parsing and validation errors include detailed location information:
//
//	ValidationError{
//	    File: "project.cue",
//	    Line: 42,
//	    Column: 5,
//	    Path: "hubs.modules",
//	    Message: "field 'interface_type' is required",
//	    Severity: "error",
//	}
//
// # Security
//
// Starlark execution is sandboxed:
//   - No filesystem access
//   - No network access
//   - Timeout enforcement (default 30 seconds)
//   - Print statements suppressed
//   - Only safe built-in functions provided
//
// # Thread Safety
//
// All types in this package are safe for concurrent use.
package config
