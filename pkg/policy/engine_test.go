package policy

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewEngine(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if eng == nil {
		t.Fatal("Engine is nil")
	}

	// Check that built-in policies are loaded
	policies := eng.ListPolicies()
	if len(policies) == 0 {
		t.Fatal("No built-in policies loaded")
	}

	expectedPolicies := []string{
		"unsatisfied-inputs",
		"hub-naming",
		"interface-naming",
		"project-lock",
		"production-execution",
	}

	for _, expected := range expectedPolicies {
		found := false
		for _, p := range policies {
			if p.Name == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected built-in policy not found: %s", expected)
		}
	}
}

func TestEvaluateInterface_UnsatisfiedInputs(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tests := []struct {
		name            string
		input           *Input
		expectAllowed   bool
		expectViolation bool
	}{
		{
			name: "all inputs satisfied",
			input: &Input{
				HubID:             "modules",
				Interface:         "HydrodynamicsInterface",
				UnsatisfiedInputs: []string{},
			},
			expectAllowed:   true,
			expectViolation: false,
		},
		{
			name: "one unsatisfied input",
			input: &Input{
				HubID:             "modules",
				Interface:         "HydrodynamicsInterface",
				UnsatisfiedInputs: []string{"device.system_type"},
			},
			expectAllowed:   false,
			expectViolation: true,
		},
		{
			name: "multiple unsatisfied inputs",
			input: &Input{
				HubID:     "modules",
				Interface: "ElectricalInterface",
				UnsatisfiedInputs: []string{
					"device.power_rating",
					"site.lease_area",
				},
			},
			expectAllowed:   false,
			expectViolation: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.EvaluateInterface(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}

			if result.Allowed != tt.expectAllowed {
				t.Errorf("Expected allowed=%v, got %v. Violations: %+v",
					tt.expectAllowed, result.Allowed, result.Violations)
			}

			hasViolation := false
			for _, v := range result.Violations {
				if v.Policy == "unsatisfied-inputs" {
					hasViolation = true
				}
			}
			if hasViolation != tt.expectViolation {
				t.Errorf("Expected violation=%v, got %v violations: %+v",
					tt.expectViolation, hasViolation, result.Violations)
			}
		})
	}
}

func TestEvaluateInterface_HubNaming(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tests := []struct {
		name            string
		hubID           string
		expectAllowed   bool
		expectViolation bool
	}{
		{
			name:            "valid hub id",
			hubID:           "modules",
			expectAllowed:   true,
			expectViolation: false,
		},
		{
			name:            "hub id with underscore",
			hubID:           "project_themes",
			expectAllowed:   true,
			expectViolation: false,
		},
		{
			name:            "uppercase hub id",
			hubID:           "Modules",
			expectAllowed:   true, // naming violations are warnings
			expectViolation: true,
		},
		{
			name:            "hub id with spaces",
			hubID:           "my hub",
			expectAllowed:   true,
			expectViolation: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := &Input{
				HubID:             tt.hubID,
				Interface:         "DemoInterface",
				UnsatisfiedInputs: []string{},
			}

			result, err := eng.EvaluateInterface(context.Background(), input)
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}

			if result.Allowed != tt.expectAllowed {
				t.Errorf("Expected allowed=%v, got %v. Violations: %+v",
					tt.expectAllowed, result.Allowed, result.Violations)
			}

			hasViolation := false
			for _, v := range result.Violations {
				if v.Policy == "hub-naming" {
					hasViolation = true
				}
			}
			if hasViolation != tt.expectViolation {
				t.Errorf("Expected violation=%v, got %v violations: %+v",
					tt.expectViolation, hasViolation, result.Violations)
			}
		})
	}
}

func TestEvaluateInterface_ProjectLock(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	input := &Input{
		HubID:             "modules",
		Interface:         "HydrodynamicsInterface",
		UnsatisfiedInputs: []string{},
		Project: map[string]interface{}{
			"name":   "wave_farm",
			"locked": true,
		},
	}

	result, err := eng.EvaluateInterface(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	if result.Allowed {
		t.Error("Expected locked project to deny execution")
	}

	found := false
	for _, v := range result.Violations {
		if v.Policy == "project-lock" {
			found = true
			if v.Severity != string(SeverityCritical) {
				t.Errorf("Expected critical severity, got %s", v.Severity)
			}
		}
	}
	if !found {
		t.Error("Expected a project-lock violation")
	}
}

func TestEvaluateInterface_ProductionExecution(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tests := []struct {
		name          string
		project       map[string]interface{}
		ctx           *Context
		expectAllowed bool
	}{
		{
			name:    "production execute without approval",
			project: map[string]interface{}{"name": "wave_farm"},
			ctx: &Context{
				Environment: "production",
				Operation:   "execute",
				Timestamp:   time.Now(),
			},
			expectAllowed: false,
		},
		{
			name: "production execute with approval",
			project: map[string]interface{}{
				"name":                "wave_farm",
				"production_approved": true,
			},
			ctx: &Context{
				Environment: "production",
				Operation:   "execute",
				Timestamp:   time.Now(),
			},
			expectAllowed: true,
		},
		{
			name:    "production dry run",
			project: map[string]interface{}{"name": "wave_farm"},
			ctx: &Context{
				Environment: "production",
				Operation:   "execute",
				DryRun:      true,
				Timestamp:   time.Now(),
			},
			expectAllowed: true,
		},
		{
			name:    "development execute",
			project: map[string]interface{}{"name": "wave_farm"},
			ctx: &Context{
				Environment: "development",
				Operation:   "execute",
				Timestamp:   time.Now(),
			},
			expectAllowed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := &Input{
				HubID:             "modules",
				Interface:         "HydrodynamicsInterface",
				UnsatisfiedInputs: []string{},
				Project:           tt.project,
				Context:           tt.ctx,
			}

			result, err := eng.EvaluateInterface(context.Background(), input)
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}

			if result.Allowed != tt.expectAllowed {
				t.Errorf("Expected allowed=%v, got %v. Violations: %+v",
					tt.expectAllowed, result.Allowed, result.Violations)
			}
		})
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	policyName := "unsatisfied-inputs"

	// Disable the policy
	err = eng.DisablePolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}

	policy, err := eng.GetPolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to get policy: %v", err)
	}

	if policy.Enabled {
		t.Error("Policy should be disabled")
	}

	// An interface with missing inputs should now pass the gate
	input := &Input{
		HubID:             "modules",
		Interface:         "HydrodynamicsInterface",
		UnsatisfiedInputs: []string{"device.system_type"},
	}

	result, err := eng.EvaluateInterface(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	for _, v := range result.Violations {
		if v.Policy == policyName {
			t.Error("Disabled policy should not generate violations")
		}
	}

	// Re-enable the policy
	err = eng.EnablePolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to enable policy: %v", err)
	}

	policy, err = eng.GetPolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to get policy: %v", err)
	}

	if !policy.Enabled {
		t.Error("Policy should be enabled")
	}
}

func TestEvaluateSequence(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	inputs := []Input{
		{
			HubID:             "modules",
			Interface:         "HydrodynamicsInterface",
			UnsatisfiedInputs: []string{},
		},
		{
			HubID:             "modules",
			Interface:         "ElectricalInterface",
			UnsatisfiedInputs: []string{"device.power_rating"},
		},
	}

	report, err := eng.EvaluateSequence(context.Background(), "sim-1", inputs)
	if err != nil {
		t.Fatalf("Sequence evaluation failed: %v", err)
	}

	if report.SimulationID != "sim-1" {
		t.Errorf("Expected simulation id 'sim-1', got '%s'", report.SimulationID)
	}

	if report.Summary.Evaluations != 2 {
		t.Errorf("Expected 2 evaluations, got %d", report.Summary.Evaluations)
	}

	if report.Summary.Allowed != 1 {
		t.Errorf("Expected 1 allowed, got %d", report.Summary.Allowed)
	}

	if report.Summary.Denied != 1 {
		t.Errorf("Expected 1 denied, got %d", report.Summary.Denied)
	}

	if report.Summary.Error == 0 {
		t.Error("Expected at least one error-severity violation")
	}
}

func TestReloadPolicies(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	initialCount := len(eng.ListPolicies())

	// Reload policies
	err = eng.ReloadPolicies(context.Background())
	if err != nil {
		t.Fatalf("Failed to reload policies: %v", err)
	}

	afterReloadCount := len(eng.ListPolicies())

	if initialCount != afterReloadCount {
		t.Errorf("Expected %d policies after reload, got %d", initialCount, afterReloadCount)
	}
}

func TestReplacePolicies(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	builtinCount := len(eng.ListPolicies())

	custom := Policy{
		Name:        "custom-gate",
		Description: "Custom test policy",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package custom.gate

import rego.v1

deny contains violation if {
	input.hub_id == "forbidden"
	violation := {
		"message": "Hub is forbidden",
		"severity": "error",
		"hub": input.hub_id,
	}
}`,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	err = eng.ReplacePolicies(context.Background(), []Policy{custom})
	if err != nil {
		t.Fatalf("Failed to replace policies: %v", err)
	}

	if len(eng.ListPolicies()) != builtinCount+1 {
		t.Errorf("Expected %d policies, got %d", builtinCount+1, len(eng.ListPolicies()))
	}

	input := &Input{
		HubID:             "forbidden",
		Interface:         "DemoInterface",
		UnsatisfiedInputs: []string{},
	}

	result, err := eng.EvaluateInterface(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	if result.Allowed {
		t.Error("Expected custom policy to deny the forbidden hub")
	}
}

func TestListPolicies(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	policies := eng.ListPolicies()

	if len(policies) == 0 {
		t.Fatal("No policies returned")
	}

	// Check that all policies have required fields
	for _, p := range policies {
		if p.Name == "" {
			t.Error("Policy has empty name")
		}
		if p.Rego == "" {
			t.Error("Policy has empty Rego code")
		}
		if p.CreatedAt.IsZero() {
			t.Error("Policy has zero CreatedAt")
		}
	}
}
