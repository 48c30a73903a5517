package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCUEParser_ParseInline(t *testing.T) {
	parser := NewCUEParser()
	ctx := context.Background()

	tests := []struct {
		name      string
		content   string
		wantErr   bool
		errCount  int
		checkFunc func(*testing.T, *ParsedConfig)
	}{
		{
			name: "valid simple config",
			content: `
project: {
	name: "test"
	version: "1.0"
}

hubs: {
	modules: {
		id: "modules"
		kind: "pipeline"
		interface_type: "ModuleInterface"
	}
}
`,
			wantErr: false,
			checkFunc: func(t *testing.T, pc *ParsedConfig) {
				if pc.Project.Name != "test" {
					t.Errorf("expected project name 'test', got %s", pc.Project.Name)
				}
				if len(pc.Project.Hubs) != 1 {
					t.Errorf("expected 1 hub, got %d", len(pc.Project.Hubs))
				}
				if len(pc.Project.Hubs) > 0 && pc.Project.Hubs[0].Kind != "pipeline" {
					t.Errorf("expected hub kind 'pipeline', got %s", pc.Project.Hubs[0].Kind)
				}
			},
		},
		{
			name: "invalid CUE syntax",
			content: `
project: {
	name: "test"
	invalid syntax here
}
`,
			wantErr:  true,
			errCount: 1,
		},
		{
			name: "missing required field",
			content: `
hubs: {
	modules: {
		kind: "pipeline"
	}
}
`,
			wantErr:  true,
			errCount: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc, err := parser.ParseInline(ctx, tt.content)

			if tt.wantErr {
				if err == nil && len(pc.Errors) == 0 {
					t.Errorf("expected error, got none")
				}
				if tt.errCount > 0 && len(pc.Errors) != tt.errCount {
					t.Errorf("expected %d errors, got %d", tt.errCount, len(pc.Errors))
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if len(pc.Errors) > 0 {
					t.Errorf("unexpected validation errors: %v", pc.Errors)
				}
				if tt.checkFunc != nil {
					tt.checkFunc(t, pc)
				}
			}
		})
	}
}

func TestCUEParser_ParseFile(t *testing.T) {
	parser := NewCUEParser()
	ctx := context.Background()

	// Create temporary test file
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.cue")

	content := `
project: {
	name: "filetest"
	title: "File Test Project"
	version: "1.0"
	levels: ["system input", "hydrodynamics"]
}

hubs: {
	modules: {
		id: "modules"
		kind: "pipeline"
		interface_type: "ModuleInterface"
	}
	themes: {
		id: "themes"
		kind: "hub"
		interface_type: "ThemeInterface"
		no_complete: true
	}
}
`

	if err := os.WriteFile(testFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	pc, err := parser.Parse(ctx, []string{testFile})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pc.Errors) > 0 {
		t.Fatalf("unexpected validation errors: %v", pc.Errors)
	}

	if pc.Project.Name != "filetest" {
		t.Errorf("expected project name 'filetest', got %s", pc.Project.Name)
	}

	if len(pc.Project.Levels) != 2 {
		t.Errorf("expected 2 levels, got %d", len(pc.Project.Levels))
	}

	if len(pc.Project.Hubs) != 2 {
		t.Fatalf("expected 2 hubs, got %d", len(pc.Project.Hubs))
	}

	themes, ok := pc.Project.HubByID("themes")
	if !ok {
		t.Fatal("themes hub not found")
	}
	if !themes.NoComplete {
		t.Error("expected themes hub to have no_complete set")
	}
	if themes.InterfaceType != "ThemeInterface" {
		t.Errorf("expected interface type 'ThemeInterface', got %s", themes.InterfaceType)
	}
}

func TestCUEParser_Evaluate(t *testing.T) {
	parser := NewCUEParser()
	ctx := context.Background()

	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "project.cue")

	content := `
project: {
	name: "integration"
	version: "1.0"
	catalog_dirs: ["./catalog"]
	store: {
		path: "./integration.db"
	}
}

hubs: {
	modules: {
		id: "modules"
		kind: "pipeline"
		interface_type: "ModuleInterface"
	}
}
`

	if err := os.WriteFile(testFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	cfg, err := parser.Evaluate(ctx, []string{testFile})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}

	if len(cfg.Hubs) != 1 {
		t.Errorf("expected 1 hub, got %d", len(cfg.Hubs))
	}

	if cfg.StorePath("fallback.db") != "./integration.db" {
		t.Errorf("expected configured store path, got %s", cfg.StorePath("fallback.db"))
	}
}

func TestCUEParser_Validate(t *testing.T) {
	parser := NewCUEParser()
	ctx := context.Background()

	valid := &ProjectConfig{
		Name: "valid",
		Hubs: []HubConfig{
			{ID: "modules", Kind: "pipeline", InterfaceType: "ModuleInterface"},
			{ID: "themes", Kind: "hub", InterfaceType: "ThemeInterface"},
		},
	}
	if err := parser.Validate(ctx, valid); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}

	badKind := &ProjectConfig{
		Name: "bad",
		Hubs: []HubConfig{
			{ID: "modules", Kind: "queue", InterfaceType: "ModuleInterface"},
		},
	}
	if err := parser.Validate(ctx, badKind); err == nil {
		t.Error("expected validation error for unknown hub kind")
	}

	duplicate := &ProjectConfig{
		Name: "dupes",
		Hubs: []HubConfig{
			{ID: "modules", Kind: "pipeline", InterfaceType: "ModuleInterface"},
			{ID: "modules", Kind: "hub", InterfaceType: "ThemeInterface"},
		},
	}
	if err := parser.Validate(ctx, duplicate); err == nil {
		t.Error("expected validation error for duplicate hub ids")
	}
}

func TestCUEParser_HubList(t *testing.T) {
	parser := NewCUEParser()
	ctx := context.Background()

	content := `
project: {name: "listform", version: "1.0"}

hubs: [
	{
		id: "modules"
		kind: "pipeline"
		interface_type: "ModuleInterface"
	},
	{
		id: "themes"
		kind: "hub"
		interface_type: "ThemeInterface"
	},
]
`

	pc, err := parser.ParseInline(ctx, content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pc.Errors) > 0 {
		t.Fatalf("unexpected validation errors: %v", pc.Errors)
	}

	if len(pc.Project.Hubs) != 2 {
		t.Fatalf("expected 2 hubs, got %d", len(pc.Project.Hubs))
	}

	// List form preserves declaration order
	if pc.Project.Hubs[0].ID != "modules" || pc.Project.Hubs[1].ID != "themes" {
		t.Errorf("hub order not preserved: %v", pc.Project.Hubs)
	}
}

func TestCUEParser_PolicyBlock(t *testing.T) {
	parser := NewCUEParser()
	ctx := context.Background()

	content := `
project: {
	name: "policies"
	policy: {
		enabled: true
		paths: ["./policies"]
		mode: "enforcing"
		on_violation: "fail"
	}
}
`

	pc, err := parser.ParseInline(ctx, content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pc.Errors) > 0 {
		t.Fatalf("unexpected validation errors: %v", pc.Errors)
	}

	if pc.Project.Policy == nil {
		t.Fatal("expected policy block")
	}
	if !pc.Project.Policy.Enabled {
		t.Error("expected policy to be enabled")
	}
	if pc.Project.Policy.Mode != "enforcing" {
		t.Errorf("expected mode 'enforcing', got %s", pc.Project.Policy.Mode)
	}
	if pc.Project.Policy.OnViolation != "fail" {
		t.Errorf("expected on_violation 'fail', got %s", pc.Project.Policy.OnViolation)
	}
}

func TestCUEParser_TelemetryBlock(t *testing.T) {
	parser := NewCUEParser()
	ctx := context.Background()

	content := `
project: {
	name: "observed"
	telemetry: {
		enabled: true
		environment: "production"
		metrics_listen: ":9090"
		tracing_exporter: "otlp"
		tracing_endpoint: "collector:4317"
	}
}
`

	pc, err := parser.ParseInline(ctx, content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pc.Errors) > 0 {
		t.Fatalf("unexpected validation errors: %v", pc.Errors)
	}

	if pc.Project.Telemetry == nil {
		t.Fatal("expected telemetry block")
	}
	if !pc.Project.Telemetry.Enabled {
		t.Error("expected telemetry to be enabled")
	}
	if pc.Project.Telemetry.MetricsListen != ":9090" {
		t.Errorf("expected metrics_listen ':9090', got %s", pc.Project.Telemetry.MetricsListen)
	}
	if pc.Project.Telemetry.TracingExporter != "otlp" {
		t.Errorf("expected tracing_exporter 'otlp', got %s", pc.Project.Telemetry.TracingExporter)
	}
	if pc.Project.Telemetry.TracingEndpoint != "collector:4317" {
		t.Errorf("expected tracing_endpoint 'collector:4317', got %s", pc.Project.Telemetry.TracingEndpoint)
	}
}
