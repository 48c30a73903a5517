package config

import (
	"context"
	"testing"
)

func TestSchemaRegistry_RegisterAndGet(t *testing.T) {
	sr := NewSchemaRegistry()

	customSchema := `
#CustomType: {
	field1: string
	field2: int
}
`

	err := sr.RegisterSchema("custom", customSchema)
	if err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	schema, ok := sr.GetSchema("custom")
	if !ok {
		t.Fatal("expected to find custom schema")
	}

	if schema.Err() != nil {
		t.Errorf("schema has errors: %v", schema.Err())
	}
}

func TestSchemaRegistry_BuiltInSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	builtins := []string{
		"project",
		"hub",
		"store",
		"policy",
		"telemetry",
	}

	for _, name := range builtins {
		t.Run(name, func(t *testing.T) {
			schema, ok := sr.GetSchema(name)
			if !ok {
				t.Fatalf("built-in schema %s not found", name)
			}

			if schema.Err() != nil {
				t.Errorf("built-in schema %s has errors: %v", name, schema.Err())
			}
		})
	}
}

func TestSchemaRegistry_ValidateHub(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		hub     HubConfig
		wantErr bool
	}{
		{
			name: "valid pipeline hub",
			hub: HubConfig{
				ID:            "modules",
				Kind:          "pipeline",
				InterfaceType: "ModuleInterface",
			},
			wantErr: false,
		},
		{
			name: "valid hub with no_complete",
			hub: HubConfig{
				ID:            "themes",
				Kind:          "hub",
				InterfaceType: "ThemeInterface",
				NoComplete:    true,
			},
			wantErr: false,
		},
		{
			name: "invalid hub - bad ID",
			hub: HubConfig{
				ID:            "invalid id with spaces",
				Kind:          "hub",
				InterfaceType: "ThemeInterface",
			},
			wantErr: true,
		},
		{
			name: "invalid hub - bad kind",
			hub: HubConfig{
				ID:            "modules",
				Kind:          "queue",
				InterfaceType: "ModuleInterface",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateHub(ctx, tt.hub)

			if tt.wantErr {
				if err == nil {
					t.Error("expected validation error, got none")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected validation error: %v", err)
				}
			}
		})
	}
}

func TestSchemaRegistry_ValidateProject(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		project ProjectConfig
		wantErr bool
	}{
		{
			name: "valid project",
			project: ProjectConfig{
				Name:    "test-project",
				Version: "1.0",
				Store: &StoreConfig{
					Path: "./data.db",
				},
			},
			wantErr: false,
		},
		{
			name: "invalid project - bad name",
			project: ProjectConfig{
				Name:    "invalid name!",
				Version: "1.0",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateProject(ctx, tt.project)

			if tt.wantErr {
				if err == nil {
					t.Error("expected validation error, got none")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected validation error: %v", err)
				}
			}
		})
	}
}

func TestSchemaRegistry_ValidatePolicy(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		policy  PolicyConfig
		wantErr bool
	}{
		{
			name: "valid advisory policy",
			policy: PolicyConfig{
				Enabled: true,
				Paths:   []string{"./policies"},
				Mode:    "advisory",
			},
			wantErr: false,
		},
		{
			name: "valid enforcing policy",
			policy: PolicyConfig{
				Enabled:     true,
				Mode:        "enforcing",
				OnViolation: "fail",
			},
			wantErr: false,
		},
		{
			name: "invalid policy - bad mode",
			policy: PolicyConfig{
				Enabled: true,
				Mode:    "strict",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidatePolicy(ctx, tt.policy)

			if tt.wantErr {
				if err == nil {
					t.Error("expected validation error, got none")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected validation error: %v", err)
				}
			}
		})
	}
}

func TestSchemaRegistry_ValidateTelemetry(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name      string
		telemetry TelemetryConfig
		wantErr   bool
	}{
		{
			name: "valid development block",
			telemetry: TelemetryConfig{
				Enabled:         true,
				Environment:     "development",
				TracingExporter: "stdout",
			},
			wantErr: false,
		},
		{
			name: "valid otlp block",
			telemetry: TelemetryConfig{
				Enabled:         true,
				Environment:     "production",
				MetricsListen:   ":9090",
				TracingExporter: "otlp",
				TracingEndpoint: "collector:4317",
			},
			wantErr: false,
		},
		{
			name: "invalid telemetry - bad exporter",
			telemetry: TelemetryConfig{
				Enabled:         true,
				TracingExporter: "jaeger",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ValidateTelemetry(ctx, tt.telemetry)

			if tt.wantErr {
				if err == nil {
					t.Error("expected validation error, got none")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected validation error: %v", err)
				}
			}
		})
	}
}

func TestSchemaRegistry_ListSchemas(t *testing.T) {
	sr := NewSchemaRegistry()

	schemas := sr.ListSchemas()

	if len(schemas) < 4 {
		t.Errorf("expected at least 4 schemas, got %d", len(schemas))
	}

	// Check for built-in schemas
	expectedSchemas := map[string]bool{
		"project": false,
		"hub":     false,
		"store":   false,
		"policy":  false,
	}

	for _, schema := range schemas {
		if _, exists := expectedSchemas[schema]; exists {
			expectedSchemas[schema] = true
		}
	}

	for name, found := range expectedSchemas {
		if !found {
			t.Errorf("expected built-in schema %s not found", name)
		}
	}
}

func TestSchemaRegistry_InvalidSchema(t *testing.T) {
	sr := NewSchemaRegistry()

	invalidSchema := `
this is not valid CUE syntax
`

	err := sr.RegisterSchema("invalid", invalidSchema)
	if err == nil {
		t.Error("expected error when registering invalid schema")
	}
}
