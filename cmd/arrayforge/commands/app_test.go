package commands

import (
	"context"
	"testing"

	"github.com/arrayforge/arrayforge/pkg/config"
	"github.com/arrayforge/arrayforge/pkg/telemetry"
)

func TestBuildTelemetryDisabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.ProjectConfig
	}{
		{
			name: "no telemetry block",
			cfg:  &config.ProjectConfig{Name: "plain"},
		},
		{
			name: "disabled block",
			cfg: &config.ProjectConfig{
				Name:      "quiet",
				Telemetry: &config.TelemetryConfig{Enabled: false},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tel, err := buildTelemetry(tt.cfg)
			if err != nil {
				t.Fatalf("buildTelemetry: %v", err)
			}
			if tel != nil {
				t.Error("expected no telemetry stack")
			}
		})
	}
}

func TestBuildTelemetryEnabled(t *testing.T) {
	cfg := &config.ProjectConfig{
		Name: "observed",
		Telemetry: &config.TelemetryConfig{
			Enabled:         true,
			TracingExporter: "none",
		},
	}

	tel, err := buildTelemetry(cfg)
	if err != nil {
		t.Fatalf("buildTelemetry: %v", err)
	}
	if tel == nil {
		t.Fatal("expected a telemetry stack")
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			t.Errorf("shutting down telemetry: %v", err)
		}
	}()

	if tel.Config.Tracing.Enabled {
		t.Error("tracing enabled despite exporter 'none'")
	}

	// No listen address configured, so the metrics endpoint stays off.
	if tel.Config.Metrics.Enabled {
		t.Error("metrics enabled without a listen address")
	}

	ctx := tel.WithContext(context.Background())
	if telemetry.FromTelemetryContext(ctx) != tel {
		t.Error("telemetry not retrievable from the command context")
	}
}

func TestBuildTelemetryProductionProfile(t *testing.T) {
	cfg := &config.ProjectConfig{
		Name: "observed",
		Telemetry: &config.TelemetryConfig{
			Enabled:         true,
			Environment:     "production",
			TracingExporter: "none",
		},
	}

	tel, err := buildTelemetry(cfg)
	if err != nil {
		t.Fatalf("buildTelemetry: %v", err)
	}
	defer func() { _ = tel.Shutdown(context.Background()) }()

	if tel.Config.Environment != "production" {
		t.Errorf("environment = %q, want production", tel.Config.Environment)
	}
}
