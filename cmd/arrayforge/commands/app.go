package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/arrayforge/arrayforge/pkg/catalog"
	"github.com/arrayforge/arrayforge/pkg/config"
	"github.com/arrayforge/arrayforge/pkg/interfaces/demo"
	"github.com/arrayforge/arrayforge/pkg/plugins"
	"github.com/arrayforge/arrayforge/pkg/policy"
	"github.com/arrayforge/arrayforge/pkg/project"
	"github.com/arrayforge/arrayforge/pkg/stores"
	"github.com/arrayforge/arrayforge/pkg/telemetry"
)

// newLogger builds the command-scoped logger honouring --verbose.
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// loadProjectConfig evaluates and validates the CUE project config named
// by --config.
func loadProjectConfig(ctx context.Context) (*config.ProjectConfig, error) {
	parser := config.NewCUEParser()

	cfg, err := parser.Evaluate(ctx, []string{configPath})
	if err != nil {
		return nil, fmt.Errorf("evaluating config %s: %w", configPath, err)
	}

	if err := parser.Validate(ctx, cfg); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", configPath, err)
	}

	return cfg, nil
}

// buildCore assembles the engine core: the bundled demo interfaces are
// registered under their interface types, the catalog is populated from
// the built-in definitions plus any configured catalog directories, and
// the configured levels are pre-registered.
func buildCore(cfg *config.ProjectConfig, logger zerolog.Logger) (*project.Core, error) {
	core := project.NewCore(logger)

	modules := plugins.NewRegistry()
	if err := modules.RegisterManifest(demo.ModuleManifest()); err != nil {
		return nil, err
	}
	if err := modules.RegisterManifest(demo.FileManifest()); err != nil {
		return nil, err
	}
	core.Sequencer().AddInterfaceType(demo.ModuleType, modules)

	themes := plugins.NewRegistry()
	if err := themes.RegisterManifest(demo.ThemeManifest()); err != nil {
		return nil, err
	}
	core.Sequencer().AddInterfaceType(demo.ThemeType, themes)

	if err := demo.PopulateCatalog(core.Catalog()); err != nil {
		return nil, err
	}

	if len(cfg.CatalogDirs) > 0 {
		loader, err := catalog.NewLoader()
		if err != nil {
			return nil, err
		}

		if err := loader.LoadDirectories(core.Catalog(), cfg.CatalogDirs); err != nil {
			return nil, fmt.Errorf("loading catalog directories: %w", err)
		}
	}

	for _, level := range cfg.Levels {
		core.RegisterLevel(level)
	}

	return core, nil
}

// newProjectFromConfig creates a fresh project with the configured hubs
// attached to its first simulation.
func newProjectFromConfig(core *project.Core, cfg *config.ProjectConfig) (*project.Project, error) {
	title := cfg.Title
	if title == "" {
		title = cfg.Name
	}

	proj, err := core.NewProject(title)
	if err != nil {
		return nil, err
	}

	sim, err := proj.ActiveSimulation()
	if err != nil {
		return nil, err
	}

	for _, hub := range cfg.Hubs {
		switch hub.Kind {
		case "pipeline":
			err = core.Controller().CreateNewPipeline(sim,
				hub.InterfaceType, hub.ID, hub.NoComplete)
		default:
			err = core.Controller().CreateNewHub(sim,
				hub.InterfaceType, hub.ID, hub.NoComplete)
		}
		if err != nil {
			return nil, fmt.Errorf("creating hub %s: %w", hub.ID, err)
		}
	}

	for key, value := range cfg.Metadata {
		proj.SetMetadata(key, value)
	}

	return proj, nil
}

// buildTelemetry constructs the telemetry stack from the project
// config, returning nil when the telemetry block is absent or disabled.
// The Prometheus endpoint is served in the background when a listen
// address is configured.
func buildTelemetry(cfg *config.ProjectConfig) (*telemetry.Telemetry, error) {
	if cfg.Telemetry == nil || !cfg.Telemetry.Enabled {
		return nil, nil
	}

	tcfg := telemetry.DefaultConfig()
	if cfg.Telemetry.Environment == "production" {
		tcfg = telemetry.ProductionConfig()
	}

	tcfg.Metrics.Enabled = cfg.Telemetry.MetricsListen != ""
	if tcfg.Metrics.Enabled {
		tcfg.Metrics.ListenAddress = cfg.Telemetry.MetricsListen
	}

	switch cfg.Telemetry.TracingExporter {
	case "":
		// keep the profile default
	case "none":
		tcfg.Tracing.Enabled = false
	default:
		tcfg.Tracing.Exporter = cfg.Telemetry.TracingExporter
	}

	if cfg.Telemetry.TracingEndpoint != "" {
		tcfg.Tracing.Endpoint = cfg.Telemetry.TracingEndpoint
	}

	tel, err := telemetry.NewTelemetry(tcfg)
	if err != nil {
		return nil, fmt.Errorf("initialising telemetry: %w", err)
	}

	if err := tel.StartMetricsServer(); err != nil {
		return nil, err
	}

	return tel, nil
}

// buildPolicyGate loads the configured policies, returning nil when
// enforcement is disabled.
func buildPolicyGate(ctx context.Context, cfg *config.ProjectConfig,
	logger zerolog.Logger) (*policy.Engine, error) {

	if cfg.Policy == nil || !cfg.Policy.Enabled {
		return nil, nil
	}

	gate, err := policy.NewEngine(logger)
	if err != nil {
		return nil, err
	}

	if len(cfg.Policy.Paths) > 0 {
		if err := gate.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
			return nil, fmt.Errorf("loading policies: %w", err)
		}

		// Pick up edited policy files for the lifetime of the command.
		if err := gate.WatchPolicies(ctx, cfg.Policy.Paths); err != nil {
			logger.Warn().Err(err).Msg("policy hot reload unavailable")
		}
	}

	return gate, nil
}

// openStore opens the configured run store, returning nil when no store
// is configured.
func openStore(ctx context.Context, cfg *config.ProjectConfig) (*stores.SQLiteStore, error) {
	if cfg.Store == nil {
		return nil, nil
	}

	path := cfg.StorePath("arrayforge.db")
	if cfg.Store.InMemory {
		path = ":memory:"
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}

	if err := store.Init(ctx); err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}

	return store, nil
}

// printJSON writes the value as indented JSON on stdout.
func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Println(string(encoded))

	return nil
}
