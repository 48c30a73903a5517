// Package telemetry provides comprehensive observability instrumentation for ArrayForge.
//
// The telemetry package integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus), and event publishing into a unified system
// for monitoring and debugging ArrayForge simulations.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Metrics Collection - Prometheus metrics for operational insights
//  4. Event Publishing - Async event system for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "arrayforge"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	// Start metrics server
//	if err := tel.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context propagation:
//
//	logger := tel.Logger.NewComponentLogger("controller")
//	logger = logger.WithSimulationID("default").WithVariable("device:rated_power")
//	logger.Info("Loading interface inputs")
//	logger.WithError(err).Error("Interface execution failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into simulation flow and performance:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	// Add attributes
//	span.SetAttributes(
//	    attribute.String("variable.id", variableID),
//	    attribute.String("operation", "store"),
//	)
//
//	// Record events
//	span.AddEvent("merge.complete")
//
//	// Record errors
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (development)
//
// # Metrics
//
// Prometheus metrics track system behavior and performance:
//
//	// Record simulation execution
//	tel.Metrics.RecordSimulationStarted("basic")
//	tel.Metrics.RecordSimulationCompleted("succeeded", duration)
//
//	// Record interface execution
//	tel.Metrics.RecordInterfaceExecution("modules", "succeeded", duration, "ModuleInterface")
//
//	// Record datastate storage
//	tel.Metrics.RecordDatastateStored("system input")
//
//	// Record errors
//	tel.Metrics.RecordError("validation", "UNMET_INPUT")
//
// Metrics are exposed via HTTP at /metrics (default: :9090/metrics)
//
// # Event Publishing
//
// The event system provides async publishing with buffering and filtering:
//
//	// Publish events
//	tel.Events.PublishSimulationStarted(simulationID, title)
//	tel.Events.PublishInterfaceCompleted(simulationID, hubID, interfaceName, duration)
//	tel.Events.PublishDatastateStored(simulationID, level, count)
//
//	// Subscribe to events
//	tel.Events.Subscribe(func(event telemetry.Event) {
//	    fmt.Printf("Event: %s - %s\n", event.Type, event.Message)
//	}, telemetry.FilterByLevel("warning"))
//
// Event filters: FilterByLevel, FilterByType, FilterBySimulationID, FilterByHubID
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Instrument an operation
//	ic := telemetry.StartOperation(ctx, "datastate.merge",
//	    attribute.String("simulation.id", simulationID))
//	defer ic.End(err)
//
//	ic.Logger.Info("Merging active states")
//
//	// Simulation context
//	ctx = telemetry.WithSimulationContext(ctx, simulationID, title, strategy)
//	defer telemetry.EndSimulationContext(ctx, simulationID, status, err)
//
//	// Interface context
//	ctx = telemetry.WithInterfaceContext(ctx, simulationID, hubID, interfaceName, className)
//	defer telemetry.EndInterfaceContext(ctx, simulationID, hubID, interfaceName, interfaceType, status, err)
//
//	// Strategy operation
//	err := telemetry.RecordStrategyOperation(ctx, "sensitivity", func() error {
//	    return strategy.Execute(ctx, project)
//	})
//
// # Configuration
//
// The package provides pre-configured setups for different environments:
//
//	// Development (verbose logging, stdout traces, full sampling)
//	cfg := telemetry.DevelopmentConfig()
//
//	// Production (JSON logs, OTLP traces, 10% sampling)
//	cfg := telemetry.ProductionConfig()
//
//	// Custom configuration
//	cfg := &telemetry.Config{
//	    ServiceName: "arrayforge",
//	    ServiceVersion: "1.0.0",
//	    Environment: "staging",
//	    Logging: telemetry.LoggingConfig{
//	        Level: "info",
//	        Format: "json",
//	    },
//	    Tracing: telemetry.TracingConfig{
//	        Enabled: true,
//	        Exporter: "otlp",
//	        Endpoint: "otel-collector:4317",
//	        SamplingRate: 0.1,
//	    },
//	    Metrics: telemetry.MetricsConfig{
//	        Enabled: true,
//	        ListenAddress: ":9090",
//	    },
//	}
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// This ensures:
//  - All buffered events are published
//  - All pending traces are exported
//  - Metrics are finalized
//
// # Common Metrics
//
// Key metrics exposed:
//
//  - arrayforge_simulations_started_total{strategy}
//  - arrayforge_simulations_completed_total{status}
//  - arrayforge_simulation_duration_seconds{status}
//  - arrayforge_interfaces_executed_total{hub,status}
//  - arrayforge_interface_duration_seconds{hub,interface_type}
//  - arrayforge_interface_errors_total{hub,interface}
//  - arrayforge_pool_entries{project}
//  - arrayforge_datastates_stored_total{level}
//  - arrayforge_catalog_variables
//  - arrayforge_errors_by_class_total{class}
//  - arrayforge_errors_by_code_total{code}
//  - arrayforge_active_simulations
//
// # Best Practices
//
//  1. Always use context to propagate telemetry
//  2. Use component-specific loggers for clarity
//  3. Add meaningful attributes to spans
//  4. Record both success and failure metrics
//  5. Use appropriate log levels
//  6. Filter events to avoid overwhelming subscribers
//  7. Configure sampling for high-volume systems
//  8. Always call defer span.End() after starting a span
//  9. Shut down gracefully to avoid data loss
package telemetry
