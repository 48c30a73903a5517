package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing, metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Initialize logger
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	// Initialize tracer
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	// Initialize metrics
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	// Initialize event publisher
	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	// Shutdown in reverse order of initialization
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}

	if err := t.Tracer.Shutdown(ctx); err != nil {
		return err
	}

	// Metrics server is not explicitly shut down here as it may need to continue
	// serving metrics until the very end of the application lifecycle

	return nil
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// Context Helpers for common instrumentation patterns

// InstrumentedContext creates a context with telemetry, logger fields, and a trace span.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	// Start trace span
	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	// Create logger with operation field
	logger := tel.Logger.WithField("operation", operation)

	// Add trace context to logger if available
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    spanCtx,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// WithSimulationContext creates a context enriched with simulation-specific telemetry.
func WithSimulationContext(ctx context.Context, simulationID, title, strategy string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	// Start simulation span
	spanCtx, span := tel.Tracer.StartSimulationSpan(ctx, simulationID)

	// Create simulation-specific logger
	logger := tel.Logger.WithSimulationID(simulationID).WithField("title", title)
	spanCtx = logger.WithContext(spanCtx)

	// Record simulation started metric
	tel.Metrics.RecordSimulationStarted(strategy)

	// Publish simulation started event
	_ = tel.Events.PublishSimulationStarted(simulationID, title)

	// Store the span and timer in context for later retrieval
	spanCtx = context.WithValue(spanCtx, simulationSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, simulationTimerKey{}, NewTimer())

	return spanCtx
}

// simulationSpanKey is the context key for simulation spans.
type simulationSpanKey struct{}

// simulationTimerKey is the context key for simulation timers.
type simulationTimerKey struct{}

// EndSimulationContext completes the simulation context, recording metrics and events.
func EndSimulationContext(ctx context.Context, simulationID, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	// Get the simulation span from context
	if span, ok := ctx.Value(simulationSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	// Get the timer from context
	var duration time.Duration
	if timer, ok := ctx.Value(simulationTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	// Record metrics
	tel.Metrics.RecordSimulationCompleted(status, duration)

	// Publish events
	if err != nil {
		_ = tel.Events.PublishSimulationFailed(simulationID, err.Error())
	} else {
		_ = tel.Events.PublishSimulationCompleted(simulationID, status, duration)
	}
}

// WithInterfaceContext creates a context enriched with interface-specific telemetry.
func WithInterfaceContext(ctx context.Context, simulationID, hubID, interfaceName, className string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	// Start interface span
	spanCtx, span := tel.Tracer.StartInterfaceSpan(ctx, hubID, interfaceName)

	// Create interface-specific logger
	logger := tel.Logger.
		WithSimulationID(simulationID).
		WithHub(hubID).
		WithInterface(interfaceName, className)
	spanCtx = logger.WithContext(spanCtx)

	// Publish interface started event
	_ = tel.Events.PublishInterfaceStarted(simulationID, hubID, interfaceName)

	// Store the span and timer in context
	spanCtx = context.WithValue(spanCtx, interfaceSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, interfaceTimerKey{}, NewTimer())

	return spanCtx
}

// interfaceSpanKey is the context key for interface spans.
type interfaceSpanKey struct{}

// interfaceTimerKey is the context key for interface timers.
type interfaceTimerKey struct{}

// EndInterfaceContext completes the interface context, recording metrics and events.
func EndInterfaceContext(ctx context.Context, simulationID, hubID, interfaceName, interfaceType, status string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	// Get the span from context
	if span, ok := ctx.Value(interfaceSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	// Get the timer from context
	var duration time.Duration
	if timer, ok := ctx.Value(interfaceTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	// Record metrics
	tel.Metrics.RecordInterfaceExecution(hubID, status, duration, interfaceType)
	if err != nil {
		tel.Metrics.RecordInterfaceError(hubID, interfaceName)
	}

	// Publish events
	if err != nil {
		_ = tel.Events.PublishInterfaceFailed(simulationID, hubID, interfaceName, err.Error())
	} else {
		_ = tel.Events.PublishInterfaceCompleted(simulationID, hubID, interfaceName, duration)
	}
}

// WithStrategyContext creates a context enriched with strategy-specific telemetry.
func WithStrategyContext(ctx context.Context, strategyName string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	// Create strategy-specific logger
	logger := tel.Logger.WithField("strategy", strategyName)
	return logger.WithContext(ctx)
}

// RecordStrategyOperation records a strategy operation with metrics and tracing.
func RecordStrategyOperation(ctx context.Context, strategyName string, fn func() error) error {
	tel := FromTelemetryContext(ctx)

	// Start span
	var span trace.Span
	if tel != nil {
		ctx, span = tel.Tracer.StartStrategySpan(ctx, strategyName)
		defer span.End()
	}

	// Execute operation
	err := fn()

	// Record metrics
	if tel != nil {
		if err != nil {
			tel.Metrics.RecordStrategyRun(strategyName, "failed")
			RecordError(span, err)
		} else {
			tel.Metrics.RecordStrategyRun(strategyName, "succeeded")
			RecordSuccess(span)
		}
	}

	return err
}
