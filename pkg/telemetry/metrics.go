package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for ArrayForge.
type Metrics struct {
	config MetricsConfig

	// Simulation metrics
	simulationsStarted   *prometheus.CounterVec
	simulationsCompleted *prometheus.CounterVec
	simulationDuration   *prometheus.HistogramVec

	// Interface execution metrics
	interfacesExecuted *prometheus.CounterVec
	interfaceDuration  *prometheus.HistogramVec
	interfaceErrors    *prometheus.CounterVec

	// Data metrics
	poolEntries     *prometheus.GaugeVec
	datastatesStored *prometheus.CounterVec

	// Catalog metrics
	catalogVariables prometheus.Gauge
	catalogReloads   *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// Strategy metrics
	strategyRuns *prometheus.CounterVec

	// System metrics
	activeSimulations   prometheus.Gauge
	scheduledInterfaces prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Simulation metrics
		simulationsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "simulations_started_total",
				Help:      "Total number of simulations started",
			},
			[]string{"strategy"},
		),
		simulationsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "simulations_completed_total",
				Help:      "Total number of simulations completed",
			},
			[]string{"status"},
		),
		simulationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "simulation_duration_seconds",
				Help:      "Duration of simulation execution in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		// Interface execution metrics
		interfacesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interfaces_executed_total",
				Help:      "Total number of interface executions",
			},
			[]string{"hub", "status"},
		),
		interfaceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "interface_duration_seconds",
				Help:      "Duration of interface execution in seconds",
				Buckets:   buckets,
			},
			[]string{"hub", "interface_type"},
		),
		interfaceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "interface_errors_total",
				Help:      "Total number of interface execution errors",
			},
			[]string{"hub", "interface"},
		),

		// Data metrics
		poolEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_entries",
				Help:      "Current number of live data pool entries",
			},
			[]string{"project"},
		),
		datastatesStored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "datastates_stored_total",
				Help:      "Total number of datastates recorded",
			},
			[]string{"level"},
		),

		// Catalog metrics
		catalogVariables: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_variables",
				Help:      "Current number of variables in the data catalog",
			},
		),
		catalogReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_reloads_total",
				Help:      "Total number of catalog hot reloads",
			},
			[]string{"status"},
		),

		// Error metrics
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		// Strategy metrics
		strategyRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "strategy_runs_total",
				Help:      "Total number of strategy executions",
			},
			[]string{"strategy", "status"},
		),

		// System metrics
		activeSimulations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_simulations",
				Help:      "Current number of simulations held by projects",
			},
		),
		scheduledInterfaces: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "scheduled_interfaces",
				Help:      "Current number of scheduled interfaces across hubs",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.simulationsStarted,
		m.simulationsCompleted,
		m.simulationDuration,
		m.interfacesExecuted,
		m.interfaceDuration,
		m.interfaceErrors,
		m.poolEntries,
		m.datastatesStored,
		m.catalogVariables,
		m.catalogReloads,
		m.errorsByClass,
		m.errorsByCode,
		m.strategyRuns,
		m.activeSimulations,
		m.scheduledInterfaces,
	)

	return m, nil
}

// Simulation Metrics

// RecordSimulationStarted increments the counter for started simulations.
func (m *Metrics) RecordSimulationStarted(strategy string) {
	if m.simulationsStarted == nil {
		return
	}
	m.simulationsStarted.WithLabelValues(strategy).Inc()
	m.activeSimulations.Inc()
}

// RecordSimulationCompleted records a completed simulation with its status
// and duration.
func (m *Metrics) RecordSimulationCompleted(status string, duration time.Duration) {
	if m.simulationsCompleted == nil {
		return
	}
	m.simulationsCompleted.WithLabelValues(status).Inc()
	m.simulationDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeSimulations.Dec()
}

// Interface Metrics

// RecordInterfaceExecution records the execution of an interface.
func (m *Metrics) RecordInterfaceExecution(hub, status string, duration time.Duration, interfaceType string) {
	if m.interfacesExecuted == nil {
		return
	}
	m.interfacesExecuted.WithLabelValues(hub, status).Inc()
	m.interfaceDuration.WithLabelValues(hub, interfaceType).Observe(duration.Seconds())
}

// RecordInterfaceError records an interface execution error.
func (m *Metrics) RecordInterfaceError(hub, interfaceName string) {
	if m.interfaceErrors == nil {
		return
	}
	m.interfaceErrors.WithLabelValues(hub, interfaceName).Inc()
}

// Data Metrics

// SetPoolEntries sets the current count of live pool entries.
func (m *Metrics) SetPoolEntries(project string, count float64) {
	if m.poolEntries == nil {
		return
	}
	m.poolEntries.WithLabelValues(project).Set(count)
}

// RecordDatastateStored records a stored datastate.
func (m *Metrics) RecordDatastateStored(level string) {
	if m.datastatesStored == nil {
		return
	}
	if level == "" {
		level = "none"
	}
	m.datastatesStored.WithLabelValues(level).Inc()
}

// Catalog Metrics

// SetCatalogVariables sets the current catalog size.
func (m *Metrics) SetCatalogVariables(count float64) {
	if m.catalogVariables == nil {
		return
	}
	m.catalogVariables.Set(count)
}

// RecordCatalogReload records a catalog hot reload attempt.
func (m *Metrics) RecordCatalogReload(status string) {
	if m.catalogReloads == nil {
		return
	}
	m.catalogReloads.WithLabelValues(status).Inc()
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Strategy Metrics

// RecordStrategyRun records a strategy execution.
func (m *Metrics) RecordStrategyRun(strategy, status string) {
	if m.strategyRuns == nil {
		return
	}
	m.strategyRuns.WithLabelValues(strategy, status).Inc()
}

// System Metrics

// SetActiveSimulations sets the current number of active simulations.
func (m *Metrics) SetActiveSimulations(count float64) {
	if m.activeSimulations == nil {
		return
	}
	m.activeSimulations.Set(count)
}

// SetScheduledInterfaces sets the current number of scheduled interfaces.
func (m *Metrics) SetScheduledInterfaces(count float64) {
	if m.scheduledInterfaces == nil {
		return
	}
	m.scheduledInterfaces.Set(count)
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
