package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the ArrayForge system.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// SimulationID is the associated simulation ID, if applicable.
	SimulationID string `json:"simulation_id,omitempty"`

	// HubID is the associated hub ID, if applicable.
	HubID string `json:"hub_id,omitempty"`

	// InterfaceName is the associated interface name, if applicable.
	InterfaceName string `json:"interface_name,omitempty"`

	// VariableID is the associated variable identifier, if applicable.
	VariableID string `json:"variable_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeSimulationStarted   = "simulation.started"
	EventTypeSimulationCompleted = "simulation.completed"
	EventTypeSimulationFailed    = "simulation.failed"
	EventTypeInterfaceStarted    = "interface.started"
	EventTypeInterfaceCompleted  = "interface.completed"
	EventTypeInterfaceFailed     = "interface.failed"
	EventTypeDatastateStored     = "datastate.stored"
	EventTypeCatalogReloaded     = "catalog.reloaded"
	EventTypePolicyViolation     = "policy.violation"
	EventTypeStrategyApplied     = "strategy.applied"
	EventTypeError               = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start the event processing goroutine
	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	// Start the periodic flush goroutine
	if cfg.FlushInterval > 0 {
		ep.wg.Add(1)
		go ep.periodicFlush()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Apply global filters
	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	// Send to buffer if async, otherwise process immediately
	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			// Buffer full, drop event or log warning
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	// Synchronous publishing
	ep.deliverEvent(event)
	return nil
}

// PublishSimulationStarted publishes a simulation started event.
func (ep *EventPublisher) PublishSimulationStarted(simulationID, title string) error {
	return ep.Publish(Event{
		Type:         EventTypeSimulationStarted,
		Source:       "core",
		SimulationID: simulationID,
		Message:      fmt.Sprintf("Simulation %s started: %s", simulationID, title),
		Level:        EventLevelInfo,
		Data: map[string]interface{}{
			"title": title,
		},
	})
}

// PublishSimulationCompleted publishes a simulation completed event.
func (ep *EventPublisher) PublishSimulationCompleted(simulationID, status string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:         EventTypeSimulationCompleted,
		Source:       "core",
		SimulationID: simulationID,
		Message:      fmt.Sprintf("Simulation %s completed with status: %s", simulationID, status),
		Level:        EventLevelInfo,
		Data: map[string]interface{}{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// PublishSimulationFailed publishes a simulation failed event.
func (ep *EventPublisher) PublishSimulationFailed(simulationID, reason string) error {
	return ep.Publish(Event{
		Type:         EventTypeSimulationFailed,
		Source:       "core",
		SimulationID: simulationID,
		Message:      fmt.Sprintf("Simulation %s failed: %s", simulationID, reason),
		Level:        EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishInterfaceStarted publishes an interface started event.
func (ep *EventPublisher) PublishInterfaceStarted(simulationID, hubID, interfaceName string) error {
	return ep.Publish(Event{
		Type:          EventTypeInterfaceStarted,
		Source:        "core",
		SimulationID:  simulationID,
		HubID:         hubID,
		InterfaceName: interfaceName,
		Message:       fmt.Sprintf("Interface %s started on hub %s", interfaceName, hubID),
		Level:         EventLevelInfo,
	})
}

// PublishInterfaceCompleted publishes an interface completed event.
func (ep *EventPublisher) PublishInterfaceCompleted(simulationID, hubID, interfaceName string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:          EventTypeInterfaceCompleted,
		Source:        "core",
		SimulationID:  simulationID,
		HubID:         hubID,
		InterfaceName: interfaceName,
		Message:       fmt.Sprintf("Interface %s completed on hub %s", interfaceName, hubID),
		Level:         EventLevelInfo,
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
		},
	})
}

// PublishInterfaceFailed publishes an interface failed event.
func (ep *EventPublisher) PublishInterfaceFailed(simulationID, hubID, interfaceName, reason string) error {
	return ep.Publish(Event{
		Type:          EventTypeInterfaceFailed,
		Source:        "core",
		SimulationID:  simulationID,
		HubID:         hubID,
		InterfaceName: interfaceName,
		Message:       fmt.Sprintf("Interface %s failed on hub %s: %s", interfaceName, hubID, reason),
		Level:         EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishDatastateStored publishes a datastate stored event.
func (ep *EventPublisher) PublishDatastateStored(simulationID, level string, count int) error {
	return ep.Publish(Event{
		Type:         EventTypeDatastateStored,
		Source:       "core",
		SimulationID: simulationID,
		Message:      fmt.Sprintf("Datastate stored at level %q with %d variables", level, count),
		Level:        EventLevelInfo,
		Data: map[string]interface{}{
			"level": level,
			"count": count,
		},
	})
}

// PublishCatalogReloaded publishes a catalog reload event.
func (ep *EventPublisher) PublishCatalogReloaded(variables int) error {
	return ep.Publish(Event{
		Type:    EventTypeCatalogReloaded,
		Source:  "catalog",
		Message: fmt.Sprintf("Data catalog reloaded with %d variables", variables),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"variables": variables,
		},
	})
}

// PublishPolicyViolation publishes a policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(hubID, policyName, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypePolicyViolation,
		Source:  "policy_engine",
		HubID:   hubID,
		Message: fmt.Sprintf("Policy violation on hub %s: %s - %s", hubID, policyName, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"policy": policyName,
			"reason": reason,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			// Flush batch if it reaches max size
			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Flush remaining events before shutting down
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// periodicFlush flushes events periodically.
func (ep *EventPublisher) periodicFlush() {
	defer ep.wg.Done()

	ticker := time.NewTicker(ep.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Trigger flush by draining buffer
			// This is handled by the processEvents goroutine
		case <-ep.ctx.Done():
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		// Apply subscriber-specific filter
		if entry.filter != nil && !entry.filter(event) {
			continue
		}

		// Call subscriber in a goroutine to avoid blocking
		go entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	// Signal shutdown
	ep.cancel()

	// Wait for processing to complete with timeout
	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterBySimulationID creates a filter that only allows events for a specific simulation.
func FilterBySimulationID(simulationID string) EventFilter {
	return func(event Event) bool {
		return event.SimulationID == simulationID
	}
}

// FilterByHubID creates a filter that only allows events for a specific hub.
func FilterByHubID(hubID string) EventFilter {
	return func(event Event) bool {
		return event.HubID == hubID
	}
}
