package engine

import (
	"sync"
	"time"
)

// MetricsEntry is a single generation-call log entry.
type MetricsEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Agent      Stage     `json:"agent"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model,omitempty"`
	Method     GenMethod `json:"method"`
	DurationMS int64     `json:"duration_ms"`
}

// StageUsage aggregates generation activity for a single agent.
type StageUsage struct {
	Calls      int   `json:"calls"`
	Fallbacks  int   `json:"fallbacks"`
	DurationMS int64 `json:"duration_ms"`
}

// MetricsState holds aggregate metrics for one session.
type MetricsState struct {
	Runs      int                   `json:"runs"`
	Fallbacks int                   `json:"fallbacks"`
	ByAgent   map[string]StageUsage `json:"by_agent"`
}

// MetricRecorder is the interface the MetricsCollector uses to persist entries.
type MetricRecorder interface {
	RecordMetric(sessionID string, entry MetricsEntry) error
}

// MetricsCollector aggregates per-agent generation metrics and persists
// individual entries through the store.
type MetricsCollector struct {
	mu        sync.Mutex
	store     MetricRecorder
	sessionID string
	state     MetricsState
	bus       *EventBus
}

// NewMetricsCollector creates a collector backed by a store.
func NewMetricsCollector(st MetricRecorder, sessionID string, bus *EventBus) *MetricsCollector {
	return &MetricsCollector{
		store:     st,
		sessionID: sessionID,
		state:     MetricsState{ByAgent: make(map[string]StageUsage)},
		bus:       bus,
	}
}

// Record logs a single agent invocation.
func (mc *MetricsCollector) Record(entry MetricsEntry) {
	mc.mu.Lock()

	usage := mc.state.ByAgent[string(entry.Agent)]
	usage.Calls++
	usage.DurationMS += entry.DurationMS
	if entry.Method == MethodTemplate {
		usage.Fallbacks++
		mc.state.Fallbacks++
	}
	mc.state.ByAgent[string(entry.Agent)] = usage
	mc.mu.Unlock()

	if mc.store != nil {
		mc.store.RecordMetric(mc.sessionID, entry)
	}
	if mc.bus != nil {
		mc.bus.Publish(Event{
			Type:      EventMetricsUpdated,
			SessionID: mc.sessionID,
			Data:      entry,
		})
	}
}

// RecordRun counts one completed pipeline run.
func (mc *MetricsCollector) RecordRun() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.state.Runs++
}

// Snapshot returns a copy of the aggregate state.
func (mc *MetricsCollector) Snapshot() MetricsState {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	cp := mc.state
	cp.ByAgent = make(map[string]StageUsage, len(mc.state.ByAgent))
	for k, v := range mc.state.ByAgent {
		cp.ByAgent[k] = v
	}
	return cp
}
