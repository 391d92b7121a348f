package testutil

import (
	"sync"

	"gateway-console/pkg/telemetry"
)

// CapturingPublisher collects telemetry events for assertions in tests.
type CapturingPublisher struct {
	mu     sync.Mutex
	Events []telemetry.TelemetryEvent
}

func NewCapturingPublisher() *CapturingPublisher { return &CapturingPublisher{} }

func (c *CapturingPublisher) Publish(event telemetry.TelemetryEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Events = append(c.Events, event)
}

func (c *CapturingPublisher) Snapshot() []telemetry.TelemetryEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]telemetry.TelemetryEvent, len(c.Events))
	copy(out, c.Events)
	return out
}

// OfType returns the captured events whose EventType matches.
func (c *CapturingPublisher) OfType(eventType string) []telemetry.TelemetryEvent {
	var out []telemetry.TelemetryEvent
	for _, e := range c.Snapshot() {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// JobStates returns the states of captured JobStateChanged events in order.
func (c *CapturingPublisher) JobStates() []string {
	var out []string
	for _, e := range c.OfType("job_state_changed") {
		out = append(out, e.(telemetry.JobStateChanged).State)
	}
	return out
}
