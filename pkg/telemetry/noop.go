package telemetry

// NoopPublisher drops every event. Used when no status output is attached.
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (n *NoopPublisher) Publish(event TelemetryEvent) {}

// MultiPublisher fans an event out to several publishers in order.
type MultiPublisher []TelemetryPublisher

func (m MultiPublisher) Publish(event TelemetryEvent) {
	for _, p := range m {
		if p != nil {
			p.Publish(event)
		}
	}
}
