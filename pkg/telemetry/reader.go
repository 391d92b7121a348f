package telemetry

import (
	"gateway-console/pkg/api"
	"gateway-console/pkg/lqi"
)

type Snapshot struct {
	// Message stream
	MessagesReceived  uint64
	MessagesDropped   uint64
	VersionMismatches uint64
	MessagesByKind    map[string]uint64
	DropsByReason     map[DropReason]uint64
	MessagesPerSecond float64
	LastSeq           uint64
	LastVersion       int

	// Connection
	Connected    bool
	RetryAttempt int
	Reconnects   uint64

	// Gateway state
	DeviceCount     int
	Devices         []api.Device
	PanID           uint16
	Channel         int
	CoordinatorAddr uint16
	Health          api.Health
	HasHealth       bool
	LinkQuality     lqi.View

	// Jobs
	ActiveJobs  []JobStateChanged
	RecentJobs  []JobStateChanged
	JobsByState map[string]uint64

	// System
	UptimeSeconds      float64
	ChannelUtilization float64

	// Errors
	ErrorsTotal      uint64
	ErrorsByContext  map[string]uint64
	ErrorsBySeverity map[ErrorSeverity]uint64
	RecentErrors     []string
}

type TelemetryReader interface {
	Snapshot() Snapshot
}
