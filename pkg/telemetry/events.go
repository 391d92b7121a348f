package telemetry

import (
	"time"

	"gateway-console/pkg/api"
	"gateway-console/pkg/lqi"
)

type TelemetryEvent interface {
	Timestamp() time.Time // When the event occurred
	EventType() string    // For categorization/filtering
}

type ConnectionStatusChanged struct {
	timestamp time.Time
	URL       string
	Connected bool
	Attempt   int // Consecutive failed attempts, 0 when connected
}

func (e ConnectionStatusChanged) Timestamp() time.Time { return e.timestamp }
func (e ConnectionStatusChanged) EventType() string    { return "connection_status_changed" }

func NewConnectionStatusChanged(url string, connected bool, attempt int) ConnectionStatusChanged {
	return ConnectionStatusChanged{
		timestamp: time.Now(),
		URL:       url,
		Connected: connected,
		Attempt:   attempt,
	}
}

// MessageReceived is published for every push message that passed sequence
// gating and was dispatched.
type MessageReceived struct {
	timestamp time.Time
	Kind      string
	Seq       uint64 // 0 when the message carried no sequence number
}

func (e MessageReceived) Timestamp() time.Time { return e.timestamp }
func (e MessageReceived) EventType() string    { return "message_received" }

func NewMessageReceived(kind string, seq uint64) MessageReceived {
	return MessageReceived{
		timestamp: time.Now(),
		Kind:      kind,
		Seq:       seq,
	}
}

type DropReason string

const (
	DropMalformed DropReason = "malformed"
	DropDuplicate DropReason = "duplicate"
	DropUnknown   DropReason = "unknown_type"
)

type MessageDropped struct {
	timestamp time.Time
	Reason    DropReason
	Seq       uint64
}

func (e MessageDropped) Timestamp() time.Time { return e.timestamp }
func (e MessageDropped) EventType() string    { return "message_dropped" }

func NewMessageDropped(reason DropReason, seq uint64) MessageDropped {
	return MessageDropped{
		timestamp: time.Now(),
		Reason:    reason,
		Seq:       seq,
	}
}

type ProtocolVersionMismatch struct {
	timestamp time.Time
	Expected  int
	Got       int
}

func (e ProtocolVersionMismatch) Timestamp() time.Time { return e.timestamp }
func (e ProtocolVersionMismatch) EventType() string    { return "protocol_version_mismatch" }

func NewProtocolVersionMismatch(expected, got int) ProtocolVersionMismatch {
	return ProtocolVersionMismatch{
		timestamp: time.Now(),
		Expected:  expected,
		Got:       got,
	}
}

type DevicesUpdated struct {
	timestamp time.Time
	Devices   []api.Device
}

func (e DevicesUpdated) Timestamp() time.Time { return e.timestamp }
func (e DevicesUpdated) EventType() string    { return "devices_updated" }

func NewDevicesUpdated(devices []api.Device) DevicesUpdated {
	return DevicesUpdated{
		timestamp: time.Now(),
		Devices:   append([]api.Device(nil), devices...),
	}
}

// GatewayInfoUpdated carries the coordinator summary from /status or a
// legacy flat push. Nil fields were not part of the update.
type GatewayInfoUpdated struct {
	timestamp time.Time
	PanID     *uint16
	Channel   *int
	ShortAddr *uint16
}

func (e GatewayInfoUpdated) Timestamp() time.Time { return e.timestamp }
func (e GatewayInfoUpdated) EventType() string    { return "gateway_info_updated" }

func NewGatewayInfoUpdated(panID *uint16, channel *int, shortAddr *uint16) GatewayInfoUpdated {
	return GatewayInfoUpdated{
		timestamp: time.Now(),
		PanID:     panID,
		Channel:   channel,
		ShortAddr: shortAddr,
	}
}

type HealthUpdated struct {
	timestamp time.Time
	Health    api.Health
}

func (e HealthUpdated) Timestamp() time.Time { return e.timestamp }
func (e HealthUpdated) EventType() string    { return "health_updated" }

func NewHealthUpdated(h api.Health) HealthUpdated {
	return HealthUpdated{
		timestamp: time.Now(),
		Health:    h,
	}
}

// LinkQualityUpdated is published on every ingest and on every age tick.
type LinkQualityUpdated struct {
	timestamp time.Time
	View      lqi.View
}

func (e LinkQualityUpdated) Timestamp() time.Time { return e.timestamp }
func (e LinkQualityUpdated) EventType() string    { return "link_quality_updated" }

func NewLinkQualityUpdated(v lqi.View) LinkQualityUpdated {
	return LinkQualityUpdated{
		timestamp: time.Now(),
		View:      v,
	}
}

type JobStateChanged struct {
	timestamp time.Time
	JobID     int64
	Type      string
	Label     string
	State     string
	Reason    string // Set only for failed
	RequestID string
}

func (e JobStateChanged) Timestamp() time.Time { return e.timestamp }
func (e JobStateChanged) EventType() string    { return "job_state_changed" }

func NewJobStateChanged(jobID int64, jobType, label, state, reason, requestID string) JobStateChanged {
	return JobStateChanged{
		timestamp: time.Now(),
		JobID:     jobID,
		Type:      jobType,
		Label:     label,
		State:     state,
		Reason:    reason,
		RequestID: requestID,
	}
}

type ClientError struct {
	timestamp time.Time
	Err       error
	Context   string // Additional context (e.g., "dial", "reconcile", "auto_refresh")
	Severity  ErrorSeverity
}

func (e ClientError) Timestamp() time.Time { return e.timestamp }
func (e ClientError) EventType() string    { return "client_error" }

func NewClientError(err error, context string, severity ErrorSeverity) ClientError {
	return ClientError{
		timestamp: time.Now(),
		Err:       err,
		Context:   context,
		Severity:  severity,
	}
}

type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
	ErrorSeverityCritical
)

func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	case ErrorSeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

type TelemetryPublisher interface {
	// Publish sends a telemetry event to the aggregator.
	// This is a non-blocking, fire-and-forget call.
	Publish(event TelemetryEvent)
}
