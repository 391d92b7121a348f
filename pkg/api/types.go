package api

import (
	"encoding/json"

	"gateway-console/pkg/lqi"
)

// Device is one joined mesh node.
type Device struct {
	ShortAddr uint16 `json:"short_addr"`
	Name      string `json:"name"`
}

// Status is the GET /status payload.
type Status struct {
	PanID     uint16   `json:"pan_id"`
	Channel   int      `json:"channel"`
	ShortAddr uint16   `json:"short_addr"`
	Devices   []Device `json:"devices"`
}

// StatusUpdate is a partial coordinator summary from a flat status push. Nil
// fields were not sent.
type StatusUpdate struct {
	PanID     *uint16  `json:"pan_id"`
	Channel   *int     `json:"channel"`
	ShortAddr *uint16  `json:"short_addr"`
	Devices   []Device `json:"devices"`
}

// Update returns the summary with every field present.
func (s Status) Update() StatusUpdate {
	return StatusUpdate{PanID: &s.PanID, Channel: &s.Channel, ShortAddr: &s.ShortAddr, Devices: s.Devices}
}

// ZigbeeHealth reports the coordinator state.
type ZigbeeHealth struct {
	Started   bool   `json:"started"`
	PanID     uint16 `json:"pan_id"`
	Channel   int    `json:"channel"`
	ShortAddr uint16 `json:"short_addr"`
}

// WiFiHealth reports station / fallback AP state.
type WiFiHealth struct {
	STAConnected     bool   `json:"sta_connected"`
	FallbackAPActive bool   `json:"fallback_ap_active"`
	ActiveSSID       string `json:"active_ssid"`
	RSSI             *int   `json:"rssi"`
	LinkQuality      string `json:"link_quality"`
	IP               string `json:"ip"`
}

// NVSHealth reports the persisted storage schema.
type NVSHealth struct {
	SchemaVersion int `json:"schema_version"`
}

// SystemHealth reports runtime resources.
type SystemHealth struct {
	UptimeMs         uint64   `json:"uptime_ms"`
	HeapFree         uint32   `json:"heap_free"`
	HeapMin          uint32   `json:"heap_min"`
	HeapLargestBlock uint32   `json:"heap_largest_block"`
	TemperatureC     *float64 `json:"temperature_c"`
}

// HealthError is one entry of the device error ring.
type HealthError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
	Code    int32  `json:"code"`
}

// Health is the GET /health payload and the health_state push payload.
type Health struct {
	Zigbee *ZigbeeHealth `json:"zigbee,omitempty"`
	WiFi   *WiFiHealth   `json:"wifi,omitempty"`
	NVS    *NVSHealth    `json:"nvs,omitempty"`
	System *SystemHealth `json:"system,omitempty"`
	Errors []HealthError `json:"errors"`
}

// LQISnapshot is the GET /lqi payload and the lqi_update push payload.
type LQISnapshot struct {
	Neighbors []lqi.NeighborSnapshot `json:"neighbors"`
	Source    string                 `json:"source"`
	UpdatedMs uint64                 `json:"updated_ms"`
}

// Meta returns the batch metadata of the snapshot.
func (s LQISnapshot) Meta() lqi.Meta {
	return lqi.Meta{Source: s.Source, UpdatedMs: s.UpdatedMs}
}

// JobRequest is the POST /jobs body: the type plus flattened payload fields.
type JobRequest struct {
	Type      string
	Payload   map[string]any
	RequestID string
}

func (r JobRequest) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(r.Payload)+1)
	for k, v := range r.Payload {
		body[k] = v
	}
	body["type"] = r.Type
	return jsonAPI.Marshal(body)
}

// JobSubmitResponse is the POST /jobs payload.
type JobSubmitResponse struct {
	JobID int64  `json:"job_id"`
	Type  string `json:"type"`
	State string `json:"state"`
}

// JobStatus is the GET /jobs/{id} payload. Error and Result are kept raw:
// the device sends either a string or an object in both.
type JobStatus struct {
	JobID     int64           `json:"job_id"`
	Type      string          `json:"type"`
	State     string          `json:"state"`
	Done      bool            `json:"done"`
	CreatedMs uint64          `json:"created_ms"`
	UpdatedMs uint64          `json:"updated_ms"`
	Error     json.RawMessage `json:"error,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
}

// ScanNetwork is one access point from a scan job result.
type ScanNetwork struct {
	SSID string `json:"ssid"`
	RSSI int    `json:"rssi"`
	Auth int    `json:"auth"`
}

// ScanResult is the result payload of a scan job.
type ScanResult struct {
	Networks []ScanNetwork `json:"networks"`
}
