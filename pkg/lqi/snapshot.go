package lqi

// NeighborSnapshot is one row of a link-quality push or pull.
// LQI and RSSI are nil when the device reports them as absent.
type NeighborSnapshot struct {
	Address   uint16 `json:"short_addr"`
	Name      string `json:"name,omitempty"`
	LQI       *int   `json:"lqi"`
	RSSI      *int   `json:"rssi"`
	Quality   string `json:"quality"`
	Direct    bool   `json:"direct"`
	Source    string `json:"source"`
	UpdatedMs uint64 `json:"updated_ms"`
}

// Meta describes the batch a set of snapshots belongs to. UpdatedMs is the
// device uptime counter, not wall clock.
type Meta struct {
	Source    string `json:"source"`
	UpdatedMs uint64 `json:"updated_ms"`
}
