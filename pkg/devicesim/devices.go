package devicesim

import (
	"net/http"
	"time"

	"gateway-console/pkg/api"
)

const permitJoinWindow = 60 * time.Second

// PermitJoinOpen reports whether the network is accepting new devices.
func (s *Simulator) PermitJoinOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().Before(s.permitJoinUntil)
}

// Commands returns the on/off commands received so far.
func (s *Simulator) Commands() []api.ControlRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.ControlRequest(nil), s.commands...)
}

// SavedWiFi returns the last stored station credentials, if any.
func (s *Simulator) SavedWiFi() (api.WiFiCredentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wifi == nil {
		return api.WiFiCredentials{}, false
	}
	return *s.wifi, true
}

func (s *Simulator) handlePermitJoin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.permitJoinUntil = time.Now().Add(permitJoinWindow)
	s.mu.Unlock()
	s.logger.Printf("network opened for %s", permitJoinWindow)
	writeOK(w, api.ActionResponse{Message: "Network opened for 60 seconds"})
}

func (s *Simulator) handleControl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Addr *int `json:"addr"`
		Ep   *int `json:"ep"`
		Cmd  *int `json:"cmd"`
	}
	if err := jsonAPI.NewDecoder(r.Body).Decode(&req); err != nil || req.Addr == nil || req.Ep == nil || req.Cmd == nil {
		writeError(w, http.StatusBadRequest, "invalid_arg", "Missing parameters")
		return
	}
	if !validShortAddr(*req.Addr) || *req.Ep <= 0 || *req.Ep > api.MaxEndpoint || (*req.Cmd != 0 && *req.Cmd != 1) {
		writeError(w, http.StatusBadRequest, "invalid_arg", "Missing parameters")
		return
	}

	cmd := api.ControlRequest{Addr: uint16(*req.Addr), Endpoint: uint8(*req.Ep), Command: uint8(*req.Cmd)}
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.mu.Unlock()
	s.logger.Printf("control addr=0x%04x ep=%d cmd=%d", cmd.Addr, cmd.Endpoint, cmd.Command)
	writeOK(w, api.ActionResponse{Message: "Command sent"})
}

func (s *Simulator) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShortAddr *int `json:"short_addr"`
	}
	if err := jsonAPI.NewDecoder(r.Body).Decode(&req); err != nil || req.ShortAddr == nil || !validShortAddr(*req.ShortAddr) {
		writeError(w, http.StatusBadRequest, "invalid_arg", "Invalid JSON")
		return
	}

	addr := uint16(*req.ShortAddr)
	s.mu.Lock()
	idx := s.deviceIndexLocked(addr)
	if idx >= 0 {
		s.status.Devices = append(s.status.Devices[:idx:idx], s.status.Devices[idx+1:]...)
	}
	s.mu.Unlock()
	if idx < 0 {
		writeError(w, http.StatusInternalServerError, "internal_error", "Delete failed")
		return
	}
	writeOK(w, api.ActionResponse{Message: "Device deleted"})
}

func (s *Simulator) handleRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShortAddr *int    `json:"short_addr"`
		Name      *string `json:"name"`
	}
	if err := jsonAPI.NewDecoder(r.Body).Decode(&req); err != nil || req.ShortAddr == nil || req.Name == nil ||
		!validShortAddr(*req.ShortAddr) || api.ValidateDeviceName(*req.Name) != nil {
		writeError(w, http.StatusBadRequest, "invalid_arg", "Invalid JSON")
		return
	}

	addr := uint16(*req.ShortAddr)
	s.mu.Lock()
	idx := s.deviceIndexLocked(addr)
	if idx >= 0 {
		devices := append([]api.Device(nil), s.status.Devices...)
		devices[idx].Name = *req.Name
		s.status.Devices = devices
	}
	s.mu.Unlock()
	if idx < 0 {
		writeError(w, http.StatusInternalServerError, "internal_error", "Rename failed")
		return
	}
	writeOK(w, api.ActionResponse{Message: "Device renamed"})
}

func (s *Simulator) handleSaveWiFi(w http.ResponseWriter, r *http.Request) {
	var creds api.WiFiCredentials
	if err := jsonAPI.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_arg", "Invalid JSON")
		return
	}
	if err := creds.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_arg", "Invalid SSID or password")
		return
	}

	s.mu.Lock()
	s.wifi = &creds
	s.mu.Unlock()
	s.logger.Printf("wifi credentials saved for %q", creds.SSID)
	writeOK(w, api.ActionResponse{Message: "Saved. Restarting..."})
}

func (s *Simulator) deviceIndexLocked(addr uint16) int {
	for i, d := range s.status.Devices {
		if d.ShortAddr == addr {
			return i
		}
	}
	return -1
}

func validShortAddr(v int) bool {
	return v > 0 && v <= 0xFFFF
}
