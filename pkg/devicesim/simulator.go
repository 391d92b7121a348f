// Package devicesim serves the gateway REST and push contract in-process for
// tests and local development.
package devicesim

import (
	"context"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/puzpuzpuz/xsync/v3"

	"gateway-console/pkg/api"
	"gateway-console/pkg/lqi"
	"gateway-console/pkg/wire"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

const writeTimeout = 2 * time.Second

// Simulator is a fake gateway. The zero value is not usable; call New.
type Simulator struct {
	logger *log.Logger
	start  time.Time

	mu        sync.Mutex
	status    api.Status
	health    api.Health
	neighbors []lqi.NeighborSnapshot
	lqiSource string
	lqiMs     uint64
	networks  []api.ScanNetwork
	failures  map[string]string
	version   int
	clients   map[*websocket.Conn]struct{}

	permitJoinUntil time.Time
	commands        []api.ControlRequest
	wifi            *api.WiFiCredentials

	jobs   *xsync.MapOf[int64, *job]
	nextID atomic.Int64
	seq    atomic.Uint64

	// PollsToComplete is how many GETs a job takes to reach a terminal state.
	PollsToComplete int
}

type job struct {
	mu        sync.Mutex
	id        int64
	typ       string
	delayMs   int
	state     string
	polls     int
	createdMs uint64
	updatedMs uint64
	errName   string
	result    any
}

// New creates a simulator with one coordinator and no neighbors.
func New(logger *log.Logger) *Simulator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Simulator{
		logger: logger,
		start:  time.Now(),
		status: api.Status{PanID: 0x1234, Channel: 15, ShortAddr: 0},
		health: api.Health{
			Zigbee: &api.ZigbeeHealth{Started: true, PanID: 0x1234, Channel: 15},
			WiFi:   &api.WiFiHealth{STAConnected: true, ActiveSSID: "gateway-lab", LinkQuality: "good", IP: "192.168.4.1"},
			NVS:    &api.NVSHealth{SchemaVersion: 1},
			System: &api.SystemHealth{HeapFree: 180000, HeapMin: 150000, HeapLargestBlock: 90000},
			Errors: []api.HealthError{},
		},
		lqiSource:       string(lqi.SourceNeighborTable),
		failures:        make(map[string]string),
		version:         wire.ProtocolVersion,
		clients:         make(map[*websocket.Conn]struct{}),
		jobs:            xsync.NewMapOf[int64, *job](),
		PollsToComplete: 2,
	}
}

// Handler returns the router for /api/v1 and /ws.
func (s *Simulator) Handler() http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix(api.DefaultBasePath).Subrouter()
	v1.HandleFunc("/status", s.handleStatus).Methods("GET")
	v1.HandleFunc("/health", s.handleHealth).Methods("GET")
	v1.HandleFunc("/lqi", s.handleLQI).Methods("GET")
	v1.HandleFunc("/jobs", s.handleSubmitJob).Methods("POST")
	v1.HandleFunc("/jobs/{id}", s.handleGetJob).Methods("GET")
	v1.HandleFunc("/permit_join", s.handlePermitJoin).Methods("POST")
	v1.HandleFunc("/control", s.handleControl).Methods("POST")
	v1.HandleFunc("/delete", s.handleDelete).Methods("POST")
	v1.HandleFunc("/rename", s.handleRename).Methods("POST")
	v1.HandleFunc("/settings/wifi", s.handleSaveWiFi).Methods("POST")
	r.HandleFunc("/ws", s.handleWS).Methods("GET")
	return r
}

// SetDevices replaces the device list and pushes devices_delta.
func (s *Simulator) SetDevices(devices []api.Device) {
	s.mu.Lock()
	s.status.Devices = append([]api.Device(nil), devices...)
	s.mu.Unlock()
	s.Broadcast("devices_delta", map[string]any{"devices": devices})
}

// SetNeighbors replaces the neighbor table, bumps its device timestamp and
// pushes lqi_update.
func (s *Simulator) SetNeighbors(source string, neighbors []lqi.NeighborSnapshot) {
	s.mu.Lock()
	s.lqiSource = source
	s.bumpLQIMsLocked()
	s.neighbors = make([]lqi.NeighborSnapshot, len(neighbors))
	for i, n := range neighbors {
		n.UpdatedMs = s.lqiMs
		if n.Source == "" {
			n.Source = source
		}
		s.neighbors[i] = n
	}
	snap := s.lqiSnapshotLocked()
	s.mu.Unlock()
	s.Broadcast("lqi_update", snap)
}

// SetScanNetworks sets what a scan job returns.
func (s *Simulator) SetScanNetworks(networks []api.ScanNetwork) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks = append([]api.ScanNetwork(nil), networks...)
}

// FailJobs makes every job of jobType fail with errName.
func (s *Simulator) FailJobs(jobType, errName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[jobType] = errName
}

// SetProtocolVersion changes the version stamped on pushed envelopes.
func (s *Simulator) SetProtocolVersion(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

// Clients reports the number of connected push clients.
func (s *Simulator) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// DropClients closes every push connection.
func (s *Simulator) DropClients() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close(websocket.StatusGoingAway, "simulated drop")
	}
}

// Broadcast pushes one envelope with the next sequence number to every client.
func (s *Simulator) Broadcast(msgType string, data any) {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	frame, err := jsonAPI.Marshal(map[string]any{
		"version": version,
		"seq":     s.seq.Add(1),
		"ts":      time.Now().Unix(),
		"type":    msgType,
		"data":    data,
	})
	if err != nil {
		s.logger.Printf("marshal %s push: %v", msgType, err)
		return
	}
	s.PushRaw(frame)
}

// PushRaw sends frame unchanged to every client.
func (s *Simulator) PushRaw(frame []byte) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := c.Write(ctx, websocket.MessageText, frame); err != nil {
			s.logger.Printf("push write failed: %v", err)
		}
		cancel()
	}
}

func (s *Simulator) handleWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Printf("ws accept: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.logger.Printf("push client connected from %s", r.RemoteAddr)

	// The gateway never reads client frames; CloseRead reports disconnects.
	ctx := c.CloseRead(r.Context())
	<-ctx.Done()

	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	_ = c.Close(websocket.StatusNormalClosure, "")
}

func (s *Simulator) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.status
	st.Devices = append([]api.Device{}, s.status.Devices...)
	s.mu.Unlock()
	writeOK(w, st)
}

func (s *Simulator) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	h := s.health
	sys := *s.health.System
	sys.UptimeMs = s.uptimeMs()
	h.System = &sys
	s.mu.Unlock()
	writeOK(w, h)
}

func (s *Simulator) handleLQI(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snap := s.lqiSnapshotLocked()
	s.mu.Unlock()
	writeOK(w, snap)
}

func (s *Simulator) lqiSnapshotLocked() api.LQISnapshot {
	return api.LQISnapshot{
		Neighbors: append([]lqi.NeighborSnapshot{}, s.neighbors...),
		Source:    s.lqiSource,
		UpdatedMs: s.lqiMs,
	}
}

// bumpLQIMsLocked moves the table timestamp forward by at least 1ms so every
// update is visible as a new batch.
func (s *Simulator) bumpLQIMsLocked() {
	s.lqiMs = max(s.uptimeMs(), s.lqiMs+1)
}

func (s *Simulator) uptimeMs() uint64 {
	return uint64(time.Since(s.start) / time.Millisecond)
}

var jobTypes = map[string]bool{
	"scan":          true,
	"factory_reset": true,
	"reboot":        true,
	"update":        true,
	"lqi_refresh":   true,
}

func (s *Simulator) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type          string `json:"type"`
		RebootDelayMs int    `json:"reboot_delay_ms"`
	}
	if err := jsonAPI.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_arg", "Invalid job payload")
		return
	}
	if !jobTypes[req.Type] {
		writeError(w, http.StatusBadRequest, "invalid_arg", "Unknown job type")
		return
	}

	now := s.uptimeMs()
	j := &job{
		id:        s.nextID.Add(1),
		typ:       req.Type,
		delayMs:   req.RebootDelayMs,
		state:     "queued",
		createdMs: now,
		updatedMs: now,
	}
	s.jobs.Store(j.id, j)
	s.logger.Printf("job %d (%s) queued, request %s", j.id, j.typ, r.Header.Get(api.RequestIDHeader))

	writeOK(w, api.JobSubmitResponse{JobID: j.id, Type: j.typ, State: j.state})
}

func (s *Simulator) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_arg", "Invalid job id")
		return
	}
	j, ok := s.jobs.Load(id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Job not found")
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	s.advance(j)

	errName := j.errName
	if errName == "" {
		errName = "ESP_OK"
	}
	writeOK(w, map[string]any{
		"job_id":     j.id,
		"type":       j.typ,
		"state":      j.state,
		"done":       j.state == "succeeded" || j.state == "failed",
		"created_ms": j.createdMs,
		"updated_ms": j.updatedMs,
		"error":      errName,
		"result":     j.result,
	})
}

// advance moves j one step per poll: queued, running, then terminal.
func (s *Simulator) advance(j *job) {
	if j.state == "succeeded" || j.state == "failed" {
		return
	}
	j.polls++
	j.updatedMs = s.uptimeMs()
	if j.polls < s.PollsToComplete {
		j.state = "running"
		return
	}

	s.mu.Lock()
	failure := s.failures[j.typ]
	s.mu.Unlock()
	if failure != "" {
		j.state = "failed"
		j.errName = failure
		j.result = map[string]any{"error": failure}
		return
	}

	j.state = "succeeded"
	j.result = s.execute(j)
}

func (s *Simulator) execute(j *job) any {
	switch j.typ {
	case "scan":
		s.mu.Lock()
		defer s.mu.Unlock()
		return map[string]any{"networks": append([]api.ScanNetwork{}, s.networks...)}
	case "reboot":
		return map[string]any{"message": "Reboot scheduled", "delay_ms": j.delayMs}
	case "factory_reset":
		return map[string]any{"message": "Factory reset completed"}
	case "update":
		return map[string]any{"message": "Update check completed"}
	case "lqi_refresh":
		return s.refreshLQI()
	}
	return nil
}

// Drift moves every neighbor's LQI by delta within 1..255, re-grades it and
// pushes the table.
func (s *Simulator) Drift(delta func(addr uint16) int) {
	s.mu.Lock()
	for i := range s.neighbors {
		n := &s.neighbors[i]
		if n.LQI == nil {
			continue
		}
		v := min(max(*n.LQI+delta(n.Address), 1), 255)
		n.LQI = &v
	}
	s.mu.Unlock()
	s.refreshLQI()
}

// refreshLQI re-grades every neighbor from its LQI value and pushes the table.
func (s *Simulator) refreshLQI() any {
	s.mu.Lock()
	s.bumpLQIMsLocked()
	for i := range s.neighbors {
		n := &s.neighbors[i]
		n.UpdatedMs = s.lqiMs
		if n.LQI != nil {
			n.Quality = qualityFromLQI(*n.LQI)
		}
	}
	snap := s.lqiSnapshotLocked()
	s.mu.Unlock()

	s.Broadcast("lqi_update", snap)
	return map[string]any{"count": len(snap.Neighbors), "neighbors": snap.Neighbors}
}

func qualityFromLQI(v int) string {
	switch {
	case v <= 0:
		return string(lqi.QualityUnknown)
	case v >= 180:
		return string(lqi.QualityGood)
	case v >= 120:
		return string(lqi.QualityWarn)
	default:
		return string(lqi.QualityBad)
	}
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"status": "error",
		"error":  map[string]any{"code": code, "message": message},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonAPI.NewEncoder(w).Encode(body)
}
