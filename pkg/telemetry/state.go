package telemetry

import (
	"context"
	"sync"
	"time"

	"gateway-console/pkg/api"
	"gateway-console/pkg/lqi"
)

// Clock interface allows for deterministic testing
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Config for telemetry settings
type Config struct {
	BufferSize        int `default:"1000"`
	MaxRecentErrors   int `default:"50"`
	MaxRecentJobs     int `default:"20"`
	RateWindowSeconds int `default:"10"`
}

func DefaultConfig() Config {
	return Config{
		BufferSize:        1000,
		MaxRecentErrors:   50,
		MaxRecentJobs:     20,
		RateWindowSeconds: 10,
	}
}

// Aggregator folds the event stream into a Snapshot for status output.
type Aggregator struct {
	mu    sync.RWMutex
	clock Clock
	cfg   Config

	// Core counters
	messagesReceived  uint64
	messagesDropped   uint64
	versionMismatches uint64
	reconnects        uint64
	errorsTotal       uint64

	// Breakdown
	messagesByKind   map[string]uint64
	dropsByReason    map[DropReason]uint64
	errorsByContext  map[string]uint64
	errorsBySeverity map[ErrorSeverity]uint64
	jobsByState      map[string]uint64

	// Rate calculation
	messageTimes []time.Time

	// Current state
	connected       bool
	retryAttempt    int
	lastSeq         uint64
	lastVersion     int
	devices         []api.Device
	panID           uint16
	channel         int
	coordinatorAddr uint16
	health          api.Health
	hasHealth       bool
	linkQuality     lqi.View
	activeJobs      map[int64]JobStateChanged

	// Recent errors and finished jobs (ring buffers)
	recentErrors []string
	errorIndex   int
	recentJobs   []JobStateChanged
	jobIndex     int

	// Control channels
	eventCh chan TelemetryEvent
	done    chan struct{}
	wg      sync.WaitGroup

	// Startup time
	startTime time.Time
}

// NewAggregator creates a new telemetry aggregator
func NewAggregator(clock Clock, cfg Config) *Aggregator {
	if clock == nil {
		clock = RealClock{}
	}
	def := DefaultConfig()
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.MaxRecentErrors <= 0 {
		cfg.MaxRecentErrors = def.MaxRecentErrors
	}
	if cfg.MaxRecentJobs <= 0 {
		cfg.MaxRecentJobs = def.MaxRecentJobs
	}
	if cfg.RateWindowSeconds <= 0 {
		cfg.RateWindowSeconds = def.RateWindowSeconds
	}

	return &Aggregator{
		clock:            clock,
		cfg:              cfg,
		messagesByKind:   make(map[string]uint64),
		dropsByReason:    make(map[DropReason]uint64),
		errorsByContext:  make(map[string]uint64),
		errorsBySeverity: make(map[ErrorSeverity]uint64),
		jobsByState:      make(map[string]uint64),
		messageTimes:     make([]time.Time, 0, cfg.RateWindowSeconds*10),
		activeJobs:       make(map[int64]JobStateChanged),
		recentErrors:     make([]string, cfg.MaxRecentErrors),
		recentJobs:       make([]JobStateChanged, cfg.MaxRecentJobs),
		eventCh:          make(chan TelemetryEvent, cfg.BufferSize),
		done:             make(chan struct{}),
		startTime:        clock.Now(),
	}
}

// Start begins processing telemetry events
func (a *Aggregator) Start(ctx context.Context) {
	a.wg.Add(1)
	go a.processEvents(ctx)
}

// Stop gracefully shuts down the aggregator
func (a *Aggregator) Stop() {
	close(a.done)
	a.wg.Wait()
}

// Publish implements TelemetryPublisher interface
func (a *Aggregator) Publish(event TelemetryEvent) {
	select {
	case a.eventCh <- event:
	default:
		// Drop when full; publishers are on the message path
	}
}

// Snapshot implements TelemetryReader interface
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	now := a.clock.Now()

	byKind := make(map[string]uint64, len(a.messagesByKind))
	for k, v := range a.messagesByKind {
		byKind[k] = v
	}
	byReason := make(map[DropReason]uint64, len(a.dropsByReason))
	for k, v := range a.dropsByReason {
		byReason[k] = v
	}
	byContext := make(map[string]uint64, len(a.errorsByContext))
	for k, v := range a.errorsByContext {
		byContext[k] = v
	}
	bySeverity := make(map[ErrorSeverity]uint64, len(a.errorsBySeverity))
	for k, v := range a.errorsBySeverity {
		bySeverity[k] = v
	}
	byState := make(map[string]uint64, len(a.jobsByState))
	for k, v := range a.jobsByState {
		byState[k] = v
	}

	active := make([]JobStateChanged, 0, len(a.activeJobs))
	for _, j := range a.activeJobs {
		active = append(active, j)
	}

	// Newest first
	recentErrors := make([]string, 0)
	for i := 0; i < len(a.recentErrors); i++ {
		idx := (a.errorIndex - i - 1 + len(a.recentErrors)) % len(a.recentErrors)
		if a.recentErrors[idx] != "" {
			recentErrors = append(recentErrors, a.recentErrors[idx])
		}
	}
	recentJobs := make([]JobStateChanged, 0)
	for i := 0; i < len(a.recentJobs); i++ {
		idx := (a.jobIndex - i - 1 + len(a.recentJobs)) % len(a.recentJobs)
		if a.recentJobs[idx].JobID != 0 {
			recentJobs = append(recentJobs, a.recentJobs[idx])
		}
	}

	return Snapshot{
		MessagesReceived:   a.messagesReceived,
		MessagesDropped:    a.messagesDropped,
		VersionMismatches:  a.versionMismatches,
		Reconnects:         a.reconnects,
		ErrorsTotal:        a.errorsTotal,
		MessagesByKind:     byKind,
		DropsByReason:      byReason,
		Connected:          a.connected,
		RetryAttempt:       a.retryAttempt,
		LastSeq:            a.lastSeq,
		LastVersion:        a.lastVersion,
		DeviceCount:        len(a.devices),
		Devices:            append([]api.Device(nil), a.devices...),
		PanID:              a.panID,
		Channel:            a.channel,
		CoordinatorAddr:    a.coordinatorAddr,
		Health:             a.health,
		HasHealth:          a.hasHealth,
		LinkQuality:        a.linkQuality,
		ActiveJobs:         active,
		RecentJobs:         recentJobs,
		JobsByState:        byState,
		MessagesPerSecond:  a.calculateRate(a.messageTimes, now),
		UptimeSeconds:      now.Sub(a.startTime).Seconds(),
		ChannelUtilization: float64(len(a.eventCh)) / float64(cap(a.eventCh)) * 100,
		ErrorsByContext:    byContext,
		ErrorsBySeverity:   bySeverity,
		RecentErrors:       recentErrors,
	}
}

func (a *Aggregator) processEvents(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.done:
			return
		case event := <-a.eventCh:
			a.handleEvent(event)
		}
	}
}

func (a *Aggregator) handleEvent(event TelemetryEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()

	switch e := event.(type) {
	case ConnectionStatusChanged:
		if e.Connected && !a.connected && a.retryAttempt > 0 {
			a.reconnects++
		}
		a.connected = e.Connected
		a.retryAttempt = e.Attempt

	case MessageReceived:
		a.messagesReceived++
		a.messagesByKind[e.Kind]++
		if e.Seq > 0 {
			a.lastSeq = e.Seq
		}
		a.addMessageTime(now)

	case MessageDropped:
		a.messagesDropped++
		a.dropsByReason[e.Reason]++

	case ProtocolVersionMismatch:
		a.versionMismatches++
		a.lastVersion = e.Got

	case DevicesUpdated:
		a.devices = append(a.devices[:0:0], e.Devices...)

	case GatewayInfoUpdated:
		if e.PanID != nil {
			a.panID = *e.PanID
		}
		if e.Channel != nil {
			a.channel = *e.Channel
		}
		if e.ShortAddr != nil {
			a.coordinatorAddr = *e.ShortAddr
		}

	case HealthUpdated:
		a.health = e.Health
		a.hasHealth = true

	case LinkQualityUpdated:
		a.linkQuality = e.View

	case JobStateChanged:
		a.jobsByState[e.State]++
		switch e.State {
		case "succeeded", "failed":
			delete(a.activeJobs, e.JobID)
			a.addRecentJob(e)
		default:
			a.activeJobs[e.JobID] = e
		}

	case ClientError:
		a.errorsTotal++
		a.errorsByContext[e.Context]++
		a.errorsBySeverity[e.Severity]++
		if e.Err != nil {
			a.addRecentError(e.Context + ": " + e.Err.Error())
		}
	}
}

func (a *Aggregator) addMessageTime(t time.Time) {
	cutoff := t.Add(-time.Duration(a.cfg.RateWindowSeconds) * time.Second)

	// Remove old entries
	for len(a.messageTimes) > 0 && a.messageTimes[0].Before(cutoff) {
		a.messageTimes = a.messageTimes[1:]
	}

	a.messageTimes = append(a.messageTimes, t)
}

func (a *Aggregator) addRecentError(err string) {
	a.recentErrors[a.errorIndex] = err
	a.errorIndex = (a.errorIndex + 1) % len(a.recentErrors)
}

func (a *Aggregator) addRecentJob(j JobStateChanged) {
	a.recentJobs[a.jobIndex] = j
	a.jobIndex = (a.jobIndex + 1) % len(a.recentJobs)
}

func (a *Aggregator) calculateRate(times []time.Time, now time.Time) float64 {
	if len(times) == 0 {
		return 0.0
	}

	cutoff := now.Add(-time.Duration(a.cfg.RateWindowSeconds) * time.Second)
	count := 0

	for _, t := range times {
		if t.After(cutoff) {
			count++
		}
	}

	return float64(count) / float64(a.cfg.RateWindowSeconds)
}
