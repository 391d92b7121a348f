package conn

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"gateway-console/pkg/telemetry"
	"gateway-console/pkg/wire"
)

// State is the connection lifecycle state.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// MaxRetryAttempt is where the retry counter saturates.
const MaxRetryAttempt = 10

// Config for reconnect and reconciliation timing
type Config struct {
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	ReconcileDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		BaseDelay:      time.Second,
		MaxDelay:       10 * time.Second,
		ReconcileDelay: 1200 * time.Millisecond,
	}
}

// BackoffDelay is min(base * 2^attempt, max).
func BackoffDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Manager owns the push connection: dial, read, sequence gating, and
// reconnect with backoff. It holds no device logic; payloads go to Handler.
type Manager struct {
	url     string
	dialer  Dialer
	handler Handler
	cfg     Config
	pub     telemetry.TelemetryPublisher
	logger  *log.Logger

	mu              sync.Mutex
	state           State
	lastSeq         uint64
	retryAttempt    int
	reconcileCancel context.CancelFunc

	wg sync.WaitGroup

	// sleep waits for d or until ctx is done. Replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager creates a Manager in the closed state. pub and logger may be nil.
func NewManager(url string, dialer Dialer, handler Handler, cfg Config, pub telemetry.TelemetryPublisher, logger *log.Logger) *Manager {
	def := DefaultConfig()
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.ReconcileDelay <= 0 {
		cfg.ReconcileDelay = def.ReconcileDelay
	}
	if dialer == nil {
		dialer = WebSocketDialer{}
	}
	if pub == nil {
		pub = telemetry.NewNoopPublisher()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Manager{
		url:     url,
		dialer:  dialer,
		handler: handler,
		cfg:     cfg,
		pub:     pub,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) LastSeq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeq
}

func (m *Manager) RetryAttempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retryAttempt
}

// BackoffDelay returns the reconnect delay for attempt with this manager's config.
func (m *Manager) BackoffDelay(attempt int) time.Duration {
	return BackoffDelay(m.cfg.BaseDelay, m.cfg.MaxDelay, attempt)
}

// Run connects and keeps reconnecting until ctx is cancelled. It returns nil
// on cancellation after any pending reconciliation has stopped.
func (m *Manager) Run(ctx context.Context) error {
	defer m.wg.Wait()
	defer m.cancelReconcile()

	for {
		if ctx.Err() != nil {
			m.setState(StateClosed)
			return nil
		}

		m.setState(StateConnecting)
		sock, err := m.dialer.Dial(ctx, m.url)
		if err == nil {
			m.onOpen(ctx)
			err = m.readLoop(ctx, sock)
			_ = sock.Close()
		}

		if ctx.Err() != nil {
			m.setState(StateClosed)
			m.pub.Publish(telemetry.NewConnectionStatusChanged(m.url, false, 0))
			return nil
		}

		delay := m.onDisconnect(err)
		if err := m.sleep(ctx, delay); err != nil {
			m.setState(StateClosed)
			return nil
		}
	}
}

func (m *Manager) readLoop(ctx context.Context, sock Socket) error {
	for {
		raw, err := sock.Read(ctx)
		if err != nil {
			return err
		}
		m.HandleMessage(raw)
	}
}

func (m *Manager) onOpen(ctx context.Context) {
	m.mu.Lock()
	m.state = StateOpen
	m.lastSeq = 0
	m.retryAttempt = 0
	m.mu.Unlock()

	m.logger.Printf("connected to %s", m.url)
	m.pub.Publish(telemetry.NewConnectionStatusChanged(m.url, true, 0))
	m.scheduleReconcile(ctx)
}

// onDisconnect moves to closed and returns the single reconnect delay to wait.
func (m *Manager) onDisconnect(err error) time.Duration {
	m.mu.Lock()
	wasOpen := m.state == StateOpen
	m.state = StateClosed
	delay := BackoffDelay(m.cfg.BaseDelay, m.cfg.MaxDelay, m.retryAttempt)
	if m.retryAttempt < MaxRetryAttempt {
		m.retryAttempt++
	}
	attempt := m.retryAttempt
	m.mu.Unlock()

	where := "dial"
	if wasOpen {
		where = "read"
	}
	if err != nil {
		m.logger.Printf("connection %s failed: %v; reconnecting in %s", where, err, delay)
		m.pub.Publish(telemetry.NewClientError(err, where, telemetry.ErrorSeverityWarning))
	} else {
		m.logger.Printf("connection closed; reconnecting in %s", delay)
	}
	m.pub.Publish(telemetry.NewConnectionStatusChanged(m.url, false, attempt))
	return delay
}

func (m *Manager) scheduleReconcile(parent context.Context) {
	r, ok := m.handler.(Reconciler)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	m.mu.Lock()
	if m.reconcileCancel != nil {
		m.reconcileCancel()
	}
	m.reconcileCancel = cancel
	m.mu.Unlock()

	delay := m.cfg.ReconcileDelay
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := sleepCtx(ctx, delay); err != nil {
			return
		}
		r.Reconcile(ctx)
	}()
}

func (m *Manager) cancelReconcile() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reconcileCancel != nil {
		m.reconcileCancel()
		m.reconcileCancel = nil
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
}

// HandleMessage gates one raw frame on sequence and version and dispatches
// it. Malformed and duplicate frames are dropped without affecting the
// connection.
func (m *Manager) HandleMessage(raw []byte) {
	msg, err := wire.Decode(raw)
	if err != nil {
		m.logger.Printf("dropping message: %v", err)
		m.pub.Publish(telemetry.NewMessageDropped(telemetry.DropMalformed, 0))
		return
	}

	if msg.HasSeq {
		m.mu.Lock()
		if msg.Seq <= m.lastSeq {
			m.mu.Unlock()
			m.pub.Publish(telemetry.NewMessageDropped(telemetry.DropDuplicate, msg.Seq))
			return
		}
		m.lastSeq = msg.Seq
		m.mu.Unlock()
	}

	if msg.HasVersion && msg.Version != wire.ProtocolVersion {
		m.logger.Printf("warning: protocol version %d, expected %d", msg.Version, wire.ProtocolVersion)
		m.pub.Publish(telemetry.NewProtocolVersionMismatch(wire.ProtocolVersion, msg.Version))
	}

	if err := m.dispatch(msg); err != nil {
		m.logger.Printf("dropping %s message: %v", msg.Kind, err)
		reason := telemetry.DropMalformed
		if errors.Is(err, errUnknownKind) {
			reason = telemetry.DropUnknown
		}
		m.pub.Publish(telemetry.NewMessageDropped(reason, msg.Seq))
		return
	}
	m.pub.Publish(telemetry.NewMessageReceived(string(msg.Kind), msg.Seq))
}

var errUnknownKind = errors.New("unknown message type")

func (m *Manager) dispatch(msg wire.Message) error {
	if msg.Kind == wire.KindUnknown {
		return errUnknownKind
	}
	if m.handler == nil {
		return nil
	}
	switch msg.Kind {
	case wire.KindDevicesDelta:
		devices, err := wire.DecodeDevices(msg.Data)
		if err != nil {
			return err
		}
		m.handler.HandleDevices(devices)
	case wire.KindHealthState:
		h, err := wire.DecodeHealth(msg.Data)
		if err != nil {
			return err
		}
		m.handler.HandleHealth(h)
	case wire.KindLQIUpdate:
		s, err := wire.DecodeLQI(msg.Data)
		if err != nil {
			return err
		}
		m.handler.HandleLinkQuality(s)
	case wire.KindLegacyStatus:
		s, err := wire.DecodeLegacyStatus(msg.Data)
		if err != nil {
			return err
		}
		m.handler.HandleLegacyStatus(s)
	default:
		return errUnknownKind
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
