// Package session wires the connection manager, job orchestrator and link
// quality aggregator for one gateway and owns their lifetime.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"gateway-console/pkg/api"
	"gateway-console/pkg/conn"
	"gateway-console/pkg/jobs"
	"gateway-console/pkg/lqi"
	"gateway-console/pkg/telemetry"
)

// Gateway is the request/response side of the device. *api.Client implements it.
type Gateway interface {
	jobs.Channel
	DeviceAdmin
	Status(ctx context.Context) (api.Status, error)
	Health(ctx context.Context) (api.Health, error)
	LQI(ctx context.Context) (api.LQISnapshot, error)
}

// Config for one session
type Config struct {
	GatewayURL     string
	WSPath         string
	APIBasePath    string
	HTTPTimeout    time.Duration
	Conn           conn.Config
	Jobs           jobs.Options
	LQI            lqi.Config
	TickInterval   time.Duration
	AutoRefreshLQI bool
}

func DefaultConfig() Config {
	return Config{
		WSPath:         "/ws",
		APIBasePath:    api.DefaultBasePath,
		HTTPTimeout:    10 * time.Second,
		Conn:           conn.DefaultConfig(),
		Jobs:           jobs.DefaultOptions(),
		LQI:            lqi.DefaultConfig(),
		TickInterval:   5 * time.Second,
		AutoRefreshLQI: true,
	}
}

// Option customizes a Session, mainly for tests.
type Option func(*Session)

func WithGateway(g Gateway) Option       { return func(s *Session) { s.gw = g } }
func WithDialer(d conn.Dialer) Option    { return func(s *Session) { s.dialer = d } }
func WithClock(c telemetry.Clock) Option { return func(s *Session) { s.clock = c } }

// Session is the context object an application holds for one gateway.
type Session struct {
	cfg    Config
	pub    telemetry.TelemetryPublisher
	logger *log.Logger
	clock  telemetry.Clock

	gw     Gateway
	dialer conn.Dialer
	conn   *conn.Manager
	jobs   *jobs.Orchestrator
	lqi    *lqi.Aggregator

	mu              sync.Mutex
	devices         []api.Device
	lastAutoRefresh time.Time

	cancel context.CancelFunc
	done   chan error
}

// New builds a session. Nothing connects until Run or Start.
func New(cfg Config, pub telemetry.TelemetryPublisher, logger *log.Logger, opts ...Option) (*Session, error) {
	if cfg.GatewayURL == "" {
		return nil, errors.New("gateway url is required")
	}
	def := DefaultConfig()
	if cfg.WSPath == "" {
		cfg.WSPath = def.WSPath
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if pub == nil {
		pub = telemetry.NewNoopPublisher()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	wsURL, err := PushURL(cfg.GatewayURL, cfg.WSPath)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:    cfg,
		pub:    pub,
		logger: logger,
		clock:  telemetry.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gw == nil {
		s.gw = api.NewClient(cfg.GatewayURL, cfg.APIBasePath, cfg.HTTPTimeout)
	}
	if s.dialer == nil {
		s.dialer = conn.WebSocketDialer{}
	}

	s.lqi = lqi.NewAggregator(cfg.LQI)
	s.jobs = jobs.NewOrchestrator(s.gw, cfg.Jobs, pub, logger)
	s.conn = conn.NewManager(wsURL, s.dialer, s, cfg.Conn, pub, logger)
	return s, nil
}

// PushURL derives the websocket URL from the gateway http(s) root.
func PushURL(gatewayURL, wsPath string) (string, error) {
	u, err := url.Parse(gatewayURL)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported gateway url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(wsPath, "/")
	return u.String(), nil
}

func (s *Session) Jobs() *jobs.Orchestrator { return s.jobs }
func (s *Session) Conn() *conn.Manager      { return s.conn }

// LinkQuality returns the current link quality view.
func (s *Session) LinkQuality() lqi.View {
	return s.lqi.View(s.clock.Now())
}

func (s *Session) Devices() []api.Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Device(nil), s.devices...)
}

// Run blocks until ctx is cancelled or a component fails.
func (s *Session) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.conn.Run(ctx) })
	g.Go(func() error { return s.tickLoop(ctx, g) })
	return g.Wait()
}

// Start runs the session in the background until Close.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan error, 1)
	go func() { s.done <- s.Run(ctx) }()
}

// Close cancels the reconnect wait, pending reconciliation, the tick loop and
// in-flight job polls, then waits for them to return.
func (s *Session) Close() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	err := <-s.done
	s.cancel = nil
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Session) tickLoop(ctx context.Context, g *errgroup.Group) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx, g)
		}
	}
}

// tick republishes the aged view and starts an auto refresh when stale.
func (s *Session) tick(ctx context.Context, g *errgroup.Group) {
	now := s.clock.Now()
	s.pub.Publish(telemetry.NewLinkQualityUpdated(s.lqi.View(now)))

	if !s.shouldAutoRefresh(now) {
		return
	}
	g.Go(func() error {
		s.autoRefresh(ctx)
		return nil
	})
}

func (s *Session) shouldAutoRefresh(now time.Time) bool {
	if !s.cfg.AutoRefreshLQI || s.conn.State() != conn.StateOpen {
		return false
	}
	if !s.lqi.IsStale(now) || s.jobs.Active(jobs.TypeLQIRefresh) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastAutoRefresh.IsZero() && now.Sub(s.lastAutoRefresh) < s.lqiStaleThreshold() {
		return false
	}
	s.lastAutoRefresh = now
	return true
}

func (s *Session) lqiStaleThreshold() time.Duration {
	if s.cfg.LQI.StaleThreshold > 0 {
		return s.cfg.LQI.StaleThreshold
	}
	return lqi.DefaultConfig().StaleThreshold
}

func (s *Session) autoRefresh(ctx context.Context) {
	s.logger.Printf("link quality stale, requesting refresh")
	if err := s.jobs.RefreshLQI(ctx); err != nil {
		if errors.Is(err, jobs.ErrJobInProgress) || ctx.Err() != nil {
			return
		}
		s.logger.Printf("auto lqi refresh failed: %v", err)
		s.pub.Publish(telemetry.NewClientError(err, "auto_refresh", telemetry.ErrorSeverityWarning))
		return
	}
	s.pullLQI(ctx)
}

// Reconcile pulls status, health and link quality after a connection opens.
func (s *Session) Reconcile(ctx context.Context) {
	if err := s.RefreshStatus(ctx); err != nil {
		s.reportPullError(ctx, "status", err)
	}

	if h, err := s.gw.Health(ctx); err != nil {
		s.reportPullError(ctx, "health", err)
	} else {
		s.HandleHealth(h)
	}

	s.pullLQI(ctx)
}

// RefreshStatus pulls /status and applies it like a push.
func (s *Session) RefreshStatus(ctx context.Context) error {
	st, err := s.gw.Status(ctx)
	if err != nil {
		return err
	}
	s.HandleLegacyStatus(st.Update())
	return nil
}

func (s *Session) pullLQI(ctx context.Context) {
	snap, err := s.gw.LQI(ctx)
	if err != nil {
		s.reportPullError(ctx, "lqi", err)
		return
	}
	s.HandleLinkQuality(snap)
}

func (s *Session) reportPullError(ctx context.Context, what string, err error) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Printf("reconcile %s: %v", what, err)
	s.pub.Publish(telemetry.NewClientError(fmt.Errorf("%s: %w", what, err), "reconcile", telemetry.ErrorSeverityWarning))
}

func (s *Session) HandleDevices(devices []api.Device) {
	s.mu.Lock()
	s.devices = append(s.devices[:0:0], devices...)
	s.mu.Unlock()
	s.pub.Publish(telemetry.NewDevicesUpdated(devices))
}

func (s *Session) HandleHealth(h api.Health) {
	s.pub.Publish(telemetry.NewHealthUpdated(h))
}

func (s *Session) HandleLinkQuality(snap api.LQISnapshot) {
	now := s.clock.Now()
	s.lqi.Ingest(snap.Neighbors, snap.Meta(), now)
	s.pub.Publish(telemetry.NewLinkQualityUpdated(s.lqi.View(now)))
}

// HandleLegacyStatus applies only the fields the update carries.
func (s *Session) HandleLegacyStatus(st api.StatusUpdate) {
	if st.PanID != nil || st.Channel != nil || st.ShortAddr != nil {
		s.pub.Publish(telemetry.NewGatewayInfoUpdated(st.PanID, st.Channel, st.ShortAddr))
	}
	if st.Devices != nil {
		s.HandleDevices(st.Devices)
	}
}
