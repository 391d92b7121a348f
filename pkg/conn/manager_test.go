package conn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gateway-console/pkg/api"
	"gateway-console/pkg/telemetry"
	"gateway-console/pkg/testutil"
)

type recordingHandler struct {
	mu         sync.Mutex
	devices    [][]api.Device
	health     []api.Health
	lqi        []api.LQISnapshot
	legacy     []api.StatusUpdate
	reconciles int
}

func (h *recordingHandler) HandleDevices(d []api.Device) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.devices = append(h.devices, d)
}

func (h *recordingHandler) HandleHealth(v api.Health) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.health = append(h.health, v)
}

func (h *recordingHandler) HandleLinkQuality(s api.LQISnapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lqi = append(h.lqi, s)
}

func (h *recordingHandler) HandleLegacyStatus(s api.StatusUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.legacy = append(h.legacy, s)
}

func (h *recordingHandler) count() (devices, health, lqi, legacy int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.devices), len(h.health), len(h.lqi), len(h.legacy)
}

type reconcilingHandler struct {
	recordingHandler
}

func (h *reconcilingHandler) Reconcile(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reconciles++
}

func (h *reconcilingHandler) reconcileCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reconciles
}

// scriptedDialer returns the queued results in order, then blocks until ctx ends.
type scriptedDialer struct {
	mu      sync.Mutex
	results []dialResult
	calls   int
}

type dialResult struct {
	sock *testutil.ScriptedSocket
	err  error
}

func (d *scriptedDialer) Dial(ctx context.Context, url string) (Socket, error) {
	d.mu.Lock()
	d.calls++
	if len(d.results) > 0 {
		r := d.results[0]
		d.results = d.results[1:]
		d.mu.Unlock()
		if r.err != nil {
			return nil, r.err
		}
		return r.sock, nil
	}
	d.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

func (d *scriptedDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *delayRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *delayRecorder) snapshot() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func TestBackoffDelay(t *testing.T) {
	expected := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		10000 * time.Millisecond,
		10000 * time.Millisecond,
	}
	for attempt, want := range expected {
		if got := BackoffDelay(time.Second, 10*time.Second, attempt); got != want {
			t.Errorf("attempt %d: expected %s, got %s", attempt, want, got)
		}
	}
	if got := BackoffDelay(time.Second, 10*time.Second, MaxRetryAttempt); got != 10*time.Second {
		t.Errorf("expected cap at max attempt, got %s", got)
	}
}

func newTestManager(h Handler, pub telemetry.TelemetryPublisher) *Manager {
	return NewManager("ws://gateway/ws", &scriptedDialer{}, h, DefaultConfig(), pub, nil)
}

func TestManager_SequenceGating(t *testing.T) {
	h := &recordingHandler{}
	pub := testutil.NewCapturingPublisher()
	m := newTestManager(h, pub)

	m.HandleMessage([]byte(`{"version":1,"seq":5,"type":"health_state","data":{}}`))
	if m.LastSeq() != 5 {
		t.Fatalf("expected watermark 5, got %d", m.LastSeq())
	}

	m.HandleMessage([]byte(`{"version":1,"seq":5,"type":"health_state","data":{}}`))
	m.HandleMessage([]byte(`{"version":1,"seq":4,"type":"health_state","data":{}}`))
	if m.LastSeq() != 5 {
		t.Errorf("expected duplicates to leave watermark at 5, got %d", m.LastSeq())
	}

	m.HandleMessage([]byte(`{"version":1,"seq":6,"type":"health_state","data":{}}`))
	if m.LastSeq() != 6 {
		t.Errorf("expected watermark to advance by exactly 1 to 6, got %d", m.LastSeq())
	}

	if _, health, _, _ := h.count(); health != 2 {
		t.Errorf("expected 2 dispatched health messages, got %d", health)
	}
	if drops := pub.OfType("message_dropped"); len(drops) != 2 {
		t.Errorf("expected 2 dropped events, got %d", len(drops))
	}
}

func TestManager_UnsequencedAlwaysDispatched(t *testing.T) {
	h := &recordingHandler{}
	m := newTestManager(h, nil)

	m.HandleMessage([]byte(`{"type":"devices_delta","data":{"devices":[{"short_addr":4097,"name":"Lamp A"}]}}`))
	m.HandleMessage([]byte(`{"type":"devices_delta","data":{"devices":[]}}`))

	if devices, _, _, _ := h.count(); devices != 2 {
		t.Errorf("expected 2 device updates, got %d", devices)
	}
	if m.LastSeq() != 0 {
		t.Errorf("expected watermark untouched, got %d", m.LastSeq())
	}
}

func TestManager_VersionMismatchWarnsAndContinues(t *testing.T) {
	h := &recordingHandler{}
	pub := testutil.NewCapturingPublisher()
	m := newTestManager(h, pub)

	m.HandleMessage([]byte(`{"version":2,"seq":1,"type":"lqi_update","data":{"neighbors":[],"source":"mgmt_lqi","updated_ms":1}}`))

	if _, _, lqi, _ := h.count(); lqi != 1 {
		t.Errorf("expected message to be processed despite version, got %d", lqi)
	}
	mismatches := pub.OfType("protocol_version_mismatch")
	if len(mismatches) != 1 {
		t.Fatalf("expected 1 version mismatch event, got %d", len(mismatches))
	}
	if e := mismatches[0].(telemetry.ProtocolVersionMismatch); e.Expected != 1 || e.Got != 2 {
		t.Errorf("unexpected mismatch event %+v", e)
	}
}

func TestManager_MalformedDropped(t *testing.T) {
	h := &recordingHandler{}
	pub := testutil.NewCapturingPublisher()
	m := newTestManager(h, pub)

	m.HandleMessage([]byte(`{not json`))
	m.HandleMessage([]byte(`{"type":"health_state","data":{"wifi":"x"}}`))
	m.HandleMessage([]byte(`{"type":"firmware_progress","data":{}}`))
	m.HandleMessage([]byte(`{"type":"health_state","data":{}}`))

	if _, health, _, _ := h.count(); health != 1 {
		t.Errorf("expected only the valid message to be dispatched, got %d", health)
	}

	var reasons []telemetry.DropReason
	for _, e := range pub.OfType("message_dropped") {
		reasons = append(reasons, e.(telemetry.MessageDropped).Reason)
	}
	expected := []telemetry.DropReason{telemetry.DropMalformed, telemetry.DropMalformed, telemetry.DropUnknown}
	if len(reasons) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, reasons)
	}
	for i := range expected {
		if reasons[i] != expected[i] {
			t.Errorf("drop %d: expected %s, got %s", i, expected[i], reasons[i])
		}
	}
}

func TestManager_DispatchByKind(t *testing.T) {
	h := &recordingHandler{}
	m := newTestManager(h, nil)

	m.HandleMessage([]byte(`{"type":"lqi_state","data":{"neighbors":[{"short_addr":4097,"quality":"fair"}],"source":"neighbor_table","updated_ms":5}}`))
	m.HandleMessage([]byte(`{"status":"ok","data":{"pan_id":4660,"channel":15,"devices":[]}}`))

	_, _, lqi, legacy := h.count()
	if lqi != 1 {
		t.Errorf("expected lqi_state alias to dispatch as link quality, got %d", lqi)
	}
	if legacy != 1 {
		t.Fatalf("expected legacy status dispatch, got %d", legacy)
	}
	if h.legacy[0].PanID == nil || *h.legacy[0].PanID != 0x1234 {
		t.Errorf("unexpected legacy status %+v", h.legacy[0])
	}
}

func TestManager_UnknownTypeWithFlatFieldsIsLegacy(t *testing.T) {
	h := &recordingHandler{}
	pub := testutil.NewCapturingPublisher()
	m := newTestManager(h, pub)

	m.HandleMessage([]byte(`{"type":"status","pan_id":4660,"channel":15,"short_addr":0,"devices":[{"short_addr":4097,"name":"Lamp A"}]}`))

	if _, _, _, legacy := h.count(); legacy != 1 {
		t.Fatalf("expected legacy status dispatch, got %d", legacy)
	}
	if len(h.legacy[0].Devices) != 1 {
		t.Errorf("expected 1 device, got %+v", h.legacy[0].Devices)
	}
	if drops := pub.OfType("message_dropped"); len(drops) != 0 {
		t.Errorf("expected no drops, got %d", len(drops))
	}
}

func TestManager_DevicesDeltaWithoutListDropped(t *testing.T) {
	h := &recordingHandler{}
	pub := testutil.NewCapturingPublisher()
	m := newTestManager(h, pub)

	m.HandleMessage([]byte(`{"type":"devices_delta","data":{}}`))
	m.HandleMessage([]byte(`{"type":"devices_delta","data":{"devices":{"short_addr":1}}}`))

	if devices, _, _, _ := h.count(); devices != 0 {
		t.Errorf("expected no device dispatch, got %d", devices)
	}
	drops := pub.OfType("message_dropped")
	if len(drops) != 2 || drops[0].(telemetry.MessageDropped).Reason != telemetry.DropMalformed {
		t.Errorf("expected 2 malformed drops, got %v", drops)
	}
}

func TestManager_ReconnectBackoff(t *testing.T) {
	refused := errors.New("connection refused")
	dialer := &scriptedDialer{}
	for i := 0; i < 6; i++ {
		dialer.results = append(dialer.results, dialResult{err: refused})
	}
	pub := testutil.NewCapturingPublisher()
	m := NewManager("ws://gateway/ws", dialer, &recordingHandler{}, DefaultConfig(), pub, nil)
	rec := &delayRecorder{}
	m.sleep = rec.sleep

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	if !testutil.Eventually(time.Second, func() bool { return dialer.callCount() == 7 }) {
		t.Fatalf("expected 7 dial attempts, got %d", dialer.callCount())
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("expected nil from Run on cancel, got %v", err)
	}

	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	delays := rec.snapshot()
	if len(delays) != len(expected) {
		t.Fatalf("expected one wait per failure %v, got %v", expected, delays)
	}
	for i := range expected {
		if delays[i] != expected[i] {
			t.Errorf("wait %d: expected %s, got %s", i, expected[i], delays[i])
		}
	}
	if m.RetryAttempt() != 6 {
		t.Errorf("expected retry attempt 6, got %d", m.RetryAttempt())
	}
	if m.State() != StateClosed {
		t.Errorf("expected closed after cancel, got %s", m.State())
	}
	if errs := pub.OfType("client_error"); len(errs) != 6 {
		t.Errorf("expected 6 dial errors, got %d", len(errs))
	}
}

func TestManager_RetrySaturates(t *testing.T) {
	dialer := &scriptedDialer{}
	for i := 0; i < 15; i++ {
		dialer.results = append(dialer.results, dialResult{err: errors.New("down")})
	}
	m := NewManager("ws://gateway/ws", dialer, nil, DefaultConfig(), nil, nil)
	rec := &delayRecorder{}
	m.sleep = rec.sleep

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	if !testutil.Eventually(time.Second, func() bool { return dialer.callCount() == 16 }) {
		t.Fatalf("expected 16 dial attempts, got %d", dialer.callCount())
	}
	if m.RetryAttempt() != MaxRetryAttempt {
		t.Errorf("expected retry attempt to saturate at %d, got %d", MaxRetryAttempt, m.RetryAttempt())
	}
}

func TestManager_OpenResetsCounters(t *testing.T) {
	first := testutil.NewScriptedSocket()
	first.Push(`{"version":1,"seq":3,"type":"health_state","data":{}}`)
	first.Fail(errors.New("reset by peer"))
	second := testutil.NewScriptedSocket()

	dialer := &scriptedDialer{results: []dialResult{
		{err: errors.New("refused")},
		{sock: first},
		{sock: second},
	}}
	m := NewManager("ws://gateway/ws", dialer, &recordingHandler{}, DefaultConfig(), nil, nil)
	rec := &delayRecorder{}
	m.sleep = rec.sleep

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	if !testutil.Eventually(time.Second, func() bool { return dialer.callCount() == 3 && m.State() == StateOpen }) {
		t.Fatalf("expected third dial to open, calls=%d state=%s", dialer.callCount(), m.State())
	}
	if m.LastSeq() != 0 {
		t.Errorf("expected watermark reset on open, got %d", m.LastSeq())
	}
	if m.RetryAttempt() != 0 {
		t.Errorf("expected retry reset on open, got %d", m.RetryAttempt())
	}

	delays := rec.snapshot()
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != time.Second {
		t.Errorf("expected [1s 1s] after open reset the counter, got %v", delays)
	}

	cancel()
	<-done
	if !second.Closed() {
		t.Error("expected socket to be closed on teardown")
	}
}

func TestManager_ReconcileAfterOpen(t *testing.T) {
	sock := testutil.NewScriptedSocket()
	dialer := &scriptedDialer{results: []dialResult{{sock: sock}}}
	h := &reconcilingHandler{}
	cfg := DefaultConfig()
	cfg.ReconcileDelay = 10 * time.Millisecond
	m := NewManager("ws://gateway/ws", dialer, h, cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	if !testutil.Eventually(time.Second, func() bool { return h.reconcileCount() == 1 }) {
		t.Fatalf("expected one reconcile, got %d", h.reconcileCount())
	}
	cancel()
	<-done
}

func TestManager_NewOpenCancelsPendingReconcile(t *testing.T) {
	first := testutil.NewScriptedSocket()
	first.Fail(errors.New("dropped"))
	second := testutil.NewScriptedSocket()
	dialer := &scriptedDialer{results: []dialResult{{sock: first}, {sock: second}}}

	h := &reconcilingHandler{}
	cfg := DefaultConfig()
	cfg.ReconcileDelay = 100 * time.Millisecond
	m := NewManager("ws://gateway/ws", dialer, h, cfg, nil, nil)
	m.sleep = (&delayRecorder{}).sleep

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	if !testutil.Eventually(time.Second, func() bool { return h.reconcileCount() >= 1 }) {
		t.Fatal("expected reconcile after second open")
	}
	time.Sleep(200 * time.Millisecond)
	if got := h.reconcileCount(); got != 1 {
		t.Errorf("expected exactly 1 reconcile, got %d", got)
	}
	cancel()
	<-done
}

func TestManager_TeardownCancelsPendingReconcile(t *testing.T) {
	sock := testutil.NewScriptedSocket()
	dialer := &scriptedDialer{results: []dialResult{{sock: sock}}}
	h := &reconcilingHandler{}
	cfg := DefaultConfig()
	cfg.ReconcileDelay = time.Hour
	m := NewManager("ws://gateway/ws", dialer, h, cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	if !testutil.Eventually(time.Second, func() bool { return m.State() == StateOpen }) {
		t.Fatal("expected open")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if h.reconcileCount() != 0 {
		t.Errorf("expected no reconcile after teardown, got %d", h.reconcileCount())
	}
}
