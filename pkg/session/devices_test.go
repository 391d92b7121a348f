package session

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gateway-console/pkg/api"
	"gateway-console/pkg/testutil"
)

func (f *fakeGateway) record(action string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actionErr != nil {
		return "", f.actionErr
	}
	f.actions = append(f.actions, action)
	return action + " ok", nil
}

func (f *fakeGateway) PermitJoin(ctx context.Context) (string, error) {
	return f.record("permit_join")
}

func (f *fakeGateway) Control(ctx context.Context, req api.ControlRequest) (string, error) {
	return f.record(fmt.Sprintf("control %d/%d/%d", req.Addr, req.Endpoint, req.Command))
}

func (f *fakeGateway) DeleteDevice(ctx context.Context, addr uint16) (string, error) {
	msg, err := f.record(fmt.Sprintf("delete %d", addr))
	if err == nil {
		f.mu.Lock()
		f.status.Devices = []api.Device{}
		f.mu.Unlock()
	}
	return msg, err
}

func (f *fakeGateway) RenameDevice(ctx context.Context, addr uint16, name string) (string, error) {
	msg, err := f.record(fmt.Sprintf("rename %d %s", addr, name))
	if err == nil {
		f.mu.Lock()
		f.status.Devices = []api.Device{{ShortAddr: addr, Name: name}}
		f.mu.Unlock()
	}
	return msg, err
}

func (f *fakeGateway) SaveWiFi(ctx context.Context, creds api.WiFiCredentials) (string, error) {
	return f.record("wifi " + creds.SSID)
}

func (f *fakeGateway) statusPulls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func newDeviceSession(t *testing.T, gw *fakeGateway) (*Session, *testutil.CapturingPublisher) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.GatewayURL = "http://gw.local"
	pub := testutil.NewCapturingPublisher()
	s, err := New(cfg, pub, nil, WithGateway(gw))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return s, pub
}

func TestSession_RenamePullsStatus(t *testing.T) {
	gw := &fakeGateway{status: api.Status{PanID: 0x1234, Channel: 15, Devices: []api.Device{{ShortAddr: 4097, Name: "Lamp A"}}}}
	s, pub := newDeviceSession(t, gw)

	msg, err := s.RenameDevice(context.Background(), 4097, "Hall lamp")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if msg != "rename 4097 Hall lamp ok" {
		t.Errorf("unexpected message %q", msg)
	}
	if gw.statusPulls() != 1 {
		t.Errorf("expected one status pull, got %d", gw.statusPulls())
	}
	devices := s.Devices()
	if len(devices) != 1 || devices[0].Name != "Hall lamp" {
		t.Errorf("expected renamed device, got %+v", devices)
	}
	if len(pub.OfType("devices_updated")) != 1 {
		t.Errorf("expected devices_updated after rename, got %d", len(pub.OfType("devices_updated")))
	}
}

func TestSession_DeletePullsStatus(t *testing.T) {
	gw := &fakeGateway{status: api.Status{Devices: []api.Device{{ShortAddr: 4097, Name: "Lamp A"}}}}
	s, _ := newDeviceSession(t, gw)
	s.HandleDevices(gw.status.Devices)

	if _, err := s.DeleteDevice(context.Background(), 4097); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gw.statusPulls() != 1 {
		t.Errorf("expected one status pull, got %d", gw.statusPulls())
	}
	if len(s.Devices()) != 0 {
		t.Errorf("expected device list to be cleared, got %+v", s.Devices())
	}
}

func TestSession_FailedActionSkipsStatusPull(t *testing.T) {
	boom := &api.HTTPError{StatusCode: 500, Code: "internal_error", Message: "Delete failed"}
	gw := &fakeGateway{actionErr: boom}
	s, _ := newDeviceSession(t, gw)

	_, err := s.DeleteDevice(context.Background(), 4097)
	var httpErr *api.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Message != "Delete failed" {
		t.Fatalf("expected wrapped HTTPError, got %v", err)
	}
	if gw.statusPulls() != 0 {
		t.Errorf("expected no status pull after a failed delete, got %d", gw.statusPulls())
	}
}

func TestSession_PassThroughActions(t *testing.T) {
	gw := &fakeGateway{}
	s, _ := newDeviceSession(t, gw)
	ctx := context.Background()

	if _, err := s.PermitJoin(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := s.Control(ctx, api.ControlRequest{Addr: 4097, Endpoint: 1, Command: api.CommandOn}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := s.SaveWiFi(ctx, api.WiFiCredentials{SSID: "lab", Password: "secret123"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expected := []string{"permit_join", "control 4097/1/1", "wifi lab"}
	if len(gw.actions) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, gw.actions)
	}
	for i := range expected {
		if gw.actions[i] != expected[i] {
			t.Errorf("action %d: expected %s, got %s", i, expected[i], gw.actions[i])
		}
	}
	if gw.statusPulls() != 0 {
		t.Errorf("expected no status pull, got %d", gw.statusPulls())
	}
}
