package devicesim

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gateway-console/pkg/api"
	"gateway-console/pkg/testutil"
)

func TestEndToEnd_RenameAndDeleteRefreshDevices(t *testing.T) {
	h := newHarness(t)
	h.sim.SetDevices([]api.Device{{ShortAddr: 0x1001, Name: "Lamp A"}, {ShortAddr: 0x1002, Name: "Plug"}})
	if !testutil.Eventually(2*time.Second, func() bool { return len(h.s.Devices()) == 2 }) {
		t.Fatalf("expected 2 devices, got %+v", h.s.Devices())
	}
	ctx := context.Background()

	msg, err := h.s.RenameDevice(ctx, 0x1002, "Kettle")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if msg != "Device renamed" {
		t.Errorf("unexpected message %q", msg)
	}
	if d := h.s.Devices(); len(d) != 2 || d[1].Name != "Kettle" {
		t.Errorf("expected rename to be visible without a push, got %+v", d)
	}

	if _, err := h.s.DeleteDevice(ctx, 0x1001); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if d := h.s.Devices(); len(d) != 1 || d[0].ShortAddr != 0x1002 {
		t.Errorf("expected only 0x1002 left, got %+v", d)
	}

	_, err = h.s.DeleteDevice(ctx, 0x1001)
	var httpErr *api.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusInternalServerError || httpErr.Message != "Delete failed" {
		t.Errorf("expected Delete failed, got %v", err)
	}
}

func TestEndToEnd_ControlPermitJoinAndWiFi(t *testing.T) {
	sim := New(nil)
	srv := httptest.NewServer(sim.Handler())
	defer srv.Close()
	client := api.NewClient(srv.URL, "", time.Second)
	ctx := context.Background()

	if _, err := client.Control(ctx, api.ControlRequest{Addr: 0x1001, Endpoint: 1, Command: api.CommandOff}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cmds := sim.Commands(); len(cmds) != 1 || cmds[0].Command != api.CommandOff {
		t.Errorf("unexpected commands %+v", cmds)
	}

	if sim.PermitJoinOpen() {
		t.Fatal("expected network closed before permit join")
	}
	if _, err := client.PermitJoin(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !sim.PermitJoinOpen() {
		t.Error("expected network open after permit join")
	}

	msg, err := client.SaveWiFi(ctx, api.WiFiCredentials{SSID: "gateway-lab", Password: "secret123"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if msg != "Saved. Restarting..." {
		t.Errorf("unexpected message %q", msg)
	}
	if creds, ok := sim.SavedWiFi(); !ok || creds.SSID != "gateway-lab" {
		t.Errorf("unexpected saved credentials %+v", creds)
	}
}

func TestDeviceRoutes_RejectInvalidBodies(t *testing.T) {
	sim := New(nil)
	srv := httptest.NewServer(sim.Handler())
	defer srv.Close()

	tests := []struct {
		name string
		path string
		body string
	}{
		{"control missing cmd", "/control", `{"addr":4097,"ep":1}`},
		{"control endpoint 241", "/control", `{"addr":4097,"ep":241,"cmd":1}`},
		{"control command 2", "/control", `{"addr":4097,"ep":1,"cmd":2}`},
		{"delete coordinator", "/delete", `{"short_addr":0}`},
		{"delete not json", "/delete", `short_addr=1`},
		{"rename long name", "/rename", `{"short_addr":4097,"name":"abcdefghijklmnopqrstuvwxyz0123456"}`},
		{"rename missing name", "/rename", `{"short_addr":4097}`},
		{"wifi short password", "/settings/wifi", `{"ssid":"lab","password":"1234567"}`},
		{"wifi empty ssid", "/settings/wifi", `{"ssid":"","password":"secret123"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := http.Post(srv.URL+api.DefaultBasePath+tt.path, "application/json", bytes.NewBufferString(tt.body))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			res.Body.Close()
			if res.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", res.StatusCode)
			}
		})
	}

	if len(sim.Commands()) != 0 {
		t.Errorf("expected no commands recorded, got %+v", sim.Commands())
	}
	if _, ok := sim.SavedWiFi(); ok {
		t.Error("expected no credentials saved")
	}
}
