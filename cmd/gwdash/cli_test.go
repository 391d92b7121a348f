package main

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"

	"gateway-console/pkg/config"
	"gateway-console/pkg/lqi"
	"gateway-console/pkg/telemetry"
)

type staticReader struct {
	snapshot telemetry.Snapshot
}

func (r *staticReader) Snapshot() telemetry.Snapshot { return r.snapshot }

func TestStatusLines(t *testing.T) {
	s := telemetry.Snapshot{
		MessagesReceived:  1500,
		MessagesDropped:   2,
		MessagesPerSecond: 0.5,
		MessagesByKind:    map[string]uint64{"lqi_update": 3, "devices_delta": 9},
		Connected:         true,
		Reconnects:        1,
		LastSeq:           42,
		PanID:             0x1234,
		Channel:           15,
		DeviceCount:       3,
		LinkQuality: lqi.View{
			HasMeta:    true,
			Meta:       lqi.Meta{Source: string(lqi.SourceMgmtLQI)},
			Rows:       make([]lqi.Row, 2),
			AgeSeconds: 75,
			Stale:      true,
			Hints:      []lqi.Hint{{Kind: lqi.HintWeakLink, Address: 0x2002, Name: "Plug"}},
		},
		RecentErrors: []string{"read: connection reset", "dial: refused"},
		ErrorsTotal:  2,
	}

	out := strings.Join(statusLines(s), "\n")
	expected := []string{
		"received=1,500",
		"Connection - up, reconnects=1, last seq=42",
		"PAN 0x1234, channel 15, devices=3",
		"Messages by kind - devices_delta=9, lqi_update=3",
		"2 neighbors, source mgmt_lqi, updated 1m 15s ago (stale)",
		"hint: weak_link 0x2002 Plug",
		"Last error - read: connection reset",
	}
	for _, want := range expected {
		if !strings.Contains(out, want) {
			t.Errorf("expected status to contain %q, got:\n%s", want, out)
		}
	}
}

func TestStatusLines_Disconnected(t *testing.T) {
	out := strings.Join(statusLines(telemetry.Snapshot{RetryAttempt: 4}), "\n")
	if !strings.Contains(out, "Connection - down, retry attempt 4") {
		t.Errorf("expected disconnected line, got:\n%s", out)
	}
	if strings.Contains(out, "Gateway -") || strings.Contains(out, "Link quality") {
		t.Errorf("expected no gateway or link quality lines before data, got:\n%s", out)
	}
}

func TestPrintStatus_OnlyOnChange(t *testing.T) {
	reader := &staticReader{}
	var buf bytes.Buffer
	cli := NewCLI(reader, &config.Config{GatewayURL: "http://gw.local"}, log.New(&buf, "", 0), time.Second)

	cli.printStatus()
	if buf.Len() == 0 {
		t.Fatal("expected first status to print")
	}

	buf.Reset()
	cli.printStatus()
	if buf.Len() != 0 {
		t.Errorf("expected no output without changes, got %q", buf.String())
	}

	reader.snapshot.Connected = true
	cli.printStatus()
	if !strings.Contains(buf.String(), "Connection - up") {
		t.Errorf("expected status after connection change, got %q", buf.String())
	}

	buf.Reset()
	reader.snapshot.LinkQuality.Stale = true
	cli.printStatus()
	if buf.Len() == 0 {
		t.Error("expected status after link quality went stale")
	}
}
