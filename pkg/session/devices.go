package session

import (
	"context"
	"fmt"

	"gateway-console/pkg/api"
	"gateway-console/pkg/telemetry"
)

// DeviceAdmin is the device management side of the gateway.
type DeviceAdmin interface {
	PermitJoin(ctx context.Context) (string, error)
	Control(ctx context.Context, req api.ControlRequest) (string, error)
	DeleteDevice(ctx context.Context, addr uint16) (string, error)
	RenameDevice(ctx context.Context, addr uint16, name string) (string, error)
	SaveWiFi(ctx context.Context, creds api.WiFiCredentials) (string, error)
}

func (s *Session) PermitJoin(ctx context.Context) (string, error) {
	msg, err := s.gw.PermitJoin(ctx)
	if err != nil {
		return "", fmt.Errorf("permit join: %w", err)
	}
	s.logger.Printf("permit join: %s", msg)
	return msg, nil
}

func (s *Session) Control(ctx context.Context, req api.ControlRequest) (string, error) {
	msg, err := s.gw.Control(ctx, req)
	if err != nil {
		return "", fmt.Errorf("control 0x%04x: %w", req.Addr, err)
	}
	return msg, nil
}

// DeleteDevice removes a device, then pulls /status so the device list
// reflects the change without waiting for a push.
func (s *Session) DeleteDevice(ctx context.Context, addr uint16) (string, error) {
	msg, err := s.gw.DeleteDevice(ctx, addr)
	if err != nil {
		return "", fmt.Errorf("delete 0x%04x: %w", addr, err)
	}
	s.refreshAfterChange(ctx, "delete")
	return msg, nil
}

// RenameDevice renames a device, then pulls /status.
func (s *Session) RenameDevice(ctx context.Context, addr uint16, name string) (string, error) {
	msg, err := s.gw.RenameDevice(ctx, addr, name)
	if err != nil {
		return "", fmt.Errorf("rename 0x%04x: %w", addr, err)
	}
	s.refreshAfterChange(ctx, "rename")
	return msg, nil
}

// SaveWiFi stores station credentials. The gateway restarts, so the push
// connection drops and reconnects on its own.
func (s *Session) SaveWiFi(ctx context.Context, creds api.WiFiCredentials) (string, error) {
	msg, err := s.gw.SaveWiFi(ctx, creds)
	if err != nil {
		return "", fmt.Errorf("save wifi: %w", err)
	}
	s.logger.Printf("wifi credentials saved for %q", creds.SSID)
	return msg, nil
}

func (s *Session) refreshAfterChange(ctx context.Context, what string) {
	if err := s.RefreshStatus(ctx); err != nil && ctx.Err() == nil {
		s.logger.Printf("status after %s: %v", what, err)
		s.pub.Publish(telemetry.NewClientError(fmt.Errorf("status: %w", err), what, telemetry.ErrorSeverityWarning))
	}
}
