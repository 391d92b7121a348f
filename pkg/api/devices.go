package api

import (
	"context"
	"errors"
	"fmt"
)

// Request limits enforced by the gateway firmware.
const (
	MaxEndpoint        = 240
	MaxDeviceNameLen   = 31
	MaxSSIDLen         = 32
	MinWiFiPasswordLen = 8
	MaxWiFiPasswordLen = 64
)

// On/off cluster commands accepted by /control.
const (
	CommandOff uint8 = 0
	CommandOn  uint8 = 1
)

// ErrInvalidRequest is returned before any request is sent when arguments
// fall outside what the gateway accepts.
var ErrInvalidRequest = errors.New("invalid request")

// ControlRequest is the POST /control body.
type ControlRequest struct {
	Addr     uint16 `json:"addr"`
	Endpoint uint8  `json:"ep"`
	Command  uint8  `json:"cmd"`
}

func (r ControlRequest) Validate() error {
	if err := validateShortAddr(r.Addr); err != nil {
		return err
	}
	if r.Endpoint == 0 || r.Endpoint > MaxEndpoint {
		return fmt.Errorf("%w: endpoint must be 1..%d", ErrInvalidRequest, MaxEndpoint)
	}
	if r.Command != CommandOff && r.Command != CommandOn {
		return fmt.Errorf("%w: command must be 0 or 1", ErrInvalidRequest)
	}
	return nil
}

// WiFiCredentials is the POST /settings/wifi body.
type WiFiCredentials struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

func (c WiFiCredentials) Validate() error {
	if c.SSID == "" || len(c.SSID) > MaxSSIDLen {
		return fmt.Errorf("%w: ssid must be 1..%d bytes", ErrInvalidRequest, MaxSSIDLen)
	}
	if n := len(c.Password); n < MinWiFiPasswordLen || n > MaxWiFiPasswordLen {
		return fmt.Errorf("%w: password must be %d..%d characters", ErrInvalidRequest, MinWiFiPasswordLen, MaxWiFiPasswordLen)
	}
	return nil
}

// ValidateDeviceName checks a name against the device table limit.
func ValidateDeviceName(name string) error {
	if name == "" || len(name) > MaxDeviceNameLen {
		return fmt.Errorf("%w: name must be 1..%d bytes", ErrInvalidRequest, MaxDeviceNameLen)
	}
	return nil
}

func validateShortAddr(addr uint16) error {
	if addr == 0 {
		return fmt.Errorf("%w: short address must be 0x0001..0xFFFF", ErrInvalidRequest)
	}
	return nil
}

// ActionResponse is the data of a command endpoint that only reports a message.
type ActionResponse struct {
	Message string `json:"message"`
}

type deviceRef struct {
	ShortAddr uint16 `json:"short_addr"`
	Name      string `json:"name,omitempty"`
}

// PermitJoin opens the network for new devices. The gateway keeps it open
// for 60 seconds.
func (c *Client) PermitJoin(ctx context.Context) (string, error) {
	return c.action(ctx, "/permit_join", struct{}{})
}

// Control sends an on/off command to one endpoint of a device.
func (c *Client) Control(ctx context.Context, req ControlRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	return c.action(ctx, "/control", req)
}

// DeleteDevice removes a device from the gateway's table.
func (c *Client) DeleteDevice(ctx context.Context, addr uint16) (string, error) {
	if err := validateShortAddr(addr); err != nil {
		return "", err
	}
	return c.action(ctx, "/delete", deviceRef{ShortAddr: addr})
}

// RenameDevice sets the display name of a device.
func (c *Client) RenameDevice(ctx context.Context, addr uint16, name string) (string, error) {
	if err := validateShortAddr(addr); err != nil {
		return "", err
	}
	if err := ValidateDeviceName(name); err != nil {
		return "", err
	}
	return c.action(ctx, "/rename", deviceRef{ShortAddr: addr, Name: name})
}

// SaveWiFi stores station credentials. The gateway restarts to apply them.
func (c *Client) SaveWiFi(ctx context.Context, creds WiFiCredentials) (string, error) {
	if err := creds.Validate(); err != nil {
		return "", err
	}
	return c.action(ctx, "/settings/wifi", creds)
}

func (c *Client) action(ctx context.Context, path string, body any) (string, error) {
	var resp ActionResponse
	if err := c.postJSON(ctx, path, body, nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}
