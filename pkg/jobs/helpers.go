package jobs

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"gateway-console/pkg/api"
	"gateway-console/pkg/utils"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Scan runs a Wi-Fi scan and returns networks strongest first.
func (o *Orchestrator) Scan(ctx context.Context) ([]api.ScanNetwork, error) {
	raw, err := o.Submit(ctx, TypeScan, nil, Options{Label: "Wi-Fi scan"})
	if err != nil {
		return nil, err
	}
	var res api.ScanResult
	if len(raw) > 0 {
		if err := jsonAPI.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("decode scan result: %w", err)
		}
	}
	return utils.SortNetworksByRSSI(res.Networks), nil
}

// Reboot asks the gateway to restart after delayMs (0 uses the device default).
func (o *Orchestrator) Reboot(ctx context.Context, delayMs int) error {
	var payload map[string]any
	if delayMs > 0 {
		payload = map[string]any{"reboot_delay_ms": delayMs}
	}
	_, err := o.Submit(ctx, TypeReboot, payload, Options{Label: "Reboot"})
	return err
}

// FactoryReset wipes gateway settings and paired devices.
func (o *Orchestrator) FactoryReset(ctx context.Context) error {
	_, err := o.Submit(ctx, TypeFactoryReset, nil, Options{Label: "Factory reset"})
	return err
}

// Update runs the radio co-processor update check.
func (o *Orchestrator) Update(ctx context.Context) error {
	_, err := o.Submit(ctx, TypeUpdate, nil, Options{Label: "Update check"})
	return err
}

// RefreshLQI asks the coordinator to re-read its neighbor table.
func (o *Orchestrator) RefreshLQI(ctx context.Context) error {
	_, err := o.Submit(ctx, TypeLQIRefresh, nil, Options{Label: "LQI refresh"})
	return err
}
