package config

import (
	"fmt"
	"time"

	"gateway-console/pkg/session"
)

func (c *Config) validate() error {
	if c.GatewayURL == "" {
		return fmt.Errorf("%s is required", KeyGatewayURL)
	}
	if _, err := session.PushURL(c.GatewayURL, c.WSPath); err != nil {
		return fmt.Errorf("%s: %w", KeyGatewayURL, err)
	}

	durations := []struct {
		key string
		d   time.Duration
	}{
		{KeyHTTPTimeoutSeconds, c.HTTPTimeout},
		{KeyReconnectBaseMs, c.Reconnect.BaseDelay},
		{KeyReconnectCapMs, c.Reconnect.MaxDelay},
		{KeyReconcileDelayMs, c.Reconnect.ReconcileDelay},
		{KeyJobTimeoutMs, c.Jobs.Timeout},
		{KeyJobPollIntervalMs, c.Jobs.PollInterval},
		{KeyLQITickMs, c.LQI.TickInterval},
	}
	for _, d := range durations {
		if d.d <= 0 {
			return fmt.Errorf("%s must be positive", d.key)
		}
	}

	if c.Reconnect.MaxDelay < c.Reconnect.BaseDelay {
		return fmt.Errorf("%s must not be below %s", KeyReconnectCapMs, KeyReconnectBaseMs)
	}
	return nil
}
