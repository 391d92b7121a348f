package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gateway-console/pkg/config"
	"gateway-console/pkg/telemetry"
	"gateway-console/pkg/utils"
)

// CLI represents the command-line interface runner
type CLI struct {
	telemetry telemetry.TelemetryReader
	config    *config.Config
	logger    *log.Logger
	interval  time.Duration

	// State
	lastSnapshot telemetry.Snapshot
	printed      bool
	done         chan struct{}
}

// NewCLI creates a new command-line interface runner
func NewCLI(telemetryReader telemetry.TelemetryReader, cfg *config.Config, logger *log.Logger, interval time.Duration) *CLI {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &CLI{
		telemetry: telemetryReader,
		config:    cfg,
		logger:    logger,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

// Run starts the CLI runner and blocks until shutdown
func (c *CLI) Run(ctx context.Context) error {
	c.logger.Printf("Starting %s in quiet mode", config.AppName)
	c.logger.Printf("Gateway: %s", c.config.GatewayURL)
	if c.config.ConfigFile != "" {
		c.logger.Printf("Config file: %s", c.config.ConfigFile)
	}
	c.logger.Printf("Reconnect backoff: %s to %s", c.config.Reconnect.BaseDelay, c.config.Reconnect.MaxDelay)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Printf("Shutting down...")
			return nil
		case <-ticker.C:
			c.printStatus()
		case <-c.done:
			return nil
		}
	}
}

// Stop stops the CLI runner
func (c *CLI) Stop() {
	close(c.done)
}

// printStatus prints current telemetry status
func (c *CLI) printStatus() {
	snapshot := c.telemetry.Snapshot()

	if c.shouldPrintStatus(snapshot) {
		for _, line := range statusLines(snapshot) {
			c.logger.Print(line)
		}
	}

	c.lastSnapshot = snapshot
	c.printed = true
}

// statusLines renders a snapshot as log lines.
func statusLines(s telemetry.Snapshot) []string {
	lines := []string{
		fmt.Sprintf("Status - Messages: received=%s, dropped=%d, rate=%.1f/s, errors=%d",
			utils.FormatNumber(s.MessagesReceived), s.MessagesDropped, s.MessagesPerSecond, s.ErrorsTotal),
	}

	if s.Connected {
		lines = append(lines, fmt.Sprintf("Connection - up, reconnects=%d, last seq=%d", s.Reconnects, s.LastSeq))
	} else {
		lines = append(lines, fmt.Sprintf("Connection - down, retry attempt %d", s.RetryAttempt))
	}

	if s.PanID != 0 || s.DeviceCount > 0 {
		lines = append(lines, fmt.Sprintf("Gateway - PAN %s, channel %d, devices=%d",
			utils.FormatShortAddr(s.PanID), s.Channel, s.DeviceCount))
	}

	if kinds := utils.SortKindsByCount(s.MessagesByKind); len(kinds) > 0 {
		parts := make([]string, 0, len(kinds))
		for _, k := range kinds {
			parts = append(parts, fmt.Sprintf("%s=%d", k.Kind, k.Count))
		}
		lines = append(lines, "Messages by kind - "+strings.Join(parts, ", "))
	}

	if v := s.LinkQuality; v.HasMeta {
		state := "fresh"
		if v.Stale {
			state = "stale"
		}
		lines = append(lines, fmt.Sprintf("Link quality - %d neighbors, source %s, updated %s ago (%s)",
			len(v.Rows), v.Meta.Source, utils.FormatAge(v.AgeSeconds), state))
		for _, h := range v.Hints {
			if h.Count > 0 {
				lines = append(lines, fmt.Sprintf("  hint: %s (%d neighbors)", h.Kind, h.Count))
				continue
			}
			lines = append(lines, fmt.Sprintf("  hint: %s %s %s", h.Kind, utils.FormatShortAddr(h.Address), h.Name))
		}
	}

	for _, j := range s.ActiveJobs {
		lines = append(lines, fmt.Sprintf("Job - %s (job %d): %s", j.Label, j.JobID, j.State))
	}

	// RecentErrors is newest first
	if len(s.RecentErrors) > 0 {
		lines = append(lines, "Last error - "+s.RecentErrors[0])
	}
	return lines
}

// shouldPrintStatus determines if we should print a status update
func (c *CLI) shouldPrintStatus(snapshot telemetry.Snapshot) bool {
	// Always print first status
	if !c.printed {
		return true
	}

	last := c.lastSnapshot

	if snapshot.MessagesReceived != last.MessagesReceived ||
		snapshot.MessagesDropped != last.MessagesDropped {
		return true
	}

	if snapshot.ErrorsTotal > last.ErrorsTotal {
		return true
	}

	if snapshot.Connected != last.Connected || snapshot.RetryAttempt != last.RetryAttempt {
		return true
	}

	if snapshot.DeviceCount != last.DeviceCount ||
		snapshot.LinkQuality.Stale != last.LinkQuality.Stale ||
		len(snapshot.ActiveJobs) != len(last.ActiveJobs) {
		return true
	}

	return false
}
