package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"gateway-console/pkg/api"
	"gateway-console/pkg/config"
	"gateway-console/pkg/jobs"
	"gateway-console/pkg/lqi"
	"gateway-console/pkg/session"
	"gateway-console/pkg/telemetry"
	"gateway-console/pkg/utils"
)

// jobPrinter writes job state notifications as they happen.
type jobPrinter struct {
	w io.Writer
}

func (p jobPrinter) Publish(event telemetry.TelemetryEvent) {
	e, ok := event.(telemetry.JobStateChanged)
	if !ok {
		return
	}
	if e.Reason != "" {
		fmt.Fprintf(p.w, "%s (job %d): %s: %s\n", e.Label, e.JobID, e.State, e.Reason)
		return
	}
	fmt.Fprintf(p.w, "%s (job %d): %s\n", e.Label, e.JobID, e.State)
}

// runJob loads config, builds a session without connecting and runs fn.
func runJob(cmd *cobra.Command, fn func(ctx context.Context, o *jobs.Orchestrator, cfg *config.Config) error) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	s, err := session.New(cfg.Session(), jobPrinter{w: cmd.OutOrStdout()}, newLogger(cmd.ErrOrStderr(), "jobs"))
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if err := fn(ctx, s.Jobs(), cfg); err != nil {
		var failed *jobs.JobFailedError
		if errors.As(err, &failed) {
			return fmt.Errorf("%s failed: %s", failed.Type, failed.Reason)
		}
		return err
	}
	return nil
}

// newJobCmd creates the "gwdash job" command group.
func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Run a gateway job and wait for it to finish",
	}
	cmd.AddCommand(
		newScanCmd(),
		newRebootCmd(),
		newFactoryResetCmd(),
		newUpdateCmd(),
		newLQIRefreshCmd(),
	)
	return cmd
}

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan for Wi-Fi networks, strongest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, func(ctx context.Context, o *jobs.Orchestrator, _ *config.Config) error {
				networks, err := o.Scan(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(networks) == 0 {
					fmt.Fprintln(out, "No networks found")
					return nil
				}
				fmt.Fprintf(out, "%-32s %6s %s\n", "SSID", "RSSI", "AUTH")
				for _, n := range networks {
					fmt.Fprintf(out, "%-32s %6d %d\n", n.SSID, n.RSSI, n.Auth)
				}
				return nil
			})
		},
	}
}

func newRebootCmd() *cobra.Command {
	var delayMs int
	cmd := &cobra.Command{
		Use:   "reboot",
		Short: "Restart the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, func(ctx context.Context, o *jobs.Orchestrator, _ *config.Config) error {
				return o.Reboot(ctx, delayMs)
			})
		},
	}
	cmd.Flags().IntVar(&delayMs, "delay-ms", 0, "Delay before restarting, 0 for the device default")
	return cmd
}

func newFactoryResetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "factory-reset",
		Short: "Erase gateway settings and paired devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("factory-reset erases the gateway; pass --yes to confirm")
			}
			return runJob(cmd, func(ctx context.Context, o *jobs.Orchestrator, _ *config.Config) error {
				return o.FactoryReset(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the reset")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Run the radio co-processor update check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, func(ctx context.Context, o *jobs.Orchestrator, _ *config.Config) error {
				return o.Update(ctx)
			})
		},
	}
}

func newLQIRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lqi-refresh",
		Short: "Ask the coordinator to re-read its neighbor table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJob(cmd, func(ctx context.Context, o *jobs.Orchestrator, cfg *config.Config) error {
				if err := o.RefreshLQI(ctx); err != nil {
					return err
				}
				client := api.NewClient(cfg.GatewayURL, cfg.APIBasePath, cfg.HTTPTimeout)
				snap, err := client.LQI(ctx)
				if err != nil {
					return fmt.Errorf("read neighbor table: %w", err)
				}
				printNeighbors(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}
}


// printNeighbors writes one line per neighbor. Missing LQI or RSSI prints as "-".
func printNeighbors(w io.Writer, snap api.LQISnapshot) {
	fmt.Fprintf(w, "%d neighbors (source %s)\n", len(snap.Neighbors), lqi.NormalizeSource(snap.Source))
	for _, n := range snap.Neighbors {
		fmt.Fprintf(w, "  %s %-20s lqi=%s rssi=%s %s\n",
			utils.FormatShortAddr(n.Address), n.Name, optInt(n.LQI), optInt(n.RSSI), lqi.NormalizeQuality(n.Quality))
	}
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
