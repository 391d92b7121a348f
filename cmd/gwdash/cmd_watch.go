package main

import (
	"time"

	"github.com/spf13/cobra"

	"gateway-console/pkg/config"
	"gateway-console/pkg/session"
	"gateway-console/pkg/telemetry"
)

// newWatchCmd creates the "gwdash watch" subcommand.
func newWatchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and print status when it changes",
		Long:  "Connects to the gateway push channel, reconnecting with backoff, and\nprints a status summary whenever counters, connection or link quality change.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			agg := telemetry.NewAggregator(telemetry.RealClock{}, telemetry.DefaultConfig())
			agg.Start(ctx)
			defer agg.Stop()

			s, err := session.New(cfg.Session(), agg, newLogger(cmd.ErrOrStderr(), "session"))
			if err != nil {
				return err
			}
			s.Start(ctx)
			defer s.Close()

			cli := NewCLI(agg, cfg, newLogger(cmd.OutOrStdout(), config.AppName), interval)
			return cli.Run(ctx)
		},
	}

	cmd.Flags().DurationVar(&interval, "status-interval", 10*time.Second, "How often to check for status changes")
	return cmd
}
