package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"gateway-console/pkg/api"
	"gateway-console/pkg/devicesim"
	"gateway-console/pkg/lqi"
)

// newSimCmd creates the "gwdash sim" subcommand.
func newSimCmd() *cobra.Command {
	var (
		listen  string
		devices int
		drift   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Serve a simulated gateway for local development",
		Long:  "Serves the gateway REST API under /api/v1 and the push channel on /ws,\nseeded with demo devices. Link quality drifts on an interval.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			logger := newLogger(cmd.ErrOrStderr(), "sim")
			sim := devicesim.New(logger)
			seedDemo(sim, devices)

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Simulated gateway on http://%s\n", ln.Addr())

			srv := &http.Server{Handler: sim.Handler(), ReadHeaderTimeout: 5 * time.Second}
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Serve(ln) }()

			var tick <-chan time.Time
			if drift > 0 {
				ticker := time.NewTicker(drift)
				defer ticker.Stop()
				tick = ticker.C
			}

			for {
				select {
				case <-ctx.Done():
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					sim.DropClients()
					return srv.Shutdown(shutdownCtx)
				case err := <-errCh:
					if errors.Is(err, http.ErrServerClosed) {
						return nil
					}
					return err
				case <-tick:
					sim.Drift(func(uint16) int { return rand.IntN(41) - 20 })
				}
			}
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:8080", "Address to serve on")
	cmd.Flags().IntVar(&devices, "devices", 4, "Number of demo devices")
	cmd.Flags().DurationVar(&drift, "drift", 15*time.Second, "Link quality drift interval, 0 to disable")
	return cmd
}

// seedDemo adds n devices, half of them direct neighbors, plus scan results.
func seedDemo(sim *devicesim.Simulator, n int) {
	devices := make([]api.Device, 0, n)
	neighbors := make([]lqi.NeighborSnapshot, 0, n)
	for i := 0; i < n; i++ {
		addr := uint16(0x1001 + i)
		name := fmt.Sprintf("Device %d", i+1)
		devices = append(devices, api.Device{ShortAddr: addr, Name: name})

		v := 220 - i*40
		if v < 20 {
			v = 20
		}
		neighbors = append(neighbors, lqi.NeighborSnapshot{
			Address: addr,
			Name:    name,
			LQI:     &v,
			Direct:  i%2 == 0,
		})
	}
	sim.SetDevices(devices)
	sim.SetNeighbors(string(lqi.SourceNeighborTable), neighbors)
	// A zero drift grades the seeded LQI values
	sim.Drift(func(uint16) int { return 0 })

	sim.SetScanNetworks([]api.ScanNetwork{
		{SSID: "gateway-lab", RSSI: -48, Auth: 3},
		{SSID: "guest", RSSI: -71, Auth: 0},
		{SSID: "workshop", RSSI: -63, Auth: 4},
	})
}
