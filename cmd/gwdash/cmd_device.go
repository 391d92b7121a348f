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
	"gateway-console/pkg/session"
	"gateway-console/pkg/utils"
)

// runDevice loads config, builds a session without connecting and runs fn.
func runDevice(cmd *cobra.Command, fn func(ctx context.Context, s *session.Session) error) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	s, err := session.New(cfg.Session(), nil, newLogger(cmd.ErrOrStderr(), "device"))
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	return fn(ctx, s)
}

// newDeviceCmd creates the "gwdash device" command group.
func newDeviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Manage paired devices and gateway settings",
	}
	cmd.AddCommand(
		newDeviceListCmd(),
		newPermitJoinCmd(),
		newSwitchCmd("on", api.CommandOn),
		newSwitchCmd("off", api.CommandOff),
		newDeleteDeviceCmd(),
		newRenameDeviceCmd(),
		newWiFiCmd(),
	)
	return cmd
}

func newDeviceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List paired devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevice(cmd, func(ctx context.Context, s *session.Session) error {
				if err := s.RefreshStatus(ctx); err != nil {
					return fmt.Errorf("read status: %w", err)
				}
				printDevices(cmd.OutOrStdout(), s.Devices())
				return nil
			})
		},
	}
}

func newPermitJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "permit-join",
		Short: "Open the network for new devices for 60 seconds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevice(cmd, func(ctx context.Context, s *session.Session) error {
				msg, err := s.PermitJoin(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
}

func newSwitchCmd(name string, command uint8) *cobra.Command {
	var endpoint int
	cmd := &cobra.Command{
		Use:   name + " <addr>",
		Short: "Switch a device " + name,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseShortAddr(args[0])
			if err != nil {
				return err
			}
			if endpoint < 1 || endpoint > api.MaxEndpoint {
				return fmt.Errorf("--ep must be 1..%d", api.MaxEndpoint)
			}
			return runDevice(cmd, func(ctx context.Context, s *session.Session) error {
				msg, err := s.Control(ctx, api.ControlRequest{Addr: addr, Endpoint: uint8(endpoint), Command: command})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&endpoint, "ep", 1, "Device endpoint")
	return cmd
}

func newDeleteDeviceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <addr>",
		Short: "Remove a device from the gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseShortAddr(args[0])
			if err != nil {
				return err
			}
			return runDevice(cmd, func(ctx context.Context, s *session.Session) error {
				msg, err := s.DeleteDevice(ctx, addr)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, msg)
				printDevices(out, s.Devices())
				return nil
			})
		},
	}
}

func newRenameDeviceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <addr> <name>",
		Short: "Rename a device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseShortAddr(args[0])
			if err != nil {
				return err
			}
			return runDevice(cmd, func(ctx context.Context, s *session.Session) error {
				msg, err := s.RenameDevice(ctx, addr, args[1])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, msg)
				printDevices(out, s.Devices())
				return nil
			})
		},
	}
}

func newWiFiCmd() *cobra.Command {
	var creds api.WiFiCredentials
	cmd := &cobra.Command{
		Use:   "wifi",
		Short: "Save station Wi-Fi credentials; the gateway restarts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := creds.Validate(); err != nil {
				return err
			}
			return runDevice(cmd, func(ctx context.Context, s *session.Session) error {
				msg, err := s.SaveWiFi(ctx, creds)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&creds.SSID, "ssid", "", "Network name")
	cmd.Flags().StringVar(&creds.Password, "password", "", "Network password, 8 to 64 characters")
	return cmd
}

// parseShortAddr accepts decimal or 0x-prefixed hex.
func parseShortAddr(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil || v == 0 {
		return 0, errors.New("address must be 0x0001..0xFFFF")
	}
	return uint16(v), nil
}

func printDevices(w io.Writer, devices []api.Device) {
	fmt.Fprintf(w, "%d devices\n", len(devices))
	for _, d := range devices {
		fmt.Fprintf(w, "  %s %s\n", utils.FormatShortAddr(d.ShortAddr), d.Name)
	}
}
