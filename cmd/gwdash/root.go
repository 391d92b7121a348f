package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"gateway-console/pkg/config"
	"gateway-console/pkg/version"
)

// newRootCmd creates the root gwdash command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           config.AppName,
		Short:         config.AppDescription,
		Long:          "gwdash connects to a gateway's push channel and REST API, keeps a\nlive view of devices, health and link quality, and runs gateway jobs.\n\n" + config.EnvHelp(),
		Version:       fmt.Sprintf("%s %s", config.AppName, version.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newWatchCmd(),
		newJobCmd(),
		newDeviceCmd(),
		newSimCmd(),
	)

	return cmd
}

// newLogger builds a component logger in the same format everywhere.
func newLogger(w io.Writer, component string) *log.Logger {
	return log.New(w, fmt.Sprintf("[%s] ", component), log.LstdFlags)
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
