package cmd

import (
	"context"
	"fmt"
	"io"
	"syscall"

	"github.com/spf13/cobra"
)

var stopSignal bool

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the pulse daemon",
	Long: `Stop the pulse daemon gracefully.

This command sends daemon_shutdown over the Unix Domain Socket. The daemon
stops its components, closes active taps and subscriptions, and exits.
With --signal the daemon is sent SIGTERM through its PID file instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if stopSignal {
			return runSignal(cmd.OutOrStdout(), syscall.SIGTERM, "shutdown requested")
		}
		return runStop(cmd.Context(), newClient(), cmd.OutOrStdout())
	},
}

func init() {
	stopCmd.Flags().BoolVar(&stopSignal, "signal", false, "send SIGTERM via the PID file")
	stopCmd.Flags().StringVarP(&signalPIDFile, "pidfile", "p", "/var/run/pulse.pid", "PID file path")
}

func runStop(ctx context.Context, client Client, out io.Writer) error {
	if err := client.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	fmt.Fprintln(out, "✓ Daemon is shutting down")
	return nil
}
