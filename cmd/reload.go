package cmd

import (
	"context"
	"fmt"
	"io"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/pulse/internal/daemon"
)

var (
	reloadSignal  bool
	signalPIDFile string
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload configuration",
	Long: `Ask the daemon to re-read its configuration file and replace the running
components. With --signal the daemon is sent SIGHUP through its PID file
instead of the control socket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if reloadSignal {
			return runSignal(cmd.OutOrStdout(), syscall.SIGHUP, "reload requested")
		}
		return runReload(cmd.Context(), newClient(), cmd.OutOrStdout())
	},
}

func init() {
	reloadCmd.Flags().BoolVar(&reloadSignal, "signal", false, "send SIGHUP via the PID file")
	reloadCmd.Flags().StringVarP(&signalPIDFile, "pidfile", "p", "/var/run/pulse.pid", "PID file path")
}

func runReload(ctx context.Context, client Client, out io.Writer) error {
	if err := client.ConfigReload(ctx); err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	fmt.Fprintln(out, "✓ Configuration reloaded successfully")
	return nil
}

func runSignal(out io.Writer, sig syscall.Signal, done string) error {
	if err := daemon.Signal(signalPIDFile, sig); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ %s (%s)\n", done, sig)
	return nil
}
