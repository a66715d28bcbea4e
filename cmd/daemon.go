package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"firestige.xyz/pulse/internal/daemon"
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the pulse daemon in foreground",
	Long: `Run the pulse daemon process in foreground.

The daemon will:
  1. Load global configuration from config file
  2. Initialize logging and metrics
  3. Build and start the configured sources, transforms and sinks
  4. Start the Prometheus endpoint (if enabled)
  5. Start the UDS server for CLI control
  6. Handle signals for graceful shutdown (SIGTERM, SIGINT) and reload (SIGHUP)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDaemon()
	},
}

var pidFile string

func init() {
	daemonCmd.Flags().StringVarP(&pidFile, "pidfile", "p", "",
		"PID file path (default: control.pid_file from config)")
}

func runDaemon() error {
	socket := ""
	if rootCmd.PersistentFlags().Changed("socket") {
		socket = socketPath
	}

	d, err := daemon.New(configFile, socket, pidFile)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Start(); err != nil {
		if stopErr := d.Stop(); stopErr != nil {
			slog.Error("cleanup after failed start", "error", stopErr)
		}
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Run main loop (blocks until shutdown)
	return d.Run()
}
