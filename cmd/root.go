// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/pulse/internal/command"
)

var (
	// Global flags
	configFile string
	socketPath string
	timeout    time.Duration
)

// errStop ends a stream early without reporting an error.
var errStop = errors.New("stop")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Pulse - live observability for an event pipeline",
	Long: `Pulse runs a small event pipeline and exposes what it is doing while it runs.

The daemon samples per-component counters, merges them across measurement
points and streams totals and throughput over a local Unix socket. Taps let
you watch the events leaving any component without touching the pipeline.`,
	Version:      command.Version,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/pulse/config.yml",
		"config file path")
	rootCmd.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/var/run/pulse.sock",
		"daemon socket path")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"timeout for unary control commands")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(componentsCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(tapCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(validateCmd)
}
