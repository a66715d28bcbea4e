package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Query the pulse daemon for its overall status.

Shows: version, uptime, number of components and active taps, and the
subscription queries the daemon accepts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd.Context(), newClient(), cmd.OutOrStdout())
	},
}

func runStatus(ctx context.Context, client Client, out io.Writer) error {
	status, err := client.DaemonStatus(ctx)
	if err != nil {
		return fmt.Errorf("daemon is not running or socket is inaccessible: %w", err)
	}

	fmt.Fprintf(out, "Version:    %s\n", status.Version)
	fmt.Fprintf(out, "Uptime:     %s\n", time.Duration(status.UptimeSec)*time.Second)
	fmt.Fprintf(out, "Components: %d\n", status.Components)
	fmt.Fprintf(out, "Taps:       %d\n", status.Taps)
	fmt.Fprintf(out, "Queries:    %s\n", strings.Join(status.Queries, ", "))
	return nil
}
