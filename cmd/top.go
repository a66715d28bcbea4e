package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var (
	topQuery    string
	topInterval int
	topCount    int
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Stream a live metric subscription",
	Long: `Subscribe to a metric query and print one JSON line per reading
until interrupted.

Examples:
  pulse top                                         # per-component event totals
  pulse top -q events_processed_throughput -i 500   # global events/interval
  pulse top -q component_bytes_processed_throughputs -n 10`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTop(cmd.Context(), newClient(), cmd.OutOrStdout(), topQuery, topInterval, topCount)
	},
}

func init() {
	topCmd.Flags().StringVarP(&topQuery, "query", "q", "component_events_processed_totals",
		"subscription to stream")
	topCmd.Flags().IntVarP(&topInterval, "interval", "i", 0,
		"sampling interval in milliseconds (default: api.default_interval)")
	topCmd.Flags().IntVarP(&topCount, "count", "n", 0,
		"stop after this many readings (0 = until interrupted)")
}

func runTop(ctx context.Context, client Client, out io.Writer, query string, interval, count int) error {
	seen := 0
	err := client.Subscribe(ctx, query, interval, func(raw json.RawMessage) error {
		if _, err := fmt.Fprintln(out, string(raw)); err != nil {
			return err
		}
		seen++
		if count > 0 && seen >= count {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return fmt.Errorf("subscription %s failed: %w", query, err)
	}
	return nil
}
