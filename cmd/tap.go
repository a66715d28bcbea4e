package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/pulse/internal/tap"
)

var (
	tapCount int
	tapQuiet bool
)

var tapCmd = &cobra.Command{
	Use:   "tap <component>...",
	Short: "Watch the events leaving components",
	Long: `Attach a tap to one or more components and print every log event they
emit as a JSON line. Lines starting with '#' report whether a requested
component was found; a component added later by a reload is matched then.

Examples:
  pulse tap in
  pulse tap parse enrich -n 100`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTap(cmd.Context(), newClient(), cmd.OutOrStdout(), args, tapCount, tapQuiet)
	},
}

func init() {
	tapCmd.Flags().IntVarP(&tapCount, "count", "n", 0,
		"stop after this many events (0 = until interrupted)")
	tapCmd.Flags().BoolVarP(&tapQuiet, "quiet", "q", false,
		"do not print match notifications")
}

func runTap(ctx context.Context, client Client, out io.Writer, inputs []string, count int, quiet bool) error {
	seen := 0
	err := client.Tap(ctx, inputs, func(r tap.Result) error {
		if r.IsNotification() {
			if !quiet {
				fmt.Fprintf(out, "# %s: %s\n", r.Notification.InputName, r.Notification.Kind)
			}
			return nil
		}
		if r.Event == nil {
			return nil
		}

		line, err := json.Marshal(struct {
			Component string         `json:"component"`
			Fields    map[string]any `json:"fields"`
		}{r.InputName, r.Event.Fields})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(line))

		seen++
		if count > 0 && seen >= count {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return fmt.Errorf("tap failed: %w", err)
	}
	return nil
}
