package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "List running components",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runComponents(cmd.Context(), newClient(), cmd.OutOrStdout())
	},
}

func runComponents(ctx context.Context, client Client, out io.Writer) error {
	list, err := client.ComponentsList(ctx)
	if err != nil {
		return fmt.Errorf("failed to list components: %w", err)
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No components running.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tTYPE")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Name, c.Role, c.Type)
	}
	return tw.Flush()
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Print one aggregated reading of every component counter",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSnapshot(cmd.Context(), newClient(), cmd.OutOrStdout())
	},
}

func runSnapshot(ctx context.Context, client Client, out io.Writer) error {
	totals, err := client.MetricsSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to take snapshot: %w", err)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COMPONENT\tMETRIC\tVALUE")
	for _, t := range totals {
		fmt.Fprintf(tw, "%s\t%s\t%g\n", t.Component, t.Name, t.Value)
	}
	return tw.Flush()
}
