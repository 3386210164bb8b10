// Package failures implements operator commands for the failure ledger.
package failures

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sotarylen/mediapress/cmd/common"
)

// defaultListLimit caps ledger listings.
const defaultListLimit = 100

// Command returns the failures command group.
func Command(buildDeps func() (*common.Deps, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "Inspect and clear the failure ledger",
	}

	cmd.AddCommand(listCommand(buildDeps))
	cmd.AddCommand(clearCommand(buildDeps))

	return cmd
}

// listCommand prints ledger entries, most recent first.
func listCommand(buildDeps func() (*common.Deps, error)) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List failure ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			entries, err := deps.Failures.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"URL", "First Failed"})
			for _, e := range entries {
				t.AppendRow(table.Row{e.URL, e.FirstFailedAt.Format(time.RFC3339)})
			}
			t.Render()

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", defaultListLimit, "maximum entries to show")
	return cmd
}

// clearCommand removes one entry, or the whole ledger.
func clearCommand(buildDeps func() (*common.Deps, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [url]",
		Short: "Clear one ledger entry, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			if len(args) == 1 {
				if err := deps.Failures.ClearURL(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
				return nil
			}

			if err := deps.Failures.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "failure ledger cleared")
			return nil
		},
	}
}
