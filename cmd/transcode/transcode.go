// Package transcode implements the batch transcode commands.
package transcode

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sotarylen/mediapress/cmd/common"
)

// Command returns the transcode command group.
func Command(buildDeps func() (*common.Deps, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcode",
		Short: "Batch-transcode stored assets and rewrite their references",
	}

	cmd.AddCommand(scanCommand(buildDeps))
	cmd.AddCommand(runCommand(buildDeps))
	cmd.AddCommand(statusCommand(buildDeps))

	return cmd
}

// scanCommand enumerates transcode candidates.
func scanCommand(buildDeps func() (*common.Deps, error)) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List assets eligible for transcoding",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			result, err := deps.Engine.ScanCandidates(cmd.Context(), limit)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"ID", "Mime", "Size", "Public URL"})
			for _, c := range result.Preview {
				t.AppendRow(table.Row{c.ID, c.MimeType, c.SizeBytes, c.PublicURL})
			}
			t.Render()

			fmt.Fprintf(cmd.OutOrStdout(), "%d candidates total, %d shown\n", result.Total, len(result.Preview))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum candidates to show (0 = configured scan limit)")
	return cmd
}

// runCommand converts all scanned candidates in chunks.
func runCommand(buildDeps func() (*common.Deps, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "run [asset-id...]",
		Short: "Run a transcode batch over the given assets, or all candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, parseErr := strconv.ParseInt(arg, 10, 64)
				if parseErr != nil || id <= 0 {
					return fmt.Errorf("invalid asset id %q", arg)
				}
				ids = append(ids, id)
			}

			if len(ids) == 0 {
				scan, scanErr := deps.Engine.ScanCandidates(cmd.Context(), 0)
				if scanErr != nil {
					return scanErr
				}
				for _, c := range scan.Preview {
					ids = append(ids, c.ID)
				}
			}

			result, err := deps.Engine.Run(cmd.Context(), ids)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Asset ID", "Status", "Docs Updated", "Detail"})
			for _, item := range result.Items {
				t.AppendRow(table.Row{item.AssetID, string(item.Status), item.DocumentsUpdated, item.Detail})
			}
			t.Render()

			fmt.Fprintf(cmd.OutOrStdout(),
				"run %s: %d converted, %d skipped, %d errors, %d documents updated\n",
				result.Status, result.Stats.Success, result.Stats.Skipped,
				result.Stats.Errors, result.Stats.DocumentsUpdated,
			)
			return nil
		},
	}
}

// statusCommand reports whether a batch run is active.
func statusCommand(buildDeps func() (*common.Deps, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether a transcode batch run is active",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			running, err := deps.Engine.IsRunning(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "batch running: %v\n", running)
			return nil
		},
	}
}
