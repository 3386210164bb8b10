// Package ingest implements the single-document ingestion command.
package ingest

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/sotarylen/mediapress/cmd/common"
)

// Command returns the ingest command.
func Command(buildDeps func() (*common.Deps, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <document-id>",
		Short: "Localize external images referenced by one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid document id %q", args[0])
			}

			deps, err := buildDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			result, err := deps.Pipeline.Ingest(cmd.Context(), id)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"URL", "Status", "Asset ID", "Detail"})
			for _, ref := range result.Refs {
				assetID := ""
				if ref.AssetID > 0 {
					assetID = strconv.FormatInt(ref.AssetID, 10)
				}
				t.AppendRow(table.Row{ref.URL, string(ref.Status), assetID, ref.Detail})
			}
			t.Render()

			fmt.Fprintf(cmd.OutOrStdout(), "document %d modified: %v\n", id, result.Modified)
			return nil
		},
	}
}
