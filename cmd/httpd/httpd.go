// Package httpd implements the HTTP server command.
package httpd

import (
	"github.com/spf13/cobra"

	"github.com/sotarylen/mediapress/cmd/common"
	"github.com/sotarylen/mediapress/internal/api"
)

// Command returns the httpd command.
func Command(buildDeps func() (*common.Deps, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Serve the ingestion and transcode HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			server := api.NewServer(
				deps.Config.Server,
				deps.Pipeline,
				deps.Engine,
				deps.Logger.WithComponent("api"),
			)

			return server.Start(cmd.Context())
		},
	}
}
