// Package cmd implements the command-line interface for mediapress.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sotarylen/mediapress/cmd/common"
	"github.com/sotarylen/mediapress/cmd/failures"
	"github.com/sotarylen/mediapress/cmd/httpd"
	"github.com/sotarylen/mediapress/cmd/ingest"
	"github.com/sotarylen/mediapress/cmd/transcode"
	"github.com/sotarylen/mediapress/internal/database"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "mediapress",
		Short: "External image ingestion and transcoding for content documents",
		Long: `mediapress localizes externally hosted images referenced in content
documents into the local asset store, and batch-transcodes stored
assets to a more efficient encoding, rewriting references corpus-wide.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"config file (default is ./config.yaml or ./config/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	buildDeps := func() (*common.Deps, error) { return common.Build(cfgFile, debug) }

	rootCmd.AddCommand(ingest.Command(buildDeps))
	rootCmd.AddCommand(transcode.Command(buildDeps))
	rootCmd.AddCommand(failures.Command(buildDeps))
	rootCmd.AddCommand(httpd.Command(buildDeps))
	rootCmd.AddCommand(migrateCommand(buildDeps))

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mediapress version %s\n", "1.0.0")
		},
	})
}

// migrateCommand applies the database schema.
func migrateCommand(buildDeps func() (*common.Deps, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildDeps()
			if err != nil {
				return err
			}
			defer deps.Close()

			if err := database.Migrate(cmd.Context(), deps.DB); err != nil {
				return err
			}
			deps.Logger.Info("schema applied")
			return nil
		},
	}
}
