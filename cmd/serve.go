package cmd

import (
	"github.com/ethpandaops/mirror/pkg/engine"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the mirror HTTP API",
	Long:  `Serve lists the configured datasets and accepts run requests over HTTP.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRoles(cmd, engine.Roles{API: true})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
