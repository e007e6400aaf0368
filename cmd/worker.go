package cmd

import (
	"github.com/ethpandaops/mirror/pkg/engine"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	workerWithScheduler bool
	workerWithAPI       bool
)

//nolint:gochecknoglobals // Cobra commands are typically global
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the mirror worker service",
	Long: `The worker consumes ingestion tasks from one queue per dataset and runs them,
holding a per-dataset lock so runs of the same dataset never overlap.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRoles(cmd, engine.Roles{
			Worker:    true,
			Scheduler: workerWithScheduler,
			API:       workerWithAPI,
		})
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().BoolVar(&workerWithScheduler, "with-scheduler", false, "also run the scheduler in this process")
	workerCmd.Flags().BoolVar(&workerWithAPI, "with-api", false, "also serve the HTTP API in this process")
}
