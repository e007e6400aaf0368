package cmd

import (
	"github.com/ethpandaops/mirror/pkg/engine"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Start the mirror scheduler",
	Long: `The scheduler enqueues a run for every dataset with a schedule when its cron
expression fires. With leader election enabled only one instance enqueues.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runRoles(cmd, engine.Roles{Scheduler: true})
	},
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}
