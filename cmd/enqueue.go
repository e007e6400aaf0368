package cmd

import (
	"fmt"
	"slices"
	"time"

	"github.com/ethpandaops/mirror/pkg/engine"
	"github.com/ethpandaops/mirror/pkg/tasks"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	enqueueDataset string
	enqueueDate    string
	enqueueRequeue bool
)

//nolint:gochecknoglobals // Cobra commands are typically global
var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a run for a worker to pick up",
	Long: `Enqueue adds an ingestion task for a dataset and run date to the queue.
Only one task per dataset and run date can exist; use --requeue to replace a
completed or failed one.

Examples:
  mirror enqueue --dataset sales --date 2024-05-01
  mirror enqueue --dataset sales --date 2024-05-01 --requeue`,
	RunE: runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)

	enqueueCmd.Flags().StringVar(&enqueueDataset, "dataset", "", "dataset to run")
	enqueueCmd.Flags().StringVar(&enqueueDate, "date", "", "run date (YYYY-MM-DD) or interval end (RFC3339), defaults to now")
	enqueueCmd.Flags().BoolVar(&enqueueRequeue, "requeue", false, "replace a completed or archived task for the same run date")

	_ = enqueueCmd.MarkFlagRequired("dataset")
}

func runEnqueue(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if !slices.Contains(cfg.DatasetNames(), enqueueDataset) {
		return fmt.Errorf("dataset %q is not configured", enqueueDataset)
	}

	intervalEnd, err := parseIntervalEnd(enqueueDate, time.Now())
	if err != nil {
		return err
	}

	queue, err := engine.NewQueue(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := queue.Close(); closeErr != nil {
			logger.WithError(closeErr).Error("Failed to close task queue")
		}
	}()

	payload := tasks.IngestPayload{
		Dataset:     enqueueDataset,
		IntervalEnd: intervalEnd,
		Trigger:     tasks.TriggerManual,
	}

	var info *asynq.TaskInfo

	if enqueueRequeue {
		info, err = queue.Requeue(cmd.Context(), payload)
	} else {
		info, err = queue.Enqueue(cmd.Context(), payload)
	}

	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"task_id":  info.ID,
		"queue":    info.Queue,
		"run_date": payload.RunDate(),
	}).Info("Run enqueued")

	return nil
}
