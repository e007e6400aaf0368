package cmd

import (
	"encoding/json"
	"os"
	"time"

	"github.com/ethpandaops/mirror/pkg/engine"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra flags are typically global
var (
	runDataset     string
	runDate        string
	runKeepScratch bool
)

//nolint:gochecknoglobals // Cobra commands are typically global
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one dataset synchronously and print the run report",
	Long: `Run executes acquisition, staging, schema reconciliation, load and the
optional data check and transform for one dataset in this process, bypassing
the queue.

Examples:
  # Load today's file
  mirror run --dataset sales

  # Load the file for a past run date
  mirror run --dataset sales --date 2024-05-01`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDataset, "dataset", "", "dataset to run")
	runCmd.Flags().StringVar(&runDate, "date", "", "run date (YYYY-MM-DD) or interval end (RFC3339), defaults to now")
	runCmd.Flags().BoolVar(&runKeepScratch, "keep-scratch", false, "keep the downloaded files")

	_ = runCmd.MarkFlagRequired("dataset")
}

func runRun(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	intervalEnd, err := parseIntervalEnd(runDate, time.Now())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	p, err := engine.NewPipeline(ctx, logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := p.Close(); closeErr != nil {
			logger.WithError(closeErr).Error("Failed to close warehouse client")
		}
	}()

	rc, err := p.NewRunContext(runDataset, intervalEnd)
	if err != nil {
		return err
	}

	report, runErr := p.Run(ctx, rc)

	if report != nil {
		if report.ScratchDir != "" && !runKeepScratch {
			if err := os.RemoveAll(report.ScratchDir); err != nil {
				logger.WithError(err).Warn("Failed to remove scratch directory")
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(report); err != nil {
			logger.WithError(err).Warn("Failed to print run report")
		}

		logger.WithFields(logrus.Fields{
			"dataset":  report.Dataset,
			"run_date": report.RunDate,
			"status":   report.Status,
			"duration": report.Duration(),
		}).Info("Run finished")
	}

	return runErr
}
