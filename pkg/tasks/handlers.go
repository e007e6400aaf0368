package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ethpandaops/mirror/pkg/observability"
	"github.com/ethpandaops/mirror/pkg/pipeline"
	"github.com/ethpandaops/mirror/pkg/runlock"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// RunService builds and executes pipeline runs
type RunService interface {
	NewRunContext(dataset string, intervalEnd time.Time) (pipeline.RunContext, error)
	Run(ctx context.Context, rc pipeline.RunContext) (*pipeline.Report, error)
}

// HandlerConfig controls task handling
type HandlerConfig struct {
	// WorkerID labels run metrics; defaults to the hostname
	WorkerID string
	// KeepScratch leaves each run's scratch directory in place
	KeepScratch bool
}

// TaskHandler turns ingestion tasks into pipeline runs
type TaskHandler struct {
	log    logrus.FieldLogger
	runs   RunService
	locker *runlock.Locker
	cfg    HandlerConfig
}

// NewTaskHandler creates a new task handler. A nil locker disables the per
// dataset run lock.
func NewTaskHandler(log logrus.FieldLogger, runs RunService, locker *runlock.Locker, cfg HandlerConfig) *TaskHandler {
	if cfg.WorkerID == "" {
		cfg.WorkerID = workerID()
	}

	return &TaskHandler{
		log:    log.WithField("component", "task-handler"),
		runs:   runs,
		locker: locker,
		cfg:    cfg,
	}
}

// HandleIngest handles ingestion tasks. Payload and dataset errors are not
// retried; a busy dataset is retried by asynq.
func (h *TaskHandler) HandleIngest(ctx context.Context, t *asynq.Task) error {
	payload, err := ParseIngestPayload(t)
	if err != nil {
		observability.RecordError("task-handler", "invalid_payload")
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	log := h.log.WithFields(logrus.Fields{
		"dataset":  payload.Dataset,
		"run_date": payload.RunDate(),
		"trigger":  payload.Trigger,
	})

	rc, err := h.runs.NewRunContext(payload.Dataset, payload.IntervalEnd)
	if err != nil {
		observability.RecordError("task-handler", "unknown_dataset")
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	if h.locker != nil {
		lock, err := h.locker.Acquire(ctx, payload.Dataset)
		if err != nil {
			log.WithError(err).Warn("Dataset is busy, task will be retried")
			return err
		}

		stopRefresh := lock.KeepAlive(ctx)

		defer func() {
			stopRefresh()

			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.WithError(err).Warn("Failed to release run lock")
			}
		}()
	}

	log.WithField("run_id", rc.RunID).Info("Starting ingestion task")

	start := time.Now()
	observability.RecordRunStart(payload.Dataset, h.cfg.WorkerID)

	report, runErr := h.runs.Run(ctx, rc)

	status := pipeline.StatusFailed
	if runErr == nil && report != nil {
		status = report.Status
	}

	observability.RecordRunComplete(payload.Dataset, h.cfg.WorkerID, status, time.Since(start).Seconds())

	if status == pipeline.StatusSuccess {
		observability.RecordLastSuccess(payload.Dataset, time.Now())
	}

	h.cleanup(log, report)

	if runErr != nil {
		if errors.Is(runErr, pipeline.ErrUnknownDataset) {
			return fmt.Errorf("%w: %w", runErr, asynq.SkipRetry)
		}

		return runErr
	}

	log.WithFields(logrus.Fields{
		"run_id":   rc.RunID,
		"status":   status,
		"duration": time.Since(start),
	}).Info("Ingestion task completed")

	return nil
}

func (h *TaskHandler) cleanup(log logrus.FieldLogger, report *pipeline.Report) {
	if report == nil || report.ScratchDir == "" || h.cfg.KeepScratch {
		return
	}

	if err := os.RemoveAll(report.ScratchDir); err != nil {
		log.WithError(err).WithField("dir", report.ScratchDir).Warn("Failed to remove scratch directory")
	}
}

// Routes returns the task handler routes for Asynq
func (h *TaskHandler) Routes() map[string]asynq.HandlerFunc {
	return map[string]asynq.HandlerFunc{
		TypeIngest: h.HandleIngest,
	}
}

func workerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "worker-unknown"
	}

	return hostname
}
