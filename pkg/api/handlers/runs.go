package handlers

import (
	"errors"
	"time"

	"github.com/ethpandaops/mirror/pkg/tasks"
	"github.com/gofiber/fiber/v3"
	"github.com/hibiken/asynq"
)

// RunRequest is the body of POST /api/v1/runs
type RunRequest struct {
	Dataset string `json:"dataset"`
	// IntervalEnd defaults to now
	IntervalEnd *time.Time `json:"interval_end,omitempty"`
	// Requeue replaces a finished task for the same run date
	Requeue bool `json:"requeue,omitempty"`
}

// RunResponse describes an enqueued run
type RunResponse struct {
	TaskID  string `json:"task_id"`
	Queue   string `json:"queue"`
	Dataset string `json:"dataset"`
	RunDate string `json:"run_date"`
	State   string `json:"state"`
}

// CreateRun handles POST /api/v1/runs
func (s *Server) CreateRun(c fiber.Ctx) error {
	var req RunRequest
	if err := c.Bind().JSON(&req); err != nil || req.Dataset == "" {
		return ErrInvalidRunRequest
	}

	if _, ok := s.datasets.Dataset(req.Dataset); !ok {
		return ErrDatasetNotFound
	}

	payload := tasks.IngestPayload{
		Dataset:     req.Dataset,
		IntervalEnd: s.now().UTC(),
		Trigger:     tasks.TriggerAPI,
	}

	if req.IntervalEnd != nil {
		payload.IntervalEnd = req.IntervalEnd.UTC()
	}

	var (
		info *asynq.TaskInfo
		err  error
	)

	if req.Requeue {
		info, err = s.queue.Requeue(c.Context(), payload)
	} else {
		info, err = s.queue.Enqueue(c.Context(), payload)
	}

	if err != nil {
		if errors.Is(err, tasks.ErrAlreadyQueued) || errors.Is(err, tasks.ErrTaskActive) {
			return ErrRunConflict
		}

		s.log.WithError(err).WithField("dataset", req.Dataset).Error("Failed to enqueue run")

		return fiber.NewError(fiber.StatusInternalServerError, "failed to enqueue run")
	}

	return c.Status(fiber.StatusAccepted).JSON(RunResponse{
		TaskID:  info.ID,
		Queue:   payload.QueueName(),
		Dataset: payload.Dataset,
		RunDate: payload.RunDate(),
		State:   info.State.String(),
	})
}
