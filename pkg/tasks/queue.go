package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/mirror/pkg/observability"
	"github.com/hibiken/asynq"
)

var (
	// ErrAlreadyQueued is returned when the dataset and run date already has a task
	ErrAlreadyQueued = errors.New("task already queued for dataset and run date")
	// ErrTaskActive is returned when a requeue targets a task that is still running
	ErrTaskActive = errors.New("task is still pending or running")
)

// QueueConfig configures how ingestion tasks are enqueued
type QueueConfig struct {
	MaxRetry int           `yaml:"maxRetry" default:"3"`
	Timeout  time.Duration `yaml:"timeout" default:"2h"`
	// Retention keeps completed tasks so the same run date is not ingested twice
	Retention time.Duration `yaml:"retention" default:"24h"`
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type inspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
	Close() error
}

// QueueManager manages task queuing
type QueueManager struct {
	cfg       QueueConfig
	client    enqueuer
	inspector inspector
}

// NewQueueManager creates a new queue manager
func NewQueueManager(redisOpt asynq.RedisClientOpt, cfg *QueueConfig) *QueueManager {
	return &QueueManager{
		cfg:       *cfg,
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
	}
}

// Enqueue enqueues an ingestion task on the dataset's queue
func (q *QueueManager) Enqueue(ctx context.Context, payload IngestPayload, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if payload.EnqueuedAt.IsZero() {
		payload.EnqueuedAt = time.Now().UTC()
	}

	task, err := NewIngestTask(payload)
	if err != nil {
		return nil, err
	}

	allOpts := []asynq.Option{
		asynq.TaskID(payload.UniqueID()),
		asynq.Queue(payload.QueueName()),
		asynq.MaxRetry(q.cfg.MaxRetry),
	}

	if q.cfg.Timeout > 0 {
		allOpts = append(allOpts, asynq.Timeout(q.cfg.Timeout))
	}

	if q.cfg.Retention > 0 {
		allOpts = append(allOpts, asynq.Retention(q.cfg.Retention))
	}

	allOpts = append(allOpts, opts...)

	info, err := q.client.EnqueueContext(ctx, task, allOpts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyQueued, payload.UniqueID())
		}

		observability.RecordError("queue", "enqueue_error")

		return nil, fmt.Errorf("failed to enqueue %s: %w", payload.UniqueID(), err)
	}

	observability.RecordTaskEnqueued(payload.Dataset, payload.Trigger)

	return info, nil
}

// Requeue removes a finished task for the same dataset and run date, then
// enqueues a fresh one. A pending or running task is left alone.
func (q *QueueManager) Requeue(ctx context.Context, payload IngestPayload, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := q.taskInfo(payload)
	if err != nil {
		return nil, err
	}

	if info != nil {
		switch info.State {
		case asynq.TaskStateCompleted, asynq.TaskStateArchived:
			if err := q.inspector.DeleteTask(payload.QueueName(), payload.UniqueID()); err != nil {
				return nil, fmt.Errorf("failed to delete finished task %s: %w", payload.UniqueID(), err)
			}
		default:
			return nil, fmt.Errorf("%w: %s is %s", ErrTaskActive, payload.UniqueID(), info.State)
		}
	}

	return q.Enqueue(ctx, payload, opts...)
}

// IsTaskPendingOrRunning checks if a task is pending or running
func (q *QueueManager) IsTaskPendingOrRunning(payload IngestPayload) (bool, error) {
	info, err := q.taskInfo(payload)
	if err != nil || info == nil {
		return false, err
	}

	return info.State == asynq.TaskStatePending ||
		info.State == asynq.TaskStateActive ||
		info.State == asynq.TaskStateScheduled ||
		info.State == asynq.TaskStateRetry, nil
}

func (q *QueueManager) taskInfo(payload IngestPayload) (*asynq.TaskInfo, error) {
	info, err := q.inspector.GetTaskInfo(payload.QueueName(), payload.UniqueID())
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return info, nil
}

// Close closes the queue manager
func (q *QueueManager) Close() error {
	return errors.Join(q.client.Close(), q.inspector.Close())
}
