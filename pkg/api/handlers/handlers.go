// Package handlers implements the mirror HTTP API
package handlers

import (
	"context"
	"time"

	"github.com/ethpandaops/mirror/pkg/pipeline"
	"github.com/ethpandaops/mirror/pkg/tasks"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// DatasetReader exposes the configured datasets
type DatasetReader interface {
	Datasets() []pipeline.Dataset
	Dataset(name string) (pipeline.Dataset, bool)
}

// RunQueue enqueues ingestion runs
type RunQueue interface {
	Enqueue(ctx context.Context, payload tasks.IngestPayload, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Requeue(ctx context.Context, payload tasks.IngestPayload, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ScheduleReader reports when a dataset was last scheduled
type ScheduleReader interface {
	LastScheduled(ctx context.Context, dataset string) (time.Time, error)
}

// Server holds the request handlers
type Server struct {
	datasets DatasetReader
	queue    RunQueue
	schedule ScheduleReader
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewServer creates a new API server instance. schedule may be nil.
func NewServer(datasets DatasetReader, queue RunQueue, schedule ScheduleReader, log logrus.FieldLogger) *Server {
	return &Server{
		datasets: datasets,
		queue:    queue,
		schedule: schedule,
		log:      log.WithField("component", "api.handlers"),
		now:      time.Now,
	}
}
