// Package tasks defines the ingest task carried by the asynq queue and the
// handler that turns it into a pipeline run
package tasks

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TypeIngest is the task type for a dataset ingestion run
	TypeIngest = "mirror:ingest"

	// TriggerSchedule marks tasks enqueued by the cron scheduler
	TriggerSchedule = "schedule"
	// TriggerAPI marks tasks enqueued through the HTTP API
	TriggerAPI = "api"
	// TriggerManual marks tasks enqueued from the command line
	TriggerManual = "manual"

	runDateLayout = "2006-01-02"
)

var (
	// ErrDatasetRequired is returned for a payload without a dataset
	ErrDatasetRequired = errors.New("task payload dataset is required")
	// ErrIntervalEndRequired is returned for a payload without an interval end
	ErrIntervalEndRequired = errors.New("task payload interval_end is required")
)

// IngestPayload represents the payload of an ingestion task
type IngestPayload struct {
	Dataset     string    `json:"dataset"`
	IntervalEnd time.Time `json:"interval_end"`
	Trigger     string    `json:"trigger"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// Validate checks the payload carries what a run needs
func (p IngestPayload) Validate() error {
	if p.Dataset == "" {
		return ErrDatasetRequired
	}

	if p.IntervalEnd.IsZero() {
		return ErrIntervalEndRequired
	}

	return nil
}

// RunDate returns the UTC calendar date the run covers
func (p IngestPayload) RunDate() string {
	return p.IntervalEnd.UTC().Format(runDateLayout)
}

// UniqueID returns the task ID. One task per dataset and run date can be
// queued or running at a time.
func (p IngestPayload) UniqueID() string {
	return fmt.Sprintf("%s:%s", p.Dataset, p.RunDate())
}

// QueueName returns the dataset's queue
func (p IngestPayload) QueueName() string {
	return p.Dataset
}

// NewIngestTask encodes the payload into an asynq task
func NewIngestTask(p IngestPayload) (*asynq.Task, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return asynq.NewTask(TypeIngest, data), nil
}

// ParseIngestPayload decodes and validates the payload of an ingestion task
func ParseIngestPayload(t *asynq.Task) (IngestPayload, error) {
	var p IngestPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if err := p.Validate(); err != nil {
		return p, err
	}

	return p, nil
}
