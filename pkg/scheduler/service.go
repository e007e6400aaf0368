package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethpandaops/mirror/pkg/observability"
	"github.com/ethpandaops/mirror/pkg/tasks"
	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Service defines the public interface for the scheduler
type Service interface {
	// Start registers every job and starts the cron loop
	Start(ctx context.Context) error

	// Stop waits for in-flight enqueues and shuts the scheduler down
	Stop() error
}

// Enqueuer is the part of the queue the scheduler needs
type Enqueuer interface {
	Enqueue(ctx context.Context, payload tasks.IngestPayload, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Job schedules one dataset
type Job struct {
	Dataset  string
	Schedule string
}

type service struct {
	log logrus.FieldLogger
	cfg *Config

	jobs     []Job
	queue    Enqueuer
	elector  LeaderElector
	tracker  Tracker
	location *time.Location

	cron *cron.Cron
	ctx  context.Context //nolint:containedctx // cron callbacks run outside any request
	stop context.CancelFunc
	mu   sync.Mutex
	now  func() time.Time
}

// NewService creates a scheduler. Jobs without a schedule are ignored;
// elector and tracker may be nil.
func NewService(
	log logrus.FieldLogger,
	cfg *Config,
	queue Enqueuer,
	jobs []Job,
	elector LeaderElector,
	tracker Tracker,
) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := cfg.location()
	if err != nil {
		return nil, err
	}

	scheduled := make([]Job, 0, len(jobs))

	for _, job := range jobs {
		if job.Schedule == "" {
			continue
		}

		if _, err := ParseSchedule(job.Schedule); err != nil {
			return nil, fmt.Errorf("dataset %s: %w", job.Dataset, err)
		}

		scheduled = append(scheduled, job)
	}

	return &service{
		log:      log.WithField("service", "scheduler"),
		cfg:      cfg,
		jobs:     scheduled,
		queue:    queue,
		elector:  elector,
		tracker:  tracker,
		location: loc,
		now:      time.Now,
	}, nil
}

func (s *service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx, s.stop = context.WithCancel(ctx)

	if s.elector != nil {
		if err := s.elector.Start(s.ctx); err != nil {
			return fmt.Errorf("failed to start leader election: %w", err)
		}
	}

	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	for _, job := range s.jobs {
		if _, err := s.cron.AddFunc(job.Schedule, func() { s.fire(s.ctx, job) }); err != nil {
			return fmt.Errorf("failed to register %s: %w", job.Dataset, err)
		}

		s.log.WithFields(logrus.Fields{
			"dataset":  job.Dataset,
			"schedule": job.Schedule,
		}).Info("Registered dataset schedule")
	}

	s.cron.Start()

	s.log.WithField("jobs", len(s.jobs)).Info("Scheduler started")

	return nil
}

func (s *service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	if s.stop != nil {
		s.stop()
	}

	if s.elector != nil {
		if err := s.elector.Stop(); err != nil {
			s.log.WithError(err).Warn("Failed to stop leader election")
		}
	}

	s.log.Info("Scheduler stopped")

	return nil
}

// fire enqueues a run whose interval ends at the current minute
func (s *service) fire(ctx context.Context, job Job) {
	log := s.log.WithField("dataset", job.Dataset)

	if s.elector != nil && !s.elector.IsLeader() {
		log.Debug("Not the leader, skipping schedule")
		return
	}

	intervalEnd := s.now().UTC().Truncate(time.Minute)

	info, err := s.queue.Enqueue(ctx, tasks.IngestPayload{
		Dataset:     job.Dataset,
		IntervalEnd: intervalEnd,
		Trigger:     tasks.TriggerSchedule,
	})
	if err != nil {
		if errors.Is(err, tasks.ErrAlreadyQueued) {
			log.WithError(err).Debug("Run already queued")
			return
		}

		observability.RecordError("scheduler", "enqueue_error")
		log.WithError(err).Error("Failed to enqueue scheduled run")

		return
	}

	log.WithFields(logrus.Fields{
		"task_id":      info.ID,
		"interval_end": intervalEnd,
	}).Info("Enqueued scheduled run")

	if s.tracker != nil {
		if err := s.tracker.SetLastScheduled(ctx, job.Dataset, intervalEnd); err != nil {
			log.WithError(err).Warn("Failed to record schedule")
		}
	}
}

// Verify interface compliance at compile time
var _ Service = (*service)(nil)
