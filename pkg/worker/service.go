// Package worker consumes ingestion tasks and runs the pipeline for them
package worker

import (
	"context"
	"fmt"
	"slices"
	"sync"

	r "github.com/ethpandaops/mirror/pkg/redis"
	"github.com/ethpandaops/mirror/pkg/runlock"
	"github.com/ethpandaops/mirror/pkg/tasks"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const queuePriority = 10

// Service defines the public interface for the worker service
type Service interface {
	// Start initializes and starts the worker service
	Start(ctx context.Context) error

	// Stop gracefully shuts down the worker service
	Stop() error
}

// service encapsulates the worker application logic
type service struct {
	config *Config
	log    logrus.FieldLogger

	wg sync.WaitGroup

	runs     tasks.RunService
	datasets []string
	redisOpt *redis.Options
	locker   *runlock.Locker

	server *asynq.Server
}

// NewService creates a new worker service. datasets are the configured
// dataset names; locker may be nil.
func NewService(
	log logrus.FieldLogger,
	cfg *Config,
	runs tasks.RunService,
	datasets []string,
	redisOpt *redis.Options,
	locker *runlock.Locker,
) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	consumed, err := filterDatasets(datasets, cfg.Datasets)
	if err != nil {
		return nil, err
	}

	return &service{
		log:      log.WithField("service", "worker"),
		config:   cfg,
		runs:     runs,
		datasets: consumed,
		redisOpt: redisOpt,
		locker:   locker,
	}, nil
}

// Start initializes and starts the worker service
func (s *service) Start(_ context.Context) error {
	handler := tasks.NewTaskHandler(s.log, s.runs, s.locker, tasks.HandlerConfig{
		KeepScratch: s.config.KeepScratch,
	})

	queues := buildQueues(s.datasets)

	s.log.WithFields(logrus.Fields{
		"datasets":    len(s.datasets),
		"concurrency": s.config.Concurrency,
	}).Info("Starting worker service")

	srv := asynq.NewServer(r.NewAsynqRedisOptions(s.redisOpt), asynq.Config{
		Concurrency:     s.config.Concurrency,
		Queues:          queues,
		ShutdownTimeout: s.config.ShutdownTimeout,
		Logger:          newAsynqLogger(s.log),
	})

	mux := asynq.NewServeMux()
	for taskType, handlerFunc := range handler.Routes() {
		mux.HandleFunc(taskType, handlerFunc)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		if runErr := srv.Run(mux); runErr != nil {
			s.log.WithError(runErr).Error("Worker server stopped with error")
		}
	}()

	s.server = srv

	s.log.Info("Worker service started successfully")

	return nil
}

// Stop gracefully shuts down the worker service
func (s *service) Stop() error {
	if s.server != nil {
		s.server.Shutdown()
	}

	s.wg.Wait()

	s.log.Info("Worker service stopped successfully")

	return nil
}

// buildQueues gives every dataset its own queue with equal priority
func buildQueues(datasets []string) map[string]int {
	queues := make(map[string]int, len(datasets))
	for _, ds := range datasets {
		queues[ds] = queuePriority
	}

	return queues
}

func filterDatasets(datasets, filter []string) ([]string, error) {
	if len(filter) == 0 {
		return datasets, nil
	}

	for _, name := range filter {
		if !slices.Contains(datasets, name) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, name)
		}
	}

	consumed := make([]string, 0, len(filter))
	for _, ds := range datasets {
		if slices.Contains(filter, ds) {
			consumed = append(consumed, ds)
		}
	}

	return consumed, nil
}

// Ensure service implements the interface
var _ Service = (*service)(nil)
