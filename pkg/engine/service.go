package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // pprof is intentionally exposed when pprofAddr is configured
	"time"

	"github.com/ethpandaops/mirror/pkg/api"
	"github.com/ethpandaops/mirror/pkg/api/handlers"
	"github.com/ethpandaops/mirror/pkg/datasetconfig"
	"github.com/ethpandaops/mirror/pkg/objectstore"
	"github.com/ethpandaops/mirror/pkg/observability"
	"github.com/ethpandaops/mirror/pkg/pipeline"
	mirrorredis "github.com/ethpandaops/mirror/pkg/redis"
	"github.com/ethpandaops/mirror/pkg/runlock"
	"github.com/ethpandaops/mirror/pkg/scheduler"
	"github.com/ethpandaops/mirror/pkg/tasks"
	"github.com/ethpandaops/mirror/pkg/transform"
	"github.com/ethpandaops/mirror/pkg/warehouse"
	"github.com/ethpandaops/mirror/pkg/worker"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoRoles is returned when a service is started without any role
	ErrNoRoles = errors.New("at least one of worker, scheduler or api must be enabled")
)

// Roles selects which long running services a process hosts
type Roles struct {
	Worker    bool
	Scheduler bool
	API       bool
}

// Pipeline is a pipeline service with its live connections
type Pipeline struct {
	*pipeline.Service

	warehouse warehouse.ClientInterface
}

// Close releases the warehouse connection pool
func (p *Pipeline) Close() error {
	if p.warehouse == nil {
		return nil
	}

	return p.warehouse.Stop()
}

// NewPipeline connects to the object store and the warehouse and builds the
// pipeline service for the configured datasets
func NewPipeline(ctx context.Context, log logrus.FieldLogger, cfg *Config) (*Pipeline, error) {
	store, err := objectstore.NewS3Store(ctx, &cfg.ObjectStore, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}

	configs, err := datasetconfig.NewSource(log, &cfg.ConfigSource, store)
	if err != nil {
		return nil, fmt.Errorf("failed to create config source: %w", err)
	}

	wh, err := warehouse.NewClient(log, &cfg.Warehouse)
	if err != nil {
		return nil, fmt.Errorf("failed to create warehouse client: %w", err)
	}

	if err := wh.Start(); err != nil {
		_ = wh.Stop()
		return nil, err
	}

	var transformer transform.Runner = transform.NoopRunner{}
	if cfg.Transform.Enabled {
		transformer = transform.NewExecRunner(log, &cfg.Transform)
	}

	svc, err := pipeline.NewService(log, &pipeline.Config{
		ScratchDir: cfg.ScratchDir,
		Datasets:   cfg.Datasets,
	}, pipeline.Dependencies{
		Store:       store,
		Warehouse:   wh,
		Configs:     configs,
		Transformer: transformer,
	})
	if err != nil {
		_ = wh.Stop()
		return nil, err
	}

	return &Pipeline{Service: svc, warehouse: wh}, nil
}

// NewQueue builds the asynq backed queue manager
func NewQueue(cfg *Config) (*tasks.QueueManager, error) {
	if err := cfg.Redis.Validate(); err != nil {
		return nil, err
	}

	opts, err := cfg.Redis.Options()
	if err != nil {
		return nil, err
	}

	return tasks.NewQueueManager(mirrorredis.NewAsynqRedisOptions(opts), &cfg.Queue), nil
}

// Service hosts the worker, scheduler and API roles
type Service struct {
	config *Config
	roles  Roles
	log    *logrus.Logger

	pipeline  *Pipeline
	queue     *tasks.QueueManager
	scheduler scheduler.Service
	worker    worker.Service
	api       api.Service

	// Servers
	healthServer *http.Server
	pprofServer  *http.Server

	redisOptions *redis.Options
	redisClient  *redis.Client
}

// NewService validates the configuration and creates the services for the
// selected roles. Connections to the object store and the warehouse are only
// opened for the worker role.
func NewService(ctx context.Context, log *logrus.Logger, cfg *Config, roles Roles) (*Service, error) {
	if !roles.Worker && !roles.Scheduler && !roles.API {
		return nil, ErrNoRoles
	}

	if roles.API {
		cfg.API.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.Redis.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	redisOptions, err := cfg.Redis.Options()
	if err != nil {
		return nil, err
	}

	s := &Service{
		config:       cfg,
		roles:        roles,
		log:          log,
		redisOptions: redisOptions,
		redisClient:  redis.NewClient(redisOptions),
		queue:        tasks.NewQueueManager(mirrorredis.NewAsynqRedisOptions(redisOptions), &cfg.Queue),
	}

	tracker := scheduler.NewTracker(s.redisClient, cfg.Redis.Prefix)

	var datasets handlers.DatasetReader

	if roles.Worker {
		p, err := NewPipeline(ctx, log, cfg)
		if err != nil {
			s.closeClients()
			return nil, err
		}

		s.pipeline = p
		datasets = p

		locker := runlock.NewLocker(log, s.redisClient, cfg.Redis.Prefix, cfg.Worker.LockTTL)

		s.worker, err = worker.NewService(log, &cfg.Worker, p, cfg.DatasetNames(), redisOptions, locker)
		if err != nil {
			s.closeClients()
			return nil, fmt.Errorf("failed to create worker service: %w", err)
		}
	} else {
		// Listing datasets needs no connections
		catalog, err := pipeline.NewService(log, &pipeline.Config{Datasets: cfg.Datasets}, pipeline.Dependencies{})
		if err != nil {
			s.closeClients()
			return nil, err
		}

		datasets = catalog
	}

	if roles.Scheduler {
		var elector scheduler.LeaderElector
		if cfg.Scheduler.LeaderElection {
			elector = scheduler.NewLeaderElector(log, s.redisClient, cfg.Redis.Prefix, &cfg.Scheduler)
		}

		s.scheduler, err = scheduler.NewService(log, &cfg.Scheduler, s.queue, cfg.ScheduledJobs(), elector, tracker)
		if err != nil {
			s.closeClients()
			return nil, fmt.Errorf("failed to create scheduler service: %w", err)
		}
	}

	if roles.API {
		s.api = api.NewService(&cfg.API, handlers.NewServer(datasets, s.queue, tracker, log), log)
	}

	return s, nil
}

// Start starts the services for the selected roles
func (a *Service) Start(ctx context.Context) error {
	a.log.Info("Starting mirror...")

	observability.StartMetricsServer(a.log, a.config.MetricsAddr)

	if a.config.HealthCheckAddr != "" {
		a.startHealthCheck()
	}

	if a.config.PProfAddr != "" {
		a.startPProf()
	}

	if err := a.redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	if a.worker != nil {
		if err := a.worker.Start(ctx); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
	}

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	if a.api != nil {
		if err := a.api.Start(ctx); err != nil {
			return fmt.Errorf("failed to start API service: %w", err)
		}
	}

	a.log.WithFields(logrus.Fields{
		"worker":    a.roles.Worker,
		"scheduler": a.roles.Scheduler,
		"api":       a.roles.API,
	}).Info("Mirror started successfully")

	return nil
}

// Stop gracefully shuts down every started service
func (a *Service) Stop() error {
	a.log.Info("Shutting down mirror...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopService := func(name string, stopFunc func() error) {
		if err := stopFunc(); err != nil {
			a.log.WithError(err).Errorf("Failed to stop %s", name)
		}
	}

	// Stop creating new tasks before draining the worker
	if a.scheduler != nil {
		stopService("scheduler service", a.scheduler.Stop)
	}

	if a.api != nil {
		stopService("API service", a.api.Stop)
	}

	if a.worker != nil {
		stopService("worker service", a.worker.Stop)
	}

	a.closeClients()

	if a.pipeline != nil {
		if err := a.pipeline.Close(); err != nil {
			a.log.WithError(err).Error("Failed to stop warehouse client")
			return err
		}
	}

	stopService("metrics server", func() error { return observability.StopMetricsServer(ctx) })

	if a.healthServer != nil {
		stopService("health check server", func() error { return a.healthServer.Shutdown(ctx) })
	}

	if a.pprofServer != nil {
		stopService("pprof server", func() error { return a.pprofServer.Shutdown(ctx) })
	}

	return nil
}

func (a *Service) closeClients() {
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			a.log.WithError(err).Error("Failed to close task queue")
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.WithError(err).Error("Failed to close Redis client")
		}
	}
}

func (a *Service) startHealthCheck() {
	a.log.WithField("addr", a.config.HealthCheckAddr).Info("Starting health check server")

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := a.redisClient.Ping(r.Context()).Err(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("redis unavailable"))

			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	a.healthServer = &http.Server{
		Addr:              a.config.HealthCheckAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := a.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("Health check server failed")
		}
	}()
}

func (a *Service) startPProf() {
	a.log.WithField("addr", a.config.PProfAddr).Info("Starting pprof server")

	a.pprofServer = &http.Server{
		Addr:              a.config.PProfAddr,
		ReadHeaderTimeout: 120 * time.Second,
	}

	go func() {
		if err := a.pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("Pprof server failed")
		}
	}()
}
