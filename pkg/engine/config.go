// Package engine wires the mirror services from one configuration file
package engine

import (
	"errors"
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/ethpandaops/mirror/pkg/api"
	"github.com/ethpandaops/mirror/pkg/datasetconfig"
	"github.com/ethpandaops/mirror/pkg/objectstore"
	"github.com/ethpandaops/mirror/pkg/pipeline"
	"github.com/ethpandaops/mirror/pkg/redis"
	"github.com/ethpandaops/mirror/pkg/scheduler"
	"github.com/ethpandaops/mirror/pkg/tasks"
	"github.com/ethpandaops/mirror/pkg/transform"
	"github.com/ethpandaops/mirror/pkg/warehouse"
	"github.com/ethpandaops/mirror/pkg/worker"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	// ErrNoDatasets is returned when the configuration declares no datasets
	ErrNoDatasets = errors.New("at least one dataset must be configured")
)

// Config represents the complete mirror configuration
type Config struct {
	// Core settings
	Logging         string `yaml:"logging" default:"info"`
	MetricsAddr     string `yaml:"metricsAddr" default:":9091"`
	HealthCheckAddr string `yaml:"healthCheckAddr"`
	PProfAddr       string `yaml:"pprofAddr"`
	// ScratchDir is the root for per-run directories; empty uses the OS temp dir
	ScratchDir string `yaml:"scratchDir"`

	// Dependencies
	Redis        redis.Config         `yaml:"redis"`
	Warehouse    warehouse.Config     `yaml:"warehouse"`
	ObjectStore  objectstore.Config   `yaml:"objectStore"`
	ConfigSource datasetconfig.Config `yaml:"configSource"`
	Transform    transform.Config     `yaml:"transform"`

	// Queueing and roles
	Queue     tasks.QueueConfig `yaml:"queue"`
	Worker    worker.Config     `yaml:"worker"`
	Scheduler scheduler.Config  `yaml:"scheduler"`
	API       api.Config        `yaml:"api"`

	Datasets []pipeline.Dataset `yaml:"datasets"`
}

// LoadConfig reads a YAML configuration file and applies defaults
func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	if err := defaults.Set(config); err != nil {
		return nil, err
	}

	yamlFile, err := os.ReadFile(path) //nolint:gosec // User-provided config file path
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// Slice elements only exist after decoding
	for i := range config.Datasets {
		if err := defaults.Set(&config.Datasets[i]); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// Validate validates every section except Redis, which only the queue based
// roles need
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Logging); err != nil {
		return fmt.Errorf("invalid logging level: %w", err)
	}

	if len(c.Datasets) == 0 {
		return ErrNoDatasets
	}

	if err := pipeline.ValidateDatasets(c.Datasets); err != nil {
		return err
	}

	if err := c.ObjectStore.Validate(); err != nil {
		return fmt.Errorf("objectStore: %w", err)
	}

	if err := c.ConfigSource.Validate(); err != nil {
		return err
	}

	if err := c.Transform.Validate(); err != nil {
		return err
	}

	if err := c.Worker.Validate(); err != nil {
		return fmt.Errorf("worker: %w", err)
	}

	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	for i := range c.Datasets {
		if c.Datasets[i].Schedule == "" {
			continue
		}

		if _, err := scheduler.ParseSchedule(c.Datasets[i].Schedule); err != nil {
			return fmt.Errorf("dataset %s: %w", c.Datasets[i].Name, err)
		}
	}

	return c.API.Validate()
}

// DatasetNames returns the configured dataset names in declaration order
func (c *Config) DatasetNames() []string {
	names := make([]string, 0, len(c.Datasets))
	for i := range c.Datasets {
		names = append(names, c.Datasets[i].Name)
	}

	return names
}

// ScheduledJobs returns a scheduler job per dataset that declares a schedule
func (c *Config) ScheduledJobs() []scheduler.Job {
	jobs := make([]scheduler.Job, 0, len(c.Datasets))

	for i := range c.Datasets {
		if c.Datasets[i].Schedule == "" {
			continue
		}

		jobs = append(jobs, scheduler.Job{Dataset: c.Datasets[i].Name, Schedule: c.Datasets[i].Schedule})
	}

	return jobs
}
