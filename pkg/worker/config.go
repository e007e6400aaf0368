package worker

import (
	"errors"
	"time"
)

var (
	// ErrInvalidConcurrency is returned when concurrency is not positive
	ErrInvalidConcurrency = errors.New("concurrency must be positive")
	// ErrUnknownDataset is returned when the dataset filter names an unconfigured dataset
	ErrUnknownDataset = errors.New("worker dataset filter names an unknown dataset")
)

// Config contains worker-specific settings
type Config struct {
	Concurrency int `yaml:"concurrency" default:"4"`
	// Datasets restricts the queues this worker consumes; empty means all
	Datasets        []string      `yaml:"datasets,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"30s"`
	// LockTTL bounds how long a dataset stays locked by a crashed worker
	LockTTL     time.Duration `yaml:"lockTTL" default:"2h"`
	KeepScratch bool          `yaml:"keepScratch"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	return nil
}
