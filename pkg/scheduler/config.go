// Package scheduler enqueues ingestion tasks on each dataset's cron schedule
package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	// ErrInvalidSchedule is returned when a dataset schedule cannot be parsed
	ErrInvalidSchedule = errors.New("invalid schedule")
)

// Config defines scheduler configuration
type Config struct {
	// Location is the time zone cron expressions are evaluated in
	Location string `yaml:"location" default:"UTC"`
	// LeaderElection lets only one scheduler instance enqueue at a time
	LeaderElection bool          `yaml:"leaderElection" default:"true"`
	LeaseTTL       time.Duration `yaml:"leaseTTL" default:"10s"`
	RenewInterval  time.Duration `yaml:"renewInterval" default:"3s"`
}

// Validate checks if the scheduler configuration is valid
func (c *Config) Validate() error {
	if _, err := c.location(); err != nil {
		return err
	}

	if c.LeaderElection && c.RenewInterval >= c.LeaseTTL {
		return fmt.Errorf("renewInterval %s must be shorter than leaseTTL %s", c.RenewInterval, c.LeaseTTL)
	}

	return nil
}

func (c *Config) location() (*time.Location, error) {
	if c.Location == "" {
		return time.UTC, nil
	}

	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler location %q: %w", c.Location, err)
	}

	return loc, nil
}

//nolint:gochecknoglobals // cron parser shared by validation and the scheduler
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a cron expression or descriptor such as "@daily"
func ParseSchedule(schedule string) (cron.Schedule, error) {
	sched, err := parser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrInvalidSchedule, schedule, err)
	}

	return sched, nil
}
