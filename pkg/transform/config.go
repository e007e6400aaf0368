package transform

import (
	"errors"
	"time"
)

// Static errors for configuration validation
var (
	ErrCommandRequired = errors.New("transform command is required when enabled")
)

// Config configures the transformation tool invocation
type Config struct {
	Enabled bool `yaml:"enabled"`
	// Command is the transformation binary, resolved through PATH
	Command string `yaml:"command" default:"dbt"`
	// Args are placed before the run arguments, e.g. --project-dir
	Args       []string          `yaml:"args"`
	ProjectDir string            `yaml:"projectDir"`
	Env        map[string]string `yaml:"env"`
	Timeout    time.Duration     `yaml:"timeout" default:"30m"`
	// PrepareCommand runs before the transformation, e.g. to generate models.
	// Its arguments may use {{ .dataset }} and {{ .run_date }}.
	PrepareCommand string   `yaml:"prepareCommand"`
	PrepareArgs    []string `yaml:"prepareArgs"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Enabled && c.Command == "" {
		return ErrCommandRequired
	}

	return nil
}
