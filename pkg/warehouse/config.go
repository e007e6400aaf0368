// Package warehouse provides per-run warehouse sessions over database/sql
package warehouse

import (
	"errors"
	"time"

	sf "github.com/snowflakedb/gosnowflake"
)

// Static errors for configuration validation
var (
	ErrAccountRequired = errors.New("warehouse account is required")
	ErrUserRequired    = errors.New("warehouse user is required")
)

// Config contains the warehouse connection settings. It is passed by value to
// the connector and never copied into process environment variables.
type Config struct {
	Account      string        `yaml:"account"`
	User         string        `yaml:"user"`
	Password     string        `yaml:"password"`
	Role         string        `yaml:"role"`
	Warehouse    string        `yaml:"warehouse"`
	Database     string        `yaml:"database"`
	Schema       string        `yaml:"schema"`
	Region       string        `yaml:"region"`
	QueryTag     string        `yaml:"queryTag" default:"mirror"`
	LoginTimeout time.Duration `yaml:"loginTimeout" default:"60s"`
	MaxOpenConns int           `yaml:"maxOpenConns" default:"10"`
	Debug        bool          `yaml:"debug"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account == "" {
		return ErrAccountRequired
	}

	if c.User == "" {
		return ErrUserRequired
	}

	return nil
}

// snowflakeConfig converts the configuration into the driver's connector configuration
func (c Config) snowflakeConfig() sf.Config {
	cfg := sf.Config{
		Account:      c.Account,
		User:         c.User,
		Password:     c.Password,
		Role:         c.Role,
		Warehouse:    c.Warehouse,
		Database:     c.Database,
		Schema:       c.Schema,
		Region:       c.Region,
		LoginTimeout: c.LoginTimeout,
		Application:  "mirror",
	}

	if c.QueryTag != "" {
		tag := c.QueryTag
		cfg.Params = map[string]*string{"QUERY_TAG": &tag}
	}

	return cfg
}
