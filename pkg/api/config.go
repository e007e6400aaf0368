// Package api serves the mirror HTTP API for listing datasets and triggering runs
package api

import "errors"

var (
	// ErrAPIAddrRequired is returned when the API is enabled without an address
	ErrAPIAddrRequired = errors.New("api addr is required when the API is enabled")
)

// Config controls the HTTP API. The serve command enables it regardless of Enabled.
type Config struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" default:":8080"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Enabled && c.Addr == "" {
		return ErrAPIAddrRequired
	}

	return nil
}
