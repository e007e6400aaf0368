package objectstore

import "errors"

var (
	// ErrInvalidConcurrency is returned when transfer concurrency is not positive
	ErrInvalidConcurrency = errors.New("object store concurrency must be positive")
	// ErrIncompleteCredentials is returned when only one half of a static key pair is set
	ErrIncompleteCredentials = errors.New("accessKeyId and secretAccessKey must be set together")
)

// Config contains S3 connection settings. Static credentials are optional; when
// absent the default AWS credential chain is used.
type Config struct {
	Region          string `yaml:"region" default:"us-east-1"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	SessionToken    string `yaml:"sessionToken"`
	UsePathStyle    bool   `yaml:"usePathStyle"`
	PartSizeMB      int64  `yaml:"partSizeMb" default:"5"`
	Concurrency     int    `yaml:"concurrency" default:"5"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return ErrIncompleteCredentials
	}

	return nil
}
