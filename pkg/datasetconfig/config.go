package datasetconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/mirror/pkg/objectstore"
	"github.com/sirupsen/logrus"
)

// Static errors for configuration validation
var (
	ErrAmbiguousSource = errors.New("configSource: set either bucket or localPath, not both")
)

// Config selects where dataset declarations are read from
type Config struct {
	// Bucket and Path locate declarations in the object store
	Bucket string `yaml:"bucket"`
	Path   string `yaml:"path" default:"dataset_configs"`
	// LocalPath reads declarations from a local directory instead
	LocalPath string `yaml:"localPath"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Bucket != "" && c.LocalPath != "" {
		return ErrAmbiguousSource
	}

	return nil
}

// NewSource builds the configured source. Without a bucket or local path every
// dataset is reported as not configured.
func NewSource(log logrus.FieldLogger, cfg *Config, store objectstore.Store) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch {
	case cfg.LocalPath != "":
		return NewDirSource(log, cfg.LocalPath), nil
	case cfg.Bucket != "":
		return NewObjectStoreSource(log, store, cfg.Bucket, cfg.Path), nil
	default:
		return emptySource{}, nil
	}
}

type emptySource struct{}

func (emptySource) GetConfigs(_ context.Context, dataset string, _ time.Time) (*DatasetConfig, error) {
	return nil, fmt.Errorf("%w: %s", ErrDatasetNotConfigured, dataset)
}
