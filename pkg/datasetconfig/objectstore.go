package datasetconfig

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/ethpandaops/mirror/pkg/objectstore"
	"github.com/sirupsen/logrus"
)

// ObjectStoreSource downloads <path>/<dataset>/ into a fresh temporary
// directory on every call and reads it with a DirSource
type ObjectStoreSource struct {
	log    logrus.FieldLogger
	store  objectstore.Store
	bucket string
	path   string
}

// NewObjectStoreSource creates a source backed by the object store
func NewObjectStoreSource(log logrus.FieldLogger, store objectstore.Store, bucket, basePath string) *ObjectStoreSource {
	return &ObjectStoreSource{
		log:    log.WithField("component", "datasetconfig"),
		store:  store,
		bucket: bucket,
		path:   basePath,
	}
}

// GetConfigs downloads the dataset's config folder and reads it
func (s *ObjectStoreSource) GetConfigs(ctx context.Context, dataset string, runDate time.Time) (*DatasetConfig, error) {
	tmp, err := os.MkdirTemp("", "mirror-config-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			s.log.WithError(err).WithField("dir", tmp).Warn("Failed to remove config directory")
		}
	}()

	prefix := path.Join(s.path, dataset) + "/"

	files, err := s.store.DownloadFolder(ctx, s.bucket, prefix, tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to download configs from %s/%s: %w", s.bucket, prefix, err)
	}

	s.log.WithFields(logrus.Fields{
		"dataset": dataset,
		"bucket":  s.bucket,
		"prefix":  prefix,
		"files":   len(files),
	}).Debug("Downloaded dataset configs")

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: nothing under %s/%s", ErrDatasetNotConfigured, s.bucket, prefix)
	}

	return NewDirSource(s.log, tmp).GetConfigs(ctx, dataset, runDate)
}
