// Package acquisition discovers the remote files that belong to a dataset run
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/mirror/pkg/objectstore"
	"github.com/ethpandaops/mirror/pkg/pattern"
	"github.com/sirupsen/logrus"
)

var (
	// ErrPatternMismatch is returned when the prefix holds objects but none match the file pattern
	ErrPatternMismatch = errors.New("no object matches the file pattern")
)

// Request describes where and what to look for
type Request struct {
	Dataset    string
	Bucket     string
	Prefix     string
	Pattern    string
	DateFormat string
}

// Stage lists a prefix and filters it by the resolved file pattern
type Stage struct {
	log   logrus.FieldLogger
	store objectstore.Store
}

// NewStage creates an acquisition stage
func NewStage(log logrus.FieldLogger, store objectstore.Store) *Stage {
	return &Stage{
		log:   log.WithField("component", "acquisition"),
		store: store,
	}
}

// Discover returns the matching objects in listing order. An empty prefix is
// not an error and yields an empty result.
func (s *Stage) Discover(ctx context.Context, req Request, runDate time.Time) ([]objectstore.Object, error) {
	resolver := pattern.NewResolver(req.Dataset, req.DateFormat)

	prefix, err := resolver.Resolve(req.Prefix, runDate)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve prefix: %w", err)
	}

	re, err := resolver.Compile(req.Pattern, runDate)
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"bucket":  req.Bucket,
		"prefix":  prefix,
		"pattern": re.String(),
	})

	objects, err := s.store.List(ctx, req.Bucket, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s/%s: %w", req.Bucket, prefix, err)
	}

	if len(objects) == 0 {
		log.Info("No files found under prefix")
		return []objectstore.Object{}, nil
	}

	byKey := make(map[string]objectstore.Object, len(objects))
	for _, obj := range objects {
		byKey[obj.Key] = obj
	}

	keys := pattern.FilterKeys(objectstore.Keys(objects), re)
	if len(keys) == 0 {
		log.WithField("listed", len(objects)).Error("No files match the file pattern")
		return nil, fmt.Errorf("%w: %s under %s/%s", ErrPatternMismatch, re.String(), req.Bucket, prefix)
	}

	matched := make([]objectstore.Object, 0, len(keys))
	for _, key := range keys {
		matched = append(matched, byKey[key])
	}

	log.WithField("keys", keys).Info("Found matching files")

	return matched, nil
}
