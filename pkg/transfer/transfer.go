// Package transfer downloads matched objects and places them on a warehouse stage
package transfer

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/ethpandaops/mirror/pkg/objectstore"
	"github.com/sirupsen/logrus"
)

// MultiMatchPolicy decides what happens when more than one key matched
type MultiMatchPolicy string

const (
	// MultiMatchExactlyOne fails the run when more than one key matched
	MultiMatchExactlyOne MultiMatchPolicy = "exactly-one"
	// MultiMatchAll downloads every matched key to its own basename
	MultiMatchAll MultiMatchPolicy = "all"
)

// Validate checks the policy value
func (p MultiMatchPolicy) Validate() error {
	switch p {
	case MultiMatchExactlyOne, MultiMatchAll, "":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPolicy, p)
	}
}

// DownloadRequest describes one download step
type DownloadRequest struct {
	Bucket    string
	Objects   []objectstore.Object
	TargetDir string
	// FileName overrides the local name when a single object is downloaded
	FileName string
	Policy   MultiMatchPolicy
}

// Stage moves files between the object store, local disk and the warehouse stage
type Stage struct {
	log   logrus.FieldLogger
	store objectstore.Store
}

// NewStage creates a transfer stage
func NewStage(log logrus.FieldLogger, store objectstore.Store) *Stage {
	return &Stage{
		log:   log.WithField("component", "transfer"),
		store: store,
	}
}

// Download fetches the objects into the target directory and returns the
// local paths in input order
func (s *Stage) Download(ctx context.Context, req DownloadRequest) ([]string, error) {
	if len(req.Objects) == 0 {
		return nil, ErrNoObjects
	}

	if err := req.Policy.Validate(); err != nil {
		return nil, err
	}

	policy := req.Policy
	if policy == "" {
		policy = MultiMatchExactlyOne
	}

	if policy == MultiMatchExactlyOne && len(req.Objects) > 1 {
		return nil, fmt.Errorf("%w: %v", ErrMultipleMatches, objectstore.Keys(req.Objects))
	}

	targets, err := localTargets(req)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(req.Objects))

	for i, obj := range req.Objects {
		log := s.log.WithFields(logrus.Fields{
			"bucket": req.Bucket,
			"key":    obj.Key,
			"path":   targets[i],
		})

		log.Info("Downloading file")

		if err := s.store.Download(ctx, req.Bucket, obj.Key, targets[i]); err != nil {
			return nil, fmt.Errorf("%w: download %s: %w", ErrTransferFailed, obj.Key, err)
		}

		log.Debug("Downloaded file")

		paths = append(paths, targets[i])
	}

	return paths, nil
}

func localTargets(req DownloadRequest) ([]string, error) {
	if len(req.Objects) == 1 && req.FileName != "" {
		return []string{filepath.Join(req.TargetDir, filepath.Base(req.FileName))}, nil
	}

	seen := make(map[string]string, len(req.Objects))
	targets := make([]string, 0, len(req.Objects))

	for _, obj := range req.Objects {
		name := path.Base(obj.Key)
		if name == "." || name == "/" {
			return nil, fmt.Errorf("%w: key %q has no file name", ErrTransferFailed, obj.Key)
		}

		if other, ok := seen[name]; ok {
			return nil, fmt.Errorf("%w: %s and %s", ErrDuplicateBasename, other, obj.Key)
		}

		seen[name] = obj.Key
		targets = append(targets, filepath.Join(req.TargetDir, name))
	}

	return targets, nil
}
