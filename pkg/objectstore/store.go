// Package objectstore provides the object storage capability used to discover and move dataset files
package objectstore

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBucketRequired is returned when an operation is issued without a bucket
	ErrBucketRequired = errors.New("bucket is required")
	// ErrUnsafeKey is returned when a key would escape the local target directory
	ErrUnsafeKey = errors.New("object key escapes target directory")
)

// Object describes a single remote object
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// Store lists, downloads and uploads objects
type Store interface {
	// List returns every object under prefix in listing order
	List(ctx context.Context, bucket, prefix string) ([]Object, error)
	// Download writes a single object to localPath
	Download(ctx context.Context, bucket, key, localPath string) error
	// Upload writes a local file to key
	Upload(ctx context.Context, bucket, localPath, key string) error
	// DownloadFolder mirrors every object under prefix into localDir and returns the local paths
	DownloadFolder(ctx context.Context, bucket, prefix, localDir string) ([]string, error)
	// UploadFolder uploads every file below localDir under prefix
	UploadFolder(ctx context.Context, bucket, localDir, prefix string) error
}

// Keys returns the keys of objects in order
func Keys(objects []Object) []string {
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Key)
	}

	return keys
}
