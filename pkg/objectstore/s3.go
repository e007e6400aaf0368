package objectstore

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ethpandaops/mirror/pkg/observability"
	"github.com/sirupsen/logrus"
)

const (
	maxRetries = 3
	mebibyte   = 1024 * 1024
)

// S3Store implements Store on top of the AWS SDK v2
type S3Store struct {
	client     *s3.Client
	downloader *manager.Downloader
	uploader   *manager.Uploader
	log        logrus.FieldLogger
}

// NewS3Store creates an S3 backed store
func NewS3Store(ctx context.Context, cfg *Config, log logrus.FieldLogger) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid object store config: %w", err)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(maxRetries),
	}

	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	partSize := cfg.PartSizeMB * mebibyte

	store := &S3Store{
		client: client,
		downloader: manager.NewDownloader(client, func(d *manager.Downloader) {
			d.PartSize = partSize
			d.Concurrency = cfg.Concurrency
		}),
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = partSize
			u.Concurrency = cfg.Concurrency
		}),
		log: log.WithField("component", "s3"),
	}

	store.log.WithFields(logrus.Fields{
		"region":   cfg.Region,
		"endpoint": cfg.Endpoint,
	}).Info("S3 object store initialized")

	return store, nil
}

// List returns every object under prefix in listing order
func (s *S3Store) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	if bucket == "" {
		return nil, ErrBucketRequired
	}

	start := time.Now()

	var objects []Object

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			observability.RecordObjectStoreOperation("list", "error", time.Since(start).Seconds())
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", bucket, prefix, err)
		}

		for _, obj := range page.Contents {
			if obj.Key == nil {
				continue
			}

			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         strings.Trim(aws.ToString(obj.ETag), "\""),
			})
		}
	}

	observability.RecordObjectStoreOperation("list", "success", time.Since(start).Seconds())

	return objects, nil
}

// Download writes a single object to localPath, removing partial output on failure
func (s *S3Store) Download(ctx context.Context, bucket, key, localPath string) (err error) {
	if bucket == "" {
		return ErrBucketRequired
	}

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		observability.RecordObjectStoreOperation("download", status, time.Since(start).Seconds())
	}()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", localPath, err)
	}

	file, err := os.Create(localPath) //nolint:gosec // Path is built from the run scratch directory
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", localPath, err)
	}

	n, err := s.downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})

	closeErr := file.Close()

	if err != nil {
		_ = os.Remove(localPath)
		return fmt.Errorf("failed to download s3://%s/%s: %w", bucket, key, err)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", localPath, closeErr)
	}

	s.log.WithFields(logrus.Fields{
		"key":   key,
		"path":  localPath,
		"bytes": n,
	}).Debug("Downloaded object")

	return nil
}

// Upload writes a local file to key
func (s *S3Store) Upload(ctx context.Context, bucket, localPath, key string) (err error) {
	if bucket == "" {
		return ErrBucketRequired
	}

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		observability.RecordObjectStoreOperation("upload", status, time.Since(start).Seconds())
	}()

	file, err := os.Open(localPath) //nolint:gosec // Caller-provided local file
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer file.Close()

	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   file,
	}); err != nil {
		return fmt.Errorf("failed to upload %s to s3://%s/%s: %w", localPath, bucket, key, err)
	}

	return nil
}

// DownloadFolder mirrors every object under prefix into localDir
func (s *S3Store) DownloadFolder(ctx context.Context, bucket, prefix, localDir string) ([]string, error) {
	objects, err := s.List(ctx, bucket, prefix)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(objects))

	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}

		target, err := LocalPathFor(localDir, prefix, obj.Key)
		if err != nil {
			return nil, err
		}

		if err := s.Download(ctx, bucket, obj.Key, target); err != nil {
			return nil, err
		}

		paths = append(paths, target)
	}

	return paths, nil
}

// UploadFolder uploads every regular file below localDir under prefix
func (s *S3Store) UploadFolder(ctx context.Context, bucket, localDir, prefix string) error {
	return filepath.WalkDir(localDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}

		return s.Upload(ctx, bucket, p, path.Join(prefix, filepath.ToSlash(rel)))
	})
}

// LocalPathFor maps an object key below prefix to a path inside localDir
func LocalPathFor(localDir, prefix, key string) (string, error) {
	rel := strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
	if rel == "" {
		rel = path.Base(key)
	}

	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeKey, key)
	}

	return filepath.Join(localDir, cleaned), nil
}
