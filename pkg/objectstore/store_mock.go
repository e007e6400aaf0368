package objectstore

import (
	"context"
	"sync"
)

// MockStore is a mock implementation of Store for testing
type MockStore struct {
	mu sync.Mutex

	// Control behavior
	ListFunc           func(ctx context.Context, bucket, prefix string) ([]Object, error)
	DownloadFunc       func(ctx context.Context, bucket, key, localPath string) error
	UploadFunc         func(ctx context.Context, bucket, localPath, key string) error
	DownloadFolderFunc func(ctx context.Context, bucket, prefix, localDir string) ([]string, error)
	UploadFolderFunc   func(ctx context.Context, bucket, localDir, prefix string) error

	// Track calls for assertions
	ListCalls     []ListCall
	DownloadCalls []TransferCall
	UploadCalls   []TransferCall
	FolderCalls   []TransferCall
}

// ListCall records a List call
type ListCall struct {
	Bucket string
	Prefix string
}

// TransferCall records a download or upload call
type TransferCall struct {
	Bucket    string
	Key       string
	LocalPath string
}

// NewMockStore creates a new mock store
func NewMockStore() *MockStore {
	return &MockStore{}
}

// List implements Store
func (m *MockStore) List(ctx context.Context, bucket, prefix string) ([]Object, error) {
	m.mu.Lock()
	m.ListCalls = append(m.ListCalls, ListCall{Bucket: bucket, Prefix: prefix})
	m.mu.Unlock()

	if m.ListFunc != nil {
		return m.ListFunc(ctx, bucket, prefix)
	}

	return nil, nil
}

// Download implements Store
func (m *MockStore) Download(ctx context.Context, bucket, key, localPath string) error {
	m.mu.Lock()
	m.DownloadCalls = append(m.DownloadCalls, TransferCall{Bucket: bucket, Key: key, LocalPath: localPath})
	m.mu.Unlock()

	if m.DownloadFunc != nil {
		return m.DownloadFunc(ctx, bucket, key, localPath)
	}

	return nil
}

// Upload implements Store
func (m *MockStore) Upload(ctx context.Context, bucket, localPath, key string) error {
	m.mu.Lock()
	m.UploadCalls = append(m.UploadCalls, TransferCall{Bucket: bucket, Key: key, LocalPath: localPath})
	m.mu.Unlock()

	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, bucket, localPath, key)
	}

	return nil
}

// DownloadFolder implements Store
func (m *MockStore) DownloadFolder(ctx context.Context, bucket, prefix, localDir string) ([]string, error) {
	m.mu.Lock()
	m.FolderCalls = append(m.FolderCalls, TransferCall{Bucket: bucket, Key: prefix, LocalPath: localDir})
	m.mu.Unlock()

	if m.DownloadFolderFunc != nil {
		return m.DownloadFolderFunc(ctx, bucket, prefix, localDir)
	}

	return nil, nil
}

// UploadFolder implements Store
func (m *MockStore) UploadFolder(ctx context.Context, bucket, localDir, prefix string) error {
	m.mu.Lock()
	m.FolderCalls = append(m.FolderCalls, TransferCall{Bucket: bucket, Key: prefix, LocalPath: localDir})
	m.mu.Unlock()

	if m.UploadFolderFunc != nil {
		return m.UploadFolderFunc(ctx, bucket, localDir, prefix)
	}

	return nil
}
