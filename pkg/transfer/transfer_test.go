package transfer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethpandaops/mirror/pkg/objectstore"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func objects(keys ...string) []objectstore.Object {
	out := make([]objectstore.Object, 0, len(keys))
	for _, k := range keys {
		out = append(out, objectstore.Object{Key: k})
	}

	return out
}

func TestStage_Download(t *testing.T) {
	tests := []struct {
		name        string
		request     DownloadRequest
		expectFiles []string
		expectError error
	}{
		{
			name:        "no objects",
			request:     DownloadRequest{Bucket: "b"},
			expectError: ErrNoObjects,
		},
		{
			name:        "single object uses basename",
			request:     DownloadRequest{Bucket: "b", Objects: objects("sales/2024-05-01/sales.csv")},
			expectFiles: []string{"sales.csv"},
		},
		{
			name: "configured file name wins for a single object",
			request: DownloadRequest{
				Bucket: "b", Objects: objects("sales/2024-05-01/export.csv"), FileName: "sales.csv",
			},
			expectFiles: []string{"sales.csv"},
		},
		{
			name:        "exactly-one rejects multiple matches",
			request:     DownloadRequest{Bucket: "b", Objects: objects("a/1.csv", "a/2.csv")},
			expectError: ErrMultipleMatches,
		},
		{
			name: "all downloads each key",
			request: DownloadRequest{
				Bucket: "b", Objects: objects("a/1.csv", "a/2.csv"), Policy: MultiMatchAll, FileName: "ignored.csv",
			},
			expectFiles: []string{"1.csv", "2.csv"},
		},
		{
			name: "all rejects basename collisions",
			request: DownloadRequest{
				Bucket: "b", Objects: objects("a/1.csv", "b/1.csv"), Policy: MultiMatchAll,
			},
			expectError: ErrDuplicateBasename,
		},
		{
			name: "unknown policy",
			request: DownloadRequest{
				Bucket: "b", Objects: objects("a/1.csv"), Policy: "some",
			},
			expectError: ErrUnknownPolicy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.request.TargetDir = dir

			store := objectstore.NewMockStore()
			store.DownloadFunc = func(_ context.Context, _, key, localPath string) error {
				return os.WriteFile(localPath, []byte(key), 0o600)
			}

			paths, err := NewStage(logrus.New(), store).Download(context.Background(), tt.request)
			if tt.expectError != nil {
				require.ErrorIs(t, err, tt.expectError)
				assert.Empty(t, store.DownloadCalls)

				return
			}

			require.NoError(t, err)
			require.Len(t, paths, len(tt.expectFiles))

			for i, name := range tt.expectFiles {
				assert.Equal(t, filepath.Join(dir, name), paths[i])
				assert.FileExists(t, paths[i])
				assert.Equal(t, tt.request.Objects[i].Key, store.DownloadCalls[i].Key)
			}
		})
	}
}

func TestStage_Download_Failure(t *testing.T) {
	store := objectstore.NewMockStore()
	store.DownloadFunc = func(context.Context, string, string, string) error {
		return errors.New("connection reset")
	}

	_, err := NewStage(logrus.New(), store).Download(context.Background(), DownloadRequest{
		Bucket: "b", Objects: objects("a/1.csv"), TargetDir: t.TempDir(),
	})
	require.ErrorIs(t, err, ErrTransferFailed)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestMultiMatchPolicy_Validate(t *testing.T) {
	assert.NoError(t, MultiMatchExactlyOne.Validate())
	assert.NoError(t, MultiMatchAll.Validate())
	assert.NoError(t, MultiMatchPolicy("").Validate())
	assert.ErrorIs(t, MultiMatchPolicy("first").Validate(), ErrUnknownPolicy)
}
