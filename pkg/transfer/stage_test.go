package transfer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethpandaops/mirror/pkg/objectstore"
	"github.com/ethpandaops/mirror/pkg/warehouse"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()

	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, content, 0o600))

	return p
}

func gzipped(t *testing.T, content string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func TestDetectCompression(t *testing.T) {
	dir := t.TempDir()

	plain := writeFile(t, dir, "plain.csv", []byte("A,B\n1,2\n"))
	packed := writeFile(t, dir, "packed.csv.gz", gzipped(t, "A,B\n1,2\n"))
	empty := writeFile(t, dir, "empty.csv", nil)

	tests := []struct {
		name       string
		path       string
		configured bool
		expected   string
	}{
		{name: "plain file", path: plain, expected: CompressionNone},
		{name: "gzip magic bytes", path: packed, expected: CompressionGzip},
		{name: "configured wins", path: plain, configured: true, expected: CompressionGzip},
		{name: "empty file", path: empty, expected: CompressionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectCompression(tt.path, tt.configured)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := DetectCompression(filepath.Join(dir, "missing.csv"), false)
	assert.ErrorIs(t, err, ErrTransferFailed)
}

func TestStage_Stage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	local := writeFile(t, dir, "sales.csv", []byte("ID,AMOUNT\n1,10\n"))

	session := warehouse.NewMockSession()
	stage := NewStage(logrus.New(), objectstore.NewMockStore())

	staged, err := stage.Stage(ctx, session, StageRequest{
		LocalPath:      local,
		StageName:      "MIRROR_DB.MIRROR.STG_SALES",
		FileFormatName: "MIRROR_DB.MIRROR.FF_SALES",
		Duplicate:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "duplicate_sales.csv"), staged.DuplicatePath)
	assert.Equal(t, "@MIRROR_DB.MIRROR.STG_SALES/sales.csv", staged.StagePath)
	assert.Equal(t, "sales.csv", staged.FileName)
	assert.Equal(t, CompressionNone, staged.Compression)
	assert.Equal(t, "MIRROR_DB.MIRROR.FF_SALES", staged.FileFormatName)

	dup, err := os.ReadFile(staged.DuplicatePath)
	require.NoError(t, err)
	assert.Equal(t, "ID,AMOUNT\n1,10\n", string(dup))

	statements := session.GetStatements()
	require.Len(t, statements, 2)
	assert.Equal(t, "REMOVE @MIRROR_DB.MIRROR.STG_SALES", statements[0])
	assert.Equal(t,
		"PUT 'file://"+filepath.ToSlash(local)+"' @MIRROR_DB.MIRROR.STG_SALES AUTO_COMPRESS=FALSE OVERWRITE=TRUE",
		statements[1])
}

func TestStage_Stage_NoDuplicate(t *testing.T) {
	dir := t.TempDir()
	local := writeFile(t, dir, "sales.csv.gz", gzipped(t, "ID\n1\n"))

	session := warehouse.NewMockSession()
	staged, err := NewStage(logrus.New(), nil).Stage(context.Background(), session, StageRequest{
		LocalPath: local,
		StageName: "STG_SALES",
	})
	require.NoError(t, err)

	assert.Empty(t, staged.DuplicatePath)
	assert.Equal(t, CompressionGzip, staged.Compression)
	assert.NoFileExists(t, filepath.Join(dir, "duplicate_sales.csv.gz"))
}

func TestStage_Stage_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	local := writeFile(t, dir, "sales.csv", []byte("ID\n1\n"))
	stage := NewStage(logrus.New(), nil)

	t.Run("invalid stage name", func(t *testing.T) {
		session := warehouse.NewMockSession()
		_, err := stage.Stage(ctx, session, StageRequest{LocalPath: local, StageName: "STG; DROP"})
		require.ErrorIs(t, err, warehouse.ErrInvalidIdentifier)
		assert.Empty(t, session.GetStatements())
	})

	t.Run("put failure", func(t *testing.T) {
		session := warehouse.NewMockSession()
		session.ExecuteFunc = func(_ context.Context, query string) error {
			if strings.HasPrefix(query, "PUT") {
				return errors.New("stage not found")
			}
			return nil
		}

		_, err := stage.Stage(ctx, session, StageRequest{LocalPath: local, StageName: "STG_SALES"})
		require.ErrorIs(t, err, ErrTransferFailed)
	})

	t.Run("remove failure stops before put", func(t *testing.T) {
		session := warehouse.NewMockSession()
		session.ExecuteFunc = func(context.Context, string) error {
			return errors.New("insufficient privileges")
		}

		_, err := stage.Stage(ctx, session, StageRequest{LocalPath: local, StageName: "STG_SALES"})
		require.Error(t, err)
		assert.Len(t, session.GetStatements(), 1)
	})
}

func TestStage_EnsureStage(t *testing.T) {
	session := warehouse.NewMockSession()
	stage := NewStage(logrus.New(), nil)

	require.NoError(t, stage.EnsureStage(context.Background(), session, "MIRROR_DB.MIRROR.STG_SALES"))
	assert.Equal(t, []string{"CREATE STAGE IF NOT EXISTS MIRROR_DB.MIRROR.STG_SALES"}, session.GetStatements())

	assert.ErrorIs(t, stage.EnsureStage(context.Background(), session, "bad name"), warehouse.ErrInvalidIdentifier)
}
