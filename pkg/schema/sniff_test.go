package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGzip(t *testing.T, path, content string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	w := gzip.NewWriter(f)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestDetectDelimiter(t *testing.T) {
	tests := []struct {
		line     string
		expected string
	}{
		{line: "ID,AMOUNT,REGION", expected: ","},
		{line: "ID\tAMOUNT\tREGION", expected: "\t"},
		{line: "ID;AMOUNT;REGION", expected: ";"},
		{line: "ID|AMOUNT|REGION", expected: "|"},
		{line: "ID", expected: ","},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectDelimiter(tt.line))
		})
	}
}

func TestSniffLocalFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("plain csv", func(t *testing.T) {
		p := filepath.Join(dir, "sales.csv")
		require.NoError(t, os.WriteFile(p, []byte("id,\"unit price\",region\r\n1,2.5,EU\n"), 0o600))

		sniffed, err := SniffLocalFile(p)
		require.NoError(t, err)
		assert.Equal(t, ",", sniffed.Delimiter)
		assert.Equal(t, 1, sniffed.SkipHeader)
		assert.False(t, sniffed.Compressed)
		assert.Equal(t, []string{"ID", "UNIT_PRICE", "REGION"}, sniffed.Header)
	})

	t.Run("gzip tsv", func(t *testing.T) {
		p := filepath.Join(dir, "sales.tsv.gz")
		writeGzip(t, p, "id\tamount\n1\t10\n")

		sniffed, err := SniffLocalFile(p)
		require.NoError(t, err)
		assert.Equal(t, "\t", sniffed.Delimiter)
		assert.True(t, sniffed.Compressed)
		assert.Equal(t, []string{"ID", "AMOUNT"}, sniffed.Header)
	})

	t.Run("header without trailing newline", func(t *testing.T) {
		p := filepath.Join(dir, "header.csv")
		require.NoError(t, os.WriteFile(p, []byte("a|b"), 0o600))

		sniffed, err := SniffLocalFile(p)
		require.NoError(t, err)
		assert.Equal(t, "|", sniffed.Delimiter)
		assert.Equal(t, []string{"A", "B"}, sniffed.Header)
	})

	t.Run("empty file", func(t *testing.T) {
		p := filepath.Join(dir, "empty.csv")
		require.NoError(t, os.WriteFile(p, nil, 0o600))

		_, err := SniffLocalFile(p)
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := SniffLocalFile(filepath.Join(dir, "missing.csv"))
		assert.Error(t, err)
	})
}
