package transfer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ethpandaops/mirror/pkg/naming"
	"github.com/ethpandaops/mirror/pkg/warehouse"
	"github.com/sirupsen/logrus"
)

const (
	// CompressionGzip marks a gzip compressed staged file
	CompressionGzip = "GZIP"
	// CompressionNone marks an uncompressed staged file
	CompressionNone = "NONE"
)

//nolint:gochecknoglobals // gzip magic bytes
var gzipMagic = []byte{0x1f, 0x8b}

// StageRequest describes one PUT of a local file onto a stage
type StageRequest struct {
	LocalPath      string
	StageName      string
	FileFormatName string
	Duplicate      bool
	Compressed     bool
}

// StagedFile describes a file that has been placed on a stage
type StagedFile struct {
	LocalPath      string
	DuplicatePath  string
	StageName      string
	StagePath      string
	FileName       string
	FileFormatName string
	Compression    string
}

// EnsureStage creates the internal stage when it does not exist yet
func (s *Stage) EnsureStage(ctx context.Context, session warehouse.Executor, stageName string) error {
	if err := warehouse.ValidateIdentifier(stageName); err != nil {
		return err
	}

	if err := session.Execute(ctx, "CREATE STAGE IF NOT EXISTS "+stageName); err != nil {
		return fmt.Errorf("failed to ensure stage %s: %w", stageName, err)
	}

	return nil
}

// Stage copies the local file aside when requested, clears the stage of any
// pending file and uploads the local file to it
func (s *Stage) Stage(ctx context.Context, session warehouse.Executor, req StageRequest) (*StagedFile, error) {
	if err := warehouse.ValidateIdentifier(req.StageName); err != nil {
		return nil, err
	}

	compression, err := DetectCompression(req.LocalPath, req.Compressed)
	if err != nil {
		return nil, err
	}

	fileName := filepath.Base(req.LocalPath)
	staged := &StagedFile{
		LocalPath:      req.LocalPath,
		StageName:      req.StageName,
		StagePath:      fmt.Sprintf("@%s/%s", req.StageName, fileName),
		FileName:       fileName,
		FileFormatName: req.FileFormatName,
		Compression:    compression,
	}

	log := s.log.WithFields(logrus.Fields{
		"path":  req.LocalPath,
		"stage": req.StageName,
	})

	if req.Duplicate {
		staged.DuplicatePath = naming.DuplicatePath(req.LocalPath)

		if err := copyFile(req.LocalPath, staged.DuplicatePath); err != nil {
			return nil, fmt.Errorf("%w: duplicate %s: %w", ErrTransferFailed, req.LocalPath, err)
		}

		log.WithField("duplicate", staged.DuplicatePath).Debug("Duplicated file for later checks")
	}

	if err := session.Execute(ctx, "REMOVE @"+req.StageName); err != nil {
		return nil, fmt.Errorf("failed to clear stage %s: %w", req.StageName, err)
	}

	put := fmt.Sprintf("PUT %s @%s AUTO_COMPRESS=FALSE OVERWRITE=TRUE",
		warehouse.QuoteLiteral("file://"+filepath.ToSlash(req.LocalPath)), req.StageName)

	if err := session.Execute(ctx, put); err != nil {
		return nil, fmt.Errorf("%w: put %s: %w", ErrTransferFailed, req.LocalPath, err)
	}

	log.WithField("compression", compression).Info("File placed on stage")

	return staged, nil
}

// DetectCompression returns GZIP when configured or when the file carries the
// gzip magic bytes, NONE otherwise
func DetectCompression(path string, configured bool) (string, error) {
	if configured {
		return CompressionGzip, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	defer f.Close()

	head, err := bufio.NewReader(f).Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	if bytes.Equal(head, gzipMagic) {
		return CompressionGzip, nil
	}

	return CompressionNone, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}
