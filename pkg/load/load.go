// Package load bulk-loads a staged file into its mirror table
package load

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethpandaops/mirror/pkg/naming"
	"github.com/ethpandaops/mirror/pkg/observability"
	"github.com/ethpandaops/mirror/pkg/warehouse"
	"github.com/sirupsen/logrus"
)

// Static errors for the load engine
var (
	// ErrLoadFailed is returned when the warehouse reports a failed file load
	ErrLoadFailed = errors.New("load failed")
	// ErrNoColumns is returned when a load is requested without a projection
	ErrNoColumns = errors.New("no columns to load")
	// ErrNoFile is returned when a load is requested without a staged file
	ErrNoFile = errors.New("no staged file to load")
	// ErrUnknownMode is returned for an unsupported load mode
	ErrUnknownMode = errors.New("unknown load mode")
)

// Mode selects how a load treats existing rows
type Mode string

const (
	// ModeAppend adds rows; files already loaded are skipped unless forced
	ModeAppend Mode = "append"
	// ModeReplace deletes every row and reloads the file in one transaction
	ModeReplace Mode = "replace"
)

// Validate checks the mode value
func (m Mode) Validate() error {
	switch m {
	case ModeAppend, ModeReplace, "":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, m)
	}
}

// Request describes one load
type Request struct {
	Dataset        string
	StageName      string
	Table          naming.Table
	Columns        []string
	FileFormatName string
	FilePath       string
	Mode           Mode
	Force          bool
}

// Engine issues COPY statements
type Engine struct {
	log logrus.FieldLogger
}

// NewEngine creates a load engine
func NewEngine(log logrus.FieldLogger) *Engine {
	return &Engine{log: log.WithField("component", "load")}
}

// Load copies the staged file into the table. Replace mode clears the table
// and copies inside a single transaction so a failed copy leaves the previous
// rows untouched.
func (e *Engine) Load(ctx context.Context, session warehouse.Session, req Request) (*Result, error) {
	if err := req.Mode.Validate(); err != nil {
		return nil, err
	}

	mode := req.Mode
	if mode == "" {
		mode = ModeAppend
	}

	log := e.log.WithFields(logrus.Fields{
		"dataset": req.Dataset,
		"table":   req.Table.Qualified(),
		"file":    req.FilePath,
		"mode":    mode,
	})

	var (
		result *Result
		err    error
	)

	switch mode {
	case ModeReplace:
		result, err = e.replace(ctx, session, req)
	default:
		result, err = e.copy(ctx, session, req, req.Force)
	}

	if err != nil {
		return nil, err
	}

	result.Mode = mode

	observability.RecordRowsLoaded(req.Dataset, float64(result.RowsLoaded), float64(result.RowsErrored))

	switch result.Status {
	case StatusSkipped:
		log.Warn("Copy processed no files")
	case StatusPartiallyLoaded:
		log.WithFields(logrus.Fields{
			"rows_loaded":  result.RowsLoaded,
			"rows_errored": result.RowsErrored,
			"first_error":  result.FirstError,
		}).Warn("File partially loaded")
	default:
		log.WithField("rows_loaded", result.RowsLoaded).Info("File loaded")
	}

	return result, nil
}

func (e *Engine) replace(ctx context.Context, session warehouse.Session, req Request) (*Result, error) {
	del, err := BuildDelete(req)
	if err != nil {
		return nil, err
	}

	var result *Result

	err = session.InTx(ctx, func(ctx context.Context, tx warehouse.Executor) error {
		if err := tx.Execute(ctx, del); err != nil {
			return fmt.Errorf("failed to clear %s: %w", req.Table, err)
		}

		var copyErr error

		result, copyErr = e.copy(ctx, tx, req, true)

		return copyErr
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (e *Engine) copy(ctx context.Context, ex warehouse.Executor, req Request, force bool) (*Result, error) {
	stmt, err := BuildCopy(req, force)
	if err != nil {
		return nil, err
	}

	e.log.WithField("statement", stmt).Debug("Copying staged file")

	rows, err := ex.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, req.FilePath, err)
	}

	result := parseCopyRows(rows)
	result.Statement = stmt

	if failed := failedFiles(result); len(failed) > 0 {
		return nil, fmt.Errorf("%w: %s: %s", ErrLoadFailed, failed[0].File, failed[0].FirstError)
	}

	return result, nil
}
