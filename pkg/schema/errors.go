package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Static errors for schema reconciliation
var (
	// ErrSchemaMismatch is returned when file and table column sets differ
	ErrSchemaMismatch = errors.New("file columns do not match table columns")
	// ErrTableNotFound is returned when the target table has no user columns
	ErrTableNotFound = errors.New("target table not found or has no columns")
	// ErrNoFileColumns is returned when inference finds no columns in the staged file
	ErrNoFileColumns = errors.New("no columns inferred from staged file")
	// ErrInvalidLocation is returned for a stage location that cannot be interpolated safely
	ErrInvalidLocation = errors.New("invalid stage location")
	// ErrEmptyFile is returned when a local file has no header line
	ErrEmptyFile = errors.New("file has no header line")
)

// MismatchError carries both sides of a failed comparison
type MismatchError struct {
	FileColumns  []string
	TableColumns []string
	// Missing are table columns absent from the file
	Missing []string
	// Unexpected are file columns absent from the table
	Unexpected []string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("file columns: %s and table columns: %s are not equal (missing: [%s], unexpected: [%s])",
		strings.Join(e.FileColumns, ","),
		strings.Join(e.TableColumns, ","),
		strings.Join(e.Missing, ","),
		strings.Join(e.Unexpected, ","),
	)
}

// Is lets errors.Is match ErrSchemaMismatch
func (e *MismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}
