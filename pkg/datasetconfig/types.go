// Package datasetconfig reads per-dataset file format and schema declarations
package datasetconfig

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// Static errors for dataset configuration
var (
	// ErrDatasetNotConfigured is returned when no config file declares the dataset
	ErrDatasetNotConfigured = errors.New("dataset is not configured")
	// ErrDuplicateDataset is returned when more than one file declares the dataset
	ErrDuplicateDataset = errors.New("dataset is declared more than once")
	// ErrInvalidFileSchema is returned when file_schema is neither a mapping nor a list
	ErrInvalidFileSchema = errors.New("file_schema must be a mapping or a list")
	// ErrInvalidDelimiter is returned when the delimiter is not a single character
	ErrInvalidDelimiter = errors.New("delimiter must be a single character")
)

// Source returns the configuration of a dataset for a run. Implementations
// read fresh on every call.
type Source interface {
	GetConfigs(ctx context.Context, dataset string, runDate time.Time) (*DatasetConfig, error)
}

// FileFormatParams are the declared CSV properties of a dataset's files
type FileFormatParams struct {
	Delimiter  string `yaml:"delimiter" default:","`
	SkipHeader int    `yaml:"skip_header" default:"1"`
	Compressed bool   `yaml:"compressed"`
}

// Validate checks the format parameters
func (p FileFormatParams) Validate() error {
	if utf8.RuneCountInString(p.Delimiter) != 1 {
		return fmt.Errorf("%w: %q", ErrInvalidDelimiter, p.Delimiter)
	}

	return nil
}

// Column is one declared file column
type Column struct {
	Name string
	Type string
}

// DatasetConfig is the mirror section of a dataset's configuration
type DatasetConfig struct {
	Dataset    string
	FileFormat FileFormatParams
	// FileSchema keeps the declaration order
	FileSchema []Column
	// Source is the file the declaration was read from
	Source string
}

// ColumnNames returns the declared column names in order
func (c *DatasetConfig) ColumnNames() []string {
	names := make([]string, len(c.FileSchema))
	for i, col := range c.FileSchema {
		names[i] = col.Name
	}

	return names
}
