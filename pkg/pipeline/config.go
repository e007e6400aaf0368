package pipeline

import (
	"errors"
	"fmt"

	"github.com/ethpandaops/mirror/pkg/load"
	"github.com/ethpandaops/mirror/pkg/naming"
	"github.com/ethpandaops/mirror/pkg/transfer"
	"github.com/ethpandaops/mirror/pkg/transform"
	"github.com/ethpandaops/mirror/pkg/warehouse"
)

// Static errors for dataset validation
var (
	ErrBucketRequired      = errors.New("dataset bucket is required")
	ErrFilePatternRequired = errors.New("dataset filePattern is required")
	ErrDuplicateDataset    = errors.New("dataset is defined more than once")
	ErrReplaceMultiMatch   = errors.New("mode replace requires multiMatch exactly-one")
)

// DataCheckConfig controls the post-load comparison
type DataCheckConfig struct {
	Enabled    bool `yaml:"enabled"`
	FailOnDiff bool `yaml:"failOnDiff"`
}

// Dataset describes where a dataset's files come from and where they land
type Dataset struct {
	Name   string `yaml:"name"`
	Bucket string `yaml:"bucket"`
	// Prefix and FilePattern may contain {run_date} and template actions
	Prefix      string `yaml:"prefix"`
	FilePattern string `yaml:"filePattern"`
	DateFormat  string `yaml:"dateFormat" default:"%Y-%m-%d"`
	// FileName overrides the local file name of a single download
	FileName string `yaml:"fileName"`
	// Table defaults to the dataset name in MIRROR_DB.MIRROR
	Table string `yaml:"table"`
	// Stage defaults to <DB>.<SCHEMA>.STG_<DATASET>
	Stage       string                    `yaml:"stage"`
	CreateStage bool                      `yaml:"createStage"`
	Mode        load.Mode                 `yaml:"mode" default:"append"`
	Force       bool                      `yaml:"force"`
	MultiMatch  transfer.MultiMatchPolicy `yaml:"multiMatch" default:"exactly-one"`
	// Duplicate keeps a local copy of the downloaded file; implied by the data check
	Duplicate     bool            `yaml:"duplicate"`
	DataCheck     DataCheckConfig `yaml:"dataCheck"`
	SkipTransform bool            `yaml:"skipTransform"`
	// Schedule is a cron expression used by the scheduler; empty means manual only
	Schedule string `yaml:"schedule"`
}

// Validate checks if the dataset definition is valid
func (d *Dataset) Validate() error {
	if err := transform.ValidateDataset(d.Name); err != nil {
		return err
	}

	if d.Bucket == "" {
		return fmt.Errorf("%s: %w", d.Name, ErrBucketRequired)
	}

	if d.FilePattern == "" {
		return fmt.Errorf("%s: %w", d.Name, ErrFilePatternRequired)
	}

	if err := d.Mode.Validate(); err != nil {
		return fmt.Errorf("%s: %w", d.Name, err)
	}

	if err := d.MultiMatch.Validate(); err != nil {
		return fmt.Errorf("%s: %w", d.Name, err)
	}

	// Replace deletes the table before each file, so later files would drop earlier ones
	if d.Mode == load.ModeReplace && d.MultiMatch == transfer.MultiMatchAll {
		return fmt.Errorf("%s: %w", d.Name, ErrReplaceMultiMatch)
	}

	if d.Stage != "" {
		if err := warehouse.ValidateIdentifier(d.Stage); err != nil {
			return fmt.Errorf("%s: %w", d.Name, err)
		}
	}

	return nil
}

// TableName returns the configured table or the dataset name
func (d *Dataset) TableName() string {
	if d.Table != "" {
		return d.Table
	}

	return d.Name
}

// StageName returns the configured stage or the derived default
func (d *Dataset) StageName(table naming.Table) string {
	if d.Stage != "" {
		return d.Stage
	}

	return table.StageName(d.Name)
}

// KeepDuplicate reports whether the downloaded file is copied aside before staging
func (d *Dataset) KeepDuplicate() bool {
	return d.Duplicate || d.DataCheck.Enabled
}

// ValidateDatasets validates every dataset and rejects duplicate names
func ValidateDatasets(datasets []Dataset) error {
	seen := make(map[string]bool, len(datasets))

	for i := range datasets {
		if err := datasets[i].Validate(); err != nil {
			return err
		}

		if seen[datasets[i].Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateDataset, datasets[i].Name)
		}

		seen[datasets[i].Name] = true
	}

	return nil
}
