package pipeline

import (
	"time"

	"github.com/ethpandaops/mirror/pkg/datacheck"
	"github.com/ethpandaops/mirror/pkg/load"
	"github.com/ethpandaops/mirror/pkg/transfer"
)

// Run statuses
const (
	StatusSuccess  = "success"
	StatusNotFound = "not_found"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// Stage names used in reports and metrics
const (
	StageAcquisition = "acquisition"
	StageDownload    = "download"
	StageConfig      = "config"
	StageStage       = "stage"
	StageSchema      = "schema"
	StageLoad        = "load"
	StageDataCheck   = "datacheck"
	StageTransform   = "transform"
)

// StageReport records the outcome of a single stage
type StageReport struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// FileReport records what happened to one downloaded file
type FileReport struct {
	LocalPath string              `json:"local_path"`
	Staged    *transfer.StagedFile `json:"staged,omitempty"`
	Columns   []string            `json:"columns,omitempty"`
	Load      *load.Result        `json:"load,omitempty"`
	DataCheck *datacheck.Result   `json:"data_check,omitempty"`
}

// Report is the stage-level record of a run
type Report struct {
	RunID       string        `json:"run_id"`
	Dataset     string        `json:"dataset"`
	RunDate     string        `json:"run_date"`
	Table       string        `json:"table"`
	Status      string        `json:"status"`
	MatchedKeys []string      `json:"matched_keys"`
	LocalPaths  []string      `json:"local_paths"`
	ScratchDir  string        `json:"scratch_dir,omitempty"`
	ConfigFile  string        `json:"config_file,omitempty"`
	Sniffed     bool          `json:"sniffed"`
	Files       []FileReport  `json:"files"`
	Transformed bool          `json:"transformed"`
	Stages      []StageReport `json:"stages"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
}

// Duration returns the wall time of the run
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
