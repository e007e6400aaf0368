// Package pipeline runs the mirror stages for one dataset and run date
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ethpandaops/mirror/pkg/acquisition"
	"github.com/ethpandaops/mirror/pkg/datacheck"
	"github.com/ethpandaops/mirror/pkg/datasetconfig"
	"github.com/ethpandaops/mirror/pkg/load"
	"github.com/ethpandaops/mirror/pkg/objectstore"
	"github.com/ethpandaops/mirror/pkg/observability"
	"github.com/ethpandaops/mirror/pkg/schema"
	"github.com/ethpandaops/mirror/pkg/transfer"
	"github.com/ethpandaops/mirror/pkg/transform"
	"github.com/ethpandaops/mirror/pkg/warehouse"
	"github.com/sirupsen/logrus"
)

// Static errors for the pipeline
var (
	ErrUnknownDataset = errors.New("unknown dataset")
)

// Config configures the pipeline service
type Config struct {
	// ScratchDir is the root under which each run creates its own directory
	ScratchDir string
	Datasets   []Dataset
}

// Dependencies are the collaborators shared by every run
type Dependencies struct {
	Store       objectstore.Store
	Warehouse   warehouse.Factory
	Configs     datasetconfig.Source
	Transformer transform.Runner
}

// Runner executes a run
type Runner interface {
	Run(ctx context.Context, rc RunContext) (*Report, error)
}

// Service runs the stages strictly in order for one RunContext
type Service struct {
	log        logrus.FieldLogger
	scratchDir string
	datasets   map[string]Dataset
	deps       Dependencies

	acquisition *acquisition.Stage
	transfer    *transfer.Stage
	reconciler  *schema.Reconciler
	loader      *load.Engine
}

// NewService creates a pipeline service
func NewService(log logrus.FieldLogger, cfg *Config, deps Dependencies) (*Service, error) {
	if err := ValidateDatasets(cfg.Datasets); err != nil {
		return nil, err
	}

	if deps.Transformer == nil {
		deps.Transformer = transform.NoopRunner{}
	}

	if deps.Configs == nil {
		source, err := datasetconfig.NewSource(log, &datasetconfig.Config{}, deps.Store)
		if err != nil {
			return nil, err
		}

		deps.Configs = source
	}

	datasets := make(map[string]Dataset, len(cfg.Datasets))
	for _, ds := range cfg.Datasets {
		datasets[ds.Name] = ds
	}

	return &Service{
		log:         log.WithField("service", "pipeline"),
		scratchDir:  cfg.ScratchDir,
		datasets:    datasets,
		deps:        deps,
		acquisition: acquisition.NewStage(log, deps.Store),
		transfer:    transfer.NewStage(log, deps.Store),
		reconciler:  schema.NewReconciler(log),
		loader:      load.NewEngine(log),
	}, nil
}

// Dataset returns a dataset definition by name
func (s *Service) Dataset(name string) (Dataset, bool) {
	ds, ok := s.datasets[name]
	return ds, ok
}

// Datasets returns every dataset definition sorted by name
func (s *Service) Datasets() []Dataset {
	out := make([]Dataset, 0, len(s.datasets))
	for _, ds := range s.datasets {
		out = append(out, ds)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// NewRunContext builds the run context for a configured dataset
func (s *Service) NewRunContext(dataset string, intervalEnd time.Time) (RunContext, error) {
	ds, ok := s.datasets[dataset]
	if !ok {
		return RunContext{}, fmt.Errorf("%w: %s", ErrUnknownDataset, dataset)
	}

	return NewRunContext(ds.Name, ds.TableName(), intervalEnd), nil
}

// Run executes acquisition, transfer, schema reconciliation, load, the
// optional data check and the optional transform. A prefix without files ends
// the run with StatusNotFound and no error. The scratch directory is left for
// the caller to remove.
func (s *Service) Run(ctx context.Context, rc RunContext) (*Report, error) {
	ds, ok := s.datasets[rc.Dataset]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDataset, rc.Dataset)
	}

	r := &run{
		service: s,
		ds:      ds,
		rc:      rc,
		log: s.log.WithFields(logrus.Fields{
			"run_id":   rc.RunID,
			"dataset":  rc.Dataset,
			"run_date": rc.FormattedRunDate(),
		}),
		report: &Report{
			RunID:     rc.RunID,
			Dataset:   rc.Dataset,
			RunDate:   rc.FormattedRunDate(),
			Table:     rc.Table.Qualified(),
			StartedAt: time.Now(),
		},
	}

	r.log.Info("Starting run")

	err := r.execute(ctx)

	r.report.FinishedAt = time.Now()

	if err != nil {
		r.report.Status = StatusFailed
		r.log.WithError(err).Error("Run failed")

		return r.report, err
	}

	r.log.WithFields(logrus.Fields{
		"status":   r.report.Status,
		"duration": r.report.Duration(),
	}).Info("Run completed")

	return r.report, nil
}

// run holds the state of one execution
type run struct {
	service *Service
	ds      Dataset
	rc      RunContext
	log     logrus.FieldLogger
	report  *Report
}

func (r *run) execute(ctx context.Context) error {
	s := r.service

	var objects []objectstore.Object

	err := r.stage(StageAcquisition, func() error {
		var err error

		objects, err = s.acquisition.Discover(ctx, acquisition.Request{
			Dataset:    r.ds.Name,
			Bucket:     r.ds.Bucket,
			Prefix:     r.ds.Prefix,
			Pattern:    r.ds.FilePattern,
			DateFormat: r.ds.DateFormat,
		}, r.rc.RunDate)

		return err
	})
	if err != nil {
		return err
	}

	r.report.MatchedKeys = objectstore.Keys(objects)

	if len(objects) == 0 {
		r.report.Status = StatusNotFound
		return nil
	}

	if err := r.prepareScratch(); err != nil {
		return err
	}

	err = r.stage(StageDownload, func() error {
		var err error

		r.report.LocalPaths, err = s.transfer.Download(ctx, transfer.DownloadRequest{
			Bucket:    r.ds.Bucket,
			Objects:   objects,
			TargetDir: r.report.ScratchDir,
			FileName:  r.ds.FileName,
			Policy:    r.ds.MultiMatch,
		})

		return err
	})
	if err != nil {
		return err
	}

	var cfg *datasetconfig.DatasetConfig

	err = r.stage(StageConfig, func() error {
		var err error

		cfg, err = s.deps.Configs.GetConfigs(ctx, r.ds.Name, r.rc.RunDate)
		if errors.Is(err, datasetconfig.ErrDatasetNotConfigured) {
			r.log.WithError(err).Warn("No dataset config, file format will be sniffed")
			return nil
		}

		return err
	})
	if err != nil {
		return err
	}

	if cfg != nil {
		r.report.ConfigFile = cfg.Source
	}

	session, err := s.deps.Warehouse.Acquire(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := session.Close(); err != nil {
			r.log.WithError(err).Warn("Failed to release warehouse session")
		}
	}()

	stageName := r.ds.StageName(r.rc.Table)

	if r.ds.CreateStage {
		if err := s.transfer.EnsureStage(ctx, session, stageName); err != nil {
			return err
		}
	}

	allSkipped := true

	for _, localPath := range r.report.LocalPaths {
		fr, err := r.loadFile(ctx, session, stageName, localPath, cfg)
		if fr != nil {
			r.report.Files = append(r.report.Files, *fr)
		}

		if err != nil {
			return err
		}

		if !fr.Load.Skipped() {
			allSkipped = false
		}
	}

	if !r.ds.SkipTransform {
		err = r.stage(StageTransform, func() error {
			return s.deps.Transformer.Run(ctx, r.ds.Name, r.rc.RunDate)
		})
		if err != nil {
			return err
		}

		r.report.Transformed = true
	}

	r.report.Status = StatusSuccess
	if allSkipped {
		r.report.Status = StatusSkipped
	}

	return nil
}

// loadFile stages, reconciles, loads and optionally checks a single file.
// The stage holds at most one pending file so files are processed one by one.
func (r *run) loadFile(
	ctx context.Context,
	session warehouse.Session,
	stageName, localPath string,
	cfg *datasetconfig.DatasetConfig,
) (*FileReport, error) {
	s := r.service
	fr := &FileReport{LocalPath: localPath}

	var (
		params     *schema.Params
		compressed bool
		declared   []string
	)

	if cfg != nil {
		params = &schema.Params{Delimiter: cfg.FileFormat.Delimiter, SkipHeader: cfg.FileFormat.SkipHeader}
		compressed = cfg.FileFormat.Compressed
		declared = cfg.ColumnNames()
	}

	err := r.stage(StageStage, func() error {
		var err error

		fr.Staged, err = s.transfer.Stage(ctx, session, transfer.StageRequest{
			LocalPath:      localPath,
			StageName:      stageName,
			FileFormatName: r.rc.Table.FileFormatName(r.ds.Name),
			Duplicate:      r.ds.KeepDuplicate(),
			Compressed:     compressed,
		})

		return err
	})
	if err != nil {
		return fr, err
	}

	var reconciled *schema.Result

	err = r.stage(StageSchema, func() error {
		var err error

		reconciled, err = s.reconciler.Reconcile(ctx, session, schema.Request{
			Dataset:         r.ds.Name,
			Table:           r.rc.Table,
			Location:        "@" + stageName,
			Compression:     fr.Staged.Compression,
			Params:          params,
			LocalPath:       localPath,
			DeclaredColumns: declared,
		})

		return err
	})
	if err != nil {
		return fr, err
	}

	fr.Columns = reconciled.FileColumns
	r.report.Sniffed = r.report.Sniffed || reconciled.Sniffed

	err = r.stage(StageLoad, func() error {
		var err error

		fr.Load, err = s.loader.Load(ctx, session, load.Request{
			Dataset:        r.ds.Name,
			StageName:      stageName,
			Table:          r.rc.Table,
			Columns:        reconciled.FileColumns,
			FileFormatName: reconciled.FileFormat.Name,
			FilePath:       fr.Staged.FileName,
			Mode:           r.ds.Mode,
			Force:          r.ds.Force,
		})

		return err
	})
	if err != nil {
		return fr, err
	}

	if !r.ds.DataCheck.Enabled {
		return fr, nil
	}

	err = r.stage(StageDataCheck, func() error {
		var err error

		fr.DataCheck, err = datacheck.NewChecker(r.log, r.ds.DataCheck.FailOnDiff).Check(ctx, session, datacheck.Request{
			Dataset:    r.ds.Name,
			Table:      r.rc.Table,
			Columns:    reconciled.FileColumns,
			LocalPath:  fr.Staged.DuplicatePath,
			FileName:   fr.Staged.FileName,
			Delimiter:  reconciled.FileFormat.Delimiter,
			SkipHeader: reconciled.FileFormat.SkipHeader,
		})

		return err
	})

	return fr, err
}

func (r *run) prepareScratch() error {
	root := r.service.scratchDir
	if root == "" {
		root = os.TempDir()
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("failed to create scratch root: %w", err)
	}

	dir, err := os.MkdirTemp(root, fmt.Sprintf("%s-%s-", r.ds.Name, r.rc.FormattedRunDate()))
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}

	r.report.ScratchDir = filepath.Clean(dir)

	return nil
}

// stage times fn and records it in the report and metrics
func (r *run) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start)

	sr := StageReport{Name: name, Status: StatusSuccess, Duration: duration}
	if err != nil {
		sr.Status = StatusFailed
		sr.Error = err.Error()
	}

	r.report.Stages = append(r.report.Stages, sr)
	observability.RecordStage(r.ds.Name, name, sr.Status, duration.Seconds())

	r.log.WithFields(logrus.Fields{
		"stage":    name,
		"status":   sr.Status,
		"duration": duration,
	}).Debug("Stage finished")

	return err
}
