package handlers

import (
	"time"

	"github.com/ethpandaops/mirror/pkg/naming"
	"github.com/ethpandaops/mirror/pkg/pipeline"
	"github.com/gofiber/fiber/v3"
)

// DatasetSummary is the API view of a dataset
type DatasetSummary struct {
	Name          string     `json:"name"`
	Bucket        string     `json:"bucket"`
	Prefix        string     `json:"prefix"`
	FilePattern   string     `json:"file_pattern"`
	Table         string     `json:"table"`
	Stage         string     `json:"stage"`
	Mode          string     `json:"mode"`
	MultiMatch    string     `json:"multi_match"`
	Schedule      string     `json:"schedule,omitempty"`
	DataCheck     bool       `json:"data_check"`
	SkipTransform bool       `json:"skip_transform"`
	LastScheduled *time.Time `json:"last_scheduled,omitempty"`
}

// ListDatasets handles GET /api/v1/datasets
func (s *Server) ListDatasets(c fiber.Ctx) error {
	datasets := s.datasets.Datasets()
	summaries := make([]DatasetSummary, 0, len(datasets))

	for i := range datasets {
		summaries = append(summaries, s.summary(c, &datasets[i]))
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"datasets": summaries,
		"total":    len(summaries),
	})
}

// GetDataset handles GET /api/v1/datasets/:name
func (s *Server) GetDataset(c fiber.Ctx) error {
	ds, ok := s.datasets.Dataset(c.Params("name"))
	if !ok {
		return ErrDatasetNotFound
	}

	return c.Status(fiber.StatusOK).JSON(s.summary(c, &ds))
}

func (s *Server) summary(c fiber.Ctx, ds *pipeline.Dataset) DatasetSummary {
	table := naming.ResolveMirrorTable(ds.TableName())

	summary := DatasetSummary{
		Name:          ds.Name,
		Bucket:        ds.Bucket,
		Prefix:        ds.Prefix,
		FilePattern:   ds.FilePattern,
		Table:         table.Qualified(),
		Stage:         ds.StageName(table),
		Mode:          string(ds.Mode),
		MultiMatch:    string(ds.MultiMatch),
		Schedule:      ds.Schedule,
		DataCheck:     ds.DataCheck.Enabled,
		SkipTransform: ds.SkipTransform,
	}

	if s.schedule == nil {
		return summary
	}

	last, err := s.schedule.LastScheduled(c.Context(), ds.Name)
	if err != nil {
		s.log.WithError(err).WithField("dataset", ds.Name).Warn("Failed to read last schedule")
		return summary
	}

	if !last.IsZero() {
		summary.LastScheduled = &last
	}

	return summary
}
