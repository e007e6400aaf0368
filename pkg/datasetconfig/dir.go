package datasetconfig

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/ethpandaops/mirror/pkg/rendering"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const runDateLayout = "2006-01-02"

// DirSource reads dataset declarations from YAML files in a local directory.
// Files are rendered as templates before decoding.
type DirSource struct {
	log    logrus.FieldLogger
	dir    string
	engine *rendering.TemplateEngine
}

// NewDirSource creates a source over a local directory
func NewDirSource(log logrus.FieldLogger, dir string) *DirSource {
	return &DirSource{
		log:    log.WithField("component", "datasetconfig"),
		dir:    dir,
		engine: rendering.NewTemplateEngine(),
	}
}

type datasetSection struct {
	Mirror yaml.Node `yaml:"mirror"`
}

type mirrorSection struct {
	FileFormatParams FileFormatParams `yaml:"file_format_params"`
	FileSchema       yaml.Node        `yaml:"file_schema"`
}

// GetConfigs walks the directory and returns the dataset's declaration
func (s *DirSource) GetConfigs(ctx context.Context, dataset string, runDate time.Time) (*DatasetConfig, error) {
	files, err := discover(s.dir)
	if err != nil {
		return nil, err
	}

	vars := rendering.BuildVariables(dataset, runDate.UTC().Format(runDateLayout), runDate)

	var found *DatasetConfig

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cfg, err := s.parseFile(file, dataset, vars)
		if err != nil {
			return nil, err
		}

		if cfg == nil {
			continue
		}

		if found != nil {
			return nil, fmt.Errorf("%w: %s in %s and %s", ErrDuplicateDataset, dataset, found.Source, cfg.Source)
		}

		found = cfg
	}

	if found == nil {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotConfigured, dataset)
	}

	s.log.WithFields(logrus.Fields{
		"dataset": dataset,
		"file":    found.Source,
	}).Debug("Read dataset config")

	return found, nil
}

func (s *DirSource) parseFile(file, dataset string, vars map[string]interface{}) (*DatasetConfig, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", file, err)
	}

	rendered, err := s.engine.Render(filepath.Base(file), string(content), vars)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", file, err)
	}

	var doc map[string]yaml.Node
	if err := yaml.Unmarshal([]byte(rendered), &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", file, err)
	}

	node, ok := doc[dataset]
	if !ok {
		return nil, nil
	}

	var section datasetSection
	if err := node.Decode(&section); err != nil {
		return nil, fmt.Errorf("failed to decode %s in %s: %w", dataset, file, err)
	}

	if section.Mirror.Kind == 0 {
		return nil, nil
	}

	var mirror mirrorSection
	if err := defaults.Set(&mirror.FileFormatParams); err != nil {
		return nil, fmt.Errorf("failed to set defaults: %w", err)
	}

	if err := section.Mirror.Decode(&mirror); err != nil {
		return nil, fmt.Errorf("failed to decode %s.mirror in %s: %w", dataset, file, err)
	}

	if err := mirror.FileFormatParams.Validate(); err != nil {
		return nil, fmt.Errorf("%s.mirror.file_format_params in %s: %w", dataset, file, err)
	}

	columns, err := decodeFileSchema(&mirror.FileSchema)
	if err != nil {
		return nil, fmt.Errorf("%s.mirror.file_schema in %s: %w", dataset, file, err)
	}

	return &DatasetConfig{
		Dataset:    dataset,
		FileFormat: mirror.FileFormatParams,
		FileSchema: columns,
		Source:     file,
	}, nil
}

// decodeFileSchema keeps declaration order. A mapping declares name: type
// pairs; a list declares names only.
func decodeFileSchema(node *yaml.Node) ([]Column, error) {
	switch node.Kind {
	case 0:
		return nil, nil
	case yaml.MappingNode:
		columns := make([]Column, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			columns = append(columns, Column{
				Name: node.Content[i].Value,
				Type: node.Content[i+1].Value,
			})
		}

		return columns, nil
	case yaml.SequenceNode:
		columns := make([]Column, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, ErrInvalidFileSchema
			}

			columns = append(columns, Column{Name: item.Value})
		}

		return columns, nil
	default:
		return nil, ErrInvalidFileSchema
	}
}

func discover(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}

			return err
		}

		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to discover config files in %s: %w", dir, err)
	}

	sort.Strings(files)

	return files, nil
}
