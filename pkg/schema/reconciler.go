// Package schema reconciles the structure of a staged file with its target table
package schema

import (
	"context"
	"fmt"

	"github.com/ethpandaops/mirror/pkg/naming"
	"github.com/ethpandaops/mirror/pkg/observability"
	"github.com/ethpandaops/mirror/pkg/warehouse"
	"github.com/sirupsen/logrus"
)

// Params are the declared file format parameters of a dataset
type Params struct {
	Delimiter  string
	SkipHeader int
}

// Request describes one reconciliation
type Request struct {
	Dataset string
	Table   naming.Table
	// Location is the stage holding the single pending file, e.g. @DB.SCHEMA.STG_SALES
	Location    string
	Compression string
	// Params are the declared parameters; nil falls back to sniffing LocalPath
	Params    *Params
	LocalPath string
	// DeclaredColumns is the configured file schema, checked for drift only
	DeclaredColumns []string
}

// Result is the outcome of a successful reconciliation
type Result struct {
	FileColumns      []string
	TableColumns     []string
	FileFormat       FileFormat
	InspectionFormat FileFormat
	Sniffed          bool
}

// Reconciler runs the file format, inference and comparison steps in order
type Reconciler struct {
	log logrus.FieldLogger
}

// NewReconciler creates a reconciler
func NewReconciler(log logrus.FieldLogger) *Reconciler {
	return &Reconciler{log: log.WithField("component", "schema")}
}

// Reconcile creates the dataset's file formats, infers the staged file's
// columns and checks them against the table. The returned file columns are in
// file order and drive the load projection.
func (r *Reconciler) Reconcile(ctx context.Context, ex warehouse.Executor, req Request) (*Result, error) {
	log := r.log.WithFields(logrus.Fields{
		"dataset": req.Dataset,
		"table":   req.Table.Qualified(),
	})

	params, sniffed, err := r.resolveParams(req)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Sniffed: sniffed,
		FileFormat: FileFormat{
			Name:        req.Table.FileFormatName(req.Dataset),
			Delimiter:   params.Delimiter,
			SkipHeader:  params.SkipHeader,
			Compression: req.Compression,
		},
		InspectionFormat: FileFormat{
			Name:        req.Table.InspectionFileFormatName(req.Dataset),
			Delimiter:   params.Delimiter,
			SkipHeader:  params.SkipHeader,
			Compression: req.Compression,
			Inspection:  true,
		},
	}

	if err := EnsureFileFormat(ctx, ex, result.FileFormat); err != nil {
		return nil, err
	}

	if err := EnsureFileFormat(ctx, ex, result.InspectionFormat); err != nil {
		return nil, err
	}

	log.WithField("file_format", result.FileFormat.Name).Debug("File formats ready")

	result.FileColumns, err = InferFileColumns(ctx, ex, req.Location, result.InspectionFormat.Name)
	if err != nil {
		return nil, err
	}

	result.TableColumns, err = TableColumns(ctx, ex, req.Table)
	if err != nil {
		return nil, err
	}

	if len(req.DeclaredColumns) > 0 {
		if err := Compare(result.FileColumns, req.DeclaredColumns); err != nil {
			log.WithError(err).Warn("Configured file schema drifts from the staged file header")
		}
	}

	if err := Compare(result.FileColumns, result.TableColumns); err != nil {
		observability.RecordSchemaMismatch(req.Dataset)
		log.WithError(err).Error("Schema mismatch")

		return nil, err
	}

	log.WithField("columns", result.FileColumns).Info("File and table columns are equal")

	return result, nil
}

func (r *Reconciler) resolveParams(req Request) (Params, bool, error) {
	if req.Params != nil {
		params := *req.Params
		if params.Delimiter == "" {
			params.Delimiter = DefaultDelimiter
		}

		return params, false, nil
	}

	if req.LocalPath == "" {
		return Params{Delimiter: DefaultDelimiter, SkipHeader: DefaultSkipHeader}, false, nil
	}

	sniffed, err := SniffLocalFile(req.LocalPath)
	if err != nil {
		return Params{}, false, fmt.Errorf("failed to sniff %s: %w", req.LocalPath, err)
	}

	r.log.WithFields(logrus.Fields{
		"path":      req.LocalPath,
		"delimiter": sniffed.Delimiter,
	}).Info("No dataset config, using file format sniffed from local file")

	return Params{Delimiter: sniffed.Delimiter, SkipHeader: sniffed.SkipHeader}, true, nil
}
