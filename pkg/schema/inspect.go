package schema

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethpandaops/mirror/pkg/naming"
	"github.com/ethpandaops/mirror/pkg/warehouse"
)

//nolint:gochecknoglobals // Compiled once
var locationPattern = regexp.MustCompile(`^@[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*){0,2}(/[A-Za-z0-9_.=/-]*)?$`)

// ValidateLocation checks a stage location such as @DB.SCHEMA.STG_SALES
func ValidateLocation(location string) error {
	if !locationPattern.MatchString(location) {
		return fmt.Errorf("%w: %q", ErrInvalidLocation, location)
	}

	return nil
}

// InferFileColumns counts the staged file's columns with INFER_SCHEMA and then
// reads its header row through the inspection file format. Names are returned
// normalized, in file order.
func InferFileColumns(ctx context.Context, ex warehouse.Executor, location, inspectionFormat string) ([]string, error) {
	if err := ValidateLocation(location); err != nil {
		return nil, err
	}

	if err := warehouse.ValidateIdentifier(inspectionFormat); err != nil {
		return nil, err
	}

	countQuery := fmt.Sprintf(
		"SELECT count(*) AS COL_CNT FROM TABLE(INFER_SCHEMA(LOCATION => %s, FILE_FORMAT => %s))",
		warehouse.QuoteLiteral(location), warehouse.QuoteLiteral(inspectionFormat),
	)

	rows, err := ex.Query(ctx, countQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to infer file schema: %w", err)
	}

	if len(rows) == 0 {
		return nil, ErrNoFileColumns
	}

	count, err := rows[0].Int("COL_CNT")
	if err != nil {
		return nil, fmt.Errorf("failed to read column count: %w", err)
	}

	if count <= 0 {
		return nil, ErrNoFileColumns
	}

	positions := make([]string, count)
	for i := range positions {
		positions[i] = fmt.Sprintf("$%d", i+1)
	}

	headerQuery := fmt.Sprintf("SELECT %s FROM %s (FILE_FORMAT => %s) LIMIT 1",
		strings.Join(positions, ","), location, warehouse.QuoteLiteral(inspectionFormat))

	rows, err = ex.Query(ctx, headerQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to read file header: %w", err)
	}

	if len(rows) == 0 {
		return nil, ErrNoFileColumns
	}

	return NormalizeAll(rows[0].Strings()), nil
}

// TableColumns returns the table's user columns ordered by position, with
// system columns excluded
func TableColumns(ctx context.Context, ex warehouse.Executor, table naming.Table) ([]string, error) {
	if err := warehouse.ValidateIdentifier(table.Database); err != nil {
		return nil, err
	}

	excluded := make([]string, len(SystemColumns))
	for i, c := range SystemColumns {
		excluded[i] = warehouse.QuoteLiteral(c)
	}

	query := fmt.Sprintf(
		"SELECT COLUMN_NAME FROM %s.INFORMATION_SCHEMA.COLUMNS WHERE TABLE_SCHEMA = %s AND TABLE_NAME = %s AND COLUMN_NAME NOT IN (%s) ORDER BY ORDINAL_POSITION",
		table.Database,
		warehouse.QuoteLiteral(table.Schema),
		warehouse.QuoteLiteral(table.Name),
		strings.Join(excluded, ","),
	)

	rows, err := ex.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	columns := make([]string, 0, len(rows))
	for _, row := range rows {
		columns = append(columns, row.String("COLUMN_NAME"))
	}

	return columns, nil
}
