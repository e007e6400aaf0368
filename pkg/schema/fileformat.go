package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethpandaops/mirror/pkg/warehouse"
)

const (
	// DefaultDelimiter is used when neither config nor sniffing yields one
	DefaultDelimiter = ","
	// DefaultSkipHeader skips the single header line
	DefaultSkipHeader = 1
)

// FileFormat describes a CSV file format object
type FileFormat struct {
	Name        string
	Delimiter   string
	SkipHeader  int
	Compression string
	// Inspection formats keep the header row readable and fail on column count mismatch
	Inspection bool
}

// SQL renders the CREATE OR REPLACE FILE FORMAT statement
func (f FileFormat) SQL() (string, error) {
	if err := warehouse.ValidateIdentifier(f.Name); err != nil {
		return "", err
	}

	delimiter := f.Delimiter
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}

	skip := f.SkipHeader
	if f.Inspection {
		skip--
	}

	if skip < 0 {
		skip = 0
	}

	compression := strings.ToUpper(f.Compression)
	if compression == "" {
		compression = "NONE"
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "CREATE OR REPLACE FILE FORMAT %s\n", f.Name)
	sb.WriteString("TYPE = CSV\n")
	sb.WriteString("FIELD_OPTIONALLY_ENCLOSED_BY = '\"'\n")
	fmt.Fprintf(&sb, "FIELD_DELIMITER = %s\n", warehouse.QuoteLiteral(delimiter))
	fmt.Fprintf(&sb, "SKIP_HEADER = %d\n", skip)
	sb.WriteString("TRIM_SPACE = TRUE\n")
	sb.WriteString("REPLACE_INVALID_CHARACTERS = TRUE\n")
	sb.WriteString("DATE_FORMAT = 'YYYY-MM-DD'\n")
	sb.WriteString("TIME_FORMAT = AUTO\n")
	sb.WriteString("TIMESTAMP_FORMAT = AUTO\n")

	if f.Inspection {
		sb.WriteString("ERROR_ON_COLUMN_COUNT_MISMATCH = TRUE\n")
	}

	fmt.Fprintf(&sb, "COMPRESSION = %s", compression)

	return sb.String(), nil
}

// EnsureFileFormat creates or replaces the file format
func EnsureFileFormat(ctx context.Context, ex warehouse.Executor, f FileFormat) error {
	stmt, err := f.SQL()
	if err != nil {
		return err
	}

	if err := ex.Execute(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create file format %s: %w", f.Name, err)
	}

	return nil
}
