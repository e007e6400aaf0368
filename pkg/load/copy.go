package load

import (
	"fmt"
	"strings"

	"github.com/ethpandaops/mirror/pkg/warehouse"
)

// metadataColumns are appended after the user columns in this order
//
//nolint:gochecknoglobals // Fixed projection
var metadataColumns = []string{
	"metadata$filename AS FILENAME",
	"metadata$file_row_number AS FILE_ROW_NUMBER",
	"metadata$file_last_modified AS FILE_LAST_MODIFIED",
	"current_timestamp AS CREATED_DTS",
	"current_user AS CREATED_BY",
}

// BuildCopy renders the COPY INTO statement for one staged file. File columns
// are projected positionally, followed by the load metadata columns.
func BuildCopy(req Request, force bool) (string, error) {
	for _, id := range []string{req.Table.Qualified(), req.StageName, req.FileFormatName} {
		if err := warehouse.ValidateIdentifier(id); err != nil {
			return "", err
		}
	}

	if len(req.Columns) == 0 {
		return "", ErrNoColumns
	}

	if req.FilePath == "" {
		return "", ErrNoFile
	}

	projection := make([]string, 0, len(req.Columns)+len(metadataColumns))
	for i, col := range req.Columns {
		projection = append(projection, fmt.Sprintf("$%d AS %s", i+1, warehouse.ColumnIdentifier(col)))
	}

	projection = append(projection, metadataColumns...)

	var sb strings.Builder

	fmt.Fprintf(&sb, "COPY INTO %s FROM (\n", req.Table.Qualified())
	fmt.Fprintf(&sb, "  SELECT %s\n", strings.Join(projection, ", "))
	fmt.Fprintf(&sb, "  FROM @%s)\n", req.StageName)
	fmt.Fprintf(&sb, "FILES = (%s)\n", warehouse.QuoteLiteral(req.FilePath))
	fmt.Fprintf(&sb, "FILE_FORMAT = (FORMAT_NAME = %s)\n", req.FileFormatName)
	fmt.Fprintf(&sb, "FORCE = %s\n", strings.ToUpper(fmt.Sprint(force)))
	sb.WriteString("ON_ERROR = CONTINUE\n")
	sb.WriteString("PURGE = TRUE")

	return sb.String(), nil
}

// BuildDelete renders the statement that clears the table before a replace load
func BuildDelete(req Request) (string, error) {
	if err := warehouse.ValidateIdentifier(req.Table.Qualified()); err != nil {
		return "", err
	}

	return "DELETE FROM " + req.Table.Qualified(), nil
}
