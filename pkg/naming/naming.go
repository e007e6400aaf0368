// Package naming derives the deterministic warehouse identifiers used by a mirror load
package naming

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	// DefaultDatabase is used when a table name carries fewer than three parts
	DefaultDatabase = "MIRROR_DB"
	// DefaultSchema is used when a table name carries fewer than three parts
	DefaultSchema = "MIRROR"

	fileFormatPrefix     = "FF_"
	inspectionSuffix     = "_TMP"
	stagePrefix          = "STG_"
	duplicateFilePrefix  = "duplicate_"
	qualifiedNameMaxPart = 3
)

// Table identifies a mirror table by database, schema and name
type Table struct {
	Database string
	Schema   string
	Name     string
}

// ResolveMirrorTable splits a dot-qualified table name into its parts.
// Names with fewer than three parts fall back to MIRROR_DB.MIRROR and use the
// last part as the table name.
func ResolveMirrorTable(name string) Table {
	parts := strings.SplitN(strings.TrimSpace(name), ".", qualifiedNameMaxPart)

	if len(parts) == qualifiedNameMaxPart {
		return Table{
			Database: strings.ToUpper(parts[0]),
			Schema:   strings.ToUpper(parts[1]),
			Name:     strings.ToUpper(parts[2]),
		}
	}

	return Table{
		Database: DefaultDatabase,
		Schema:   DefaultSchema,
		Name:     strings.ToUpper(parts[len(parts)-1]),
	}
}

// Qualified returns DATABASE.SCHEMA.TABLE
func (t Table) Qualified() string {
	return fmt.Sprintf("%s.%s.%s", t.Database, t.Schema, t.Name)
}

// String implements fmt.Stringer
func (t Table) String() string {
	return t.Qualified()
}

// FileFormatName returns the load file format for a dataset in the table's schema
func (t Table) FileFormatName(dataset string) string {
	return strings.ToUpper(fmt.Sprintf("%s.%s.%s%s", t.Database, t.Schema, fileFormatPrefix, dataset))
}

// InspectionFileFormatName returns the header-reading file format used for schema inference
func (t Table) InspectionFileFormatName(dataset string) string {
	return t.FileFormatName(dataset) + inspectionSuffix
}

// StageName returns the internal stage used for a dataset in the table's schema
func (t Table) StageName(dataset string) string {
	return strings.ToUpper(fmt.Sprintf("%s.%s.%s%s", t.Database, t.Schema, stagePrefix, dataset))
}

// FileFormatName returns MIRROR_DB.MIRROR.FF_<DATASET>
func FileFormatName(dataset string) string {
	return Table{Database: DefaultDatabase, Schema: DefaultSchema}.FileFormatName(dataset)
}

// DuplicatePath returns the sibling path used to keep a copy of a downloaded file
func DuplicatePath(path string) string {
	return filepath.Join(filepath.Dir(path), duplicateFilePrefix+filepath.Base(path))
}
