package schema

import (
	"sort"
	"strings"
)

// SystemColumns are populated by the load itself or downstream tooling and are
// never expected in a source file
//
//nolint:gochecknoglobals // Fixed exclusion list
var SystemColumns = []string{
	"CREATED_BY",
	"CREATED_DTS",
	"FILE_DATE",
	"FILE_LAST_MODIFIED",
	"FILE_ROW_NUMBER",
	"FILENAME",
	"ROW_HASH_ID",
	"UNIQUE_HASH_ID",
	"UPDATED_DTS",
	"UPDATED_BY",
}

// Normalize upper-cases a column name, trims surrounding whitespace and
// replaces inner spaces with underscores
func Normalize(name string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

// NormalizeAll normalizes every name and keeps the order
func NormalizeAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Normalize(n)
	}

	return out
}

// ColumnSet is an unordered set of normalized column names
type ColumnSet map[string]struct{}

// NewColumnSet builds a set from raw names
func NewColumnSet(names ...string) ColumnSet {
	set := make(ColumnSet, len(names))
	for _, n := range names {
		set[Normalize(n)] = struct{}{}
	}

	return set
}

// Contains reports whether the normalized name is in the set
func (s ColumnSet) Contains(name string) bool {
	_, ok := s[Normalize(name)]
	return ok
}

// Equal reports whether both sets hold the same names
func (s ColumnSet) Equal(other ColumnSet) bool {
	if len(s) != len(other) {
		return false
	}

	for name := range s {
		if _, ok := other[name]; !ok {
			return false
		}
	}

	return true
}

// Difference returns the sorted names in s that are not in other
func (s ColumnSet) Difference(other ColumnSet) []string {
	var out []string

	for name := range s {
		if _, ok := other[name]; !ok {
			out = append(out, name)
		}
	}

	sort.Strings(out)

	return out
}

// Compare checks that the file and table expose the same column set. Order is
// ignored; names are normalized before comparing.
func Compare(fileColumns, tableColumns []string) error {
	fileSet := NewColumnSet(fileColumns...)
	tableSet := NewColumnSet(tableColumns...)

	if fileSet.Equal(tableSet) {
		return nil
	}

	return &MismatchError{
		FileColumns:  fileColumns,
		TableColumns: tableColumns,
		Missing:      tableSet.Difference(fileSet),
		Unexpected:   fileSet.Difference(tableSet),
	}
}
