package warehouse

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Define static errors
var (
	ErrColumnNotFound    = errors.New("column not found in row")
	ErrInvalidIdentifier = errors.New("invalid warehouse identifier")
)

//nolint:gochecknoglobals // Compiled once
var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*){0,2}$`)
	bareColumnPattern = regexp.MustCompile(`^[A-Z_][A-Z0-9_$]*$`)
)

// Row is one result row with upper-cased column names in result order
type Row struct {
	Columns []string
	Values  []sql.NullString
}

// NewRow builds a row of non-NULL values
func NewRow(columns []string, values ...string) Row {
	row := Row{Columns: columns, Values: make([]sql.NullString, len(values))}
	for i, v := range values {
		row.Values[i] = sql.NullString{String: v, Valid: true}
	}

	return row
}

// Get returns the value of a column by name, or false when missing or NULL
func (r Row) Get(column string) (string, bool) {
	column = strings.ToUpper(column)

	for i, c := range r.Columns {
		if c == column && i < len(r.Values) {
			return r.Values[i].String, r.Values[i].Valid
		}
	}

	return "", false
}

// String returns a column value with NULL and missing mapped to ""
func (r Row) String(column string) string {
	v, _ := r.Get(column)
	return v
}

// Int returns a column value parsed as an integer
func (r Row) Int(column string) (int64, error) {
	v, ok := r.Get(column)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrColumnNotFound, column)
	}

	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s is not an integer: %w", column, err)
	}

	return n, nil
}

// Strings returns every value in result order with NULL mapped to ""
func (r Row) Strings() []string {
	out := make([]string, len(r.Values))
	for i, v := range r.Values {
		out[i] = v.String
	}

	return out
}

// QuoteLiteral renders a single-quoted SQL string literal
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ValidateIdentifier checks a plain or dot-qualified identifier before it is
// interpolated into a statement
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}

	return nil
}

// ColumnIdentifier upper-cases a column name and double-quotes it unless it is
// a plain identifier
func ColumnIdentifier(col string) string {
	col = strings.ToUpper(col)
	if bareColumnPattern.MatchString(col) {
		return col
	}

	return `"` + strings.ReplaceAll(col, `"`, `""`) + `"`
}
