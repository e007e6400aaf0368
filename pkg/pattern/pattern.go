// Package pattern resolves run-date templated prefixes and file patterns and filters object keys
package pattern

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethpandaops/mirror/pkg/rendering"
	"github.com/ncruces/go-strftime"
)

const (
	// Placeholder is replaced by the formatted run date
	Placeholder = "{run_date}"
	// DefaultDateFormat is the strftime format used when none is configured
	DefaultDateFormat = "%Y-%m-%d"

	templateMarker = "{{"
)

// Resolver resolves templates for one dataset
type Resolver struct {
	Dataset    string
	DateFormat string

	engine *rendering.TemplateEngine
}

// NewResolver creates a resolver for a dataset and strftime date format
func NewResolver(dataset, dateFormat string) *Resolver {
	if dateFormat == "" {
		dateFormat = DefaultDateFormat
	}

	return &Resolver{
		Dataset:    dataset,
		DateFormat: dateFormat,
		engine:     rendering.NewTemplateEngine(),
	}
}

// FormatDate formats the run date with the resolver's date format
func (r *Resolver) FormatDate(runDate time.Time) string {
	return strftime.Format(r.DateFormat, runDate.UTC())
}

// Resolve substitutes the run date into a template. Templates without a
// placeholder or template action are returned unchanged.
func (r *Resolver) Resolve(template string, runDate time.Time) (string, error) {
	return r.resolve(template, runDate, r.FormatDate(runDate))
}

// Compile resolves a file pattern and compiles it. The substituted date is
// quoted so date separators never act as regexp operators.
func (r *Resolver) Compile(template string, runDate time.Time) (*regexp.Regexp, error) {
	resolved, err := r.resolve(template, runDate, regexp.QuoteMeta(r.FormatDate(runDate)))
	if err != nil {
		return nil, err
	}

	re, err := regexp.Compile(resolved)
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", resolved, err)
	}

	return re, nil
}

func (r *Resolver) resolve(template string, runDate time.Time, formatted string) (string, error) {
	out := strings.ReplaceAll(template, Placeholder, formatted)

	if !strings.Contains(out, templateMarker) {
		return out, nil
	}

	rendered, err := r.engine.Render("pattern", out, rendering.BuildVariables(r.Dataset, formatted, runDate))
	if err != nil {
		return "", fmt.Errorf("failed to render %q: %w", template, err)
	}

	return rendered, nil
}

// Resolve substitutes the run date, formatted with dateFormat, into a template
func Resolve(template string, runDate time.Time, dateFormat string) (string, error) {
	return NewResolver("", dateFormat).Resolve(template, runDate)
}

// Compile substitutes the quoted run date into a template and compiles it
func Compile(template string, runDate time.Time, dateFormat string) (*regexp.Regexp, error) {
	return NewResolver("", dateFormat).Compile(template, runDate)
}

// FilterKeys returns the keys in which the pattern is found, in input order
func FilterKeys(keys []string, re *regexp.Regexp) []string {
	matched := make([]string, 0, len(keys))

	for _, key := range keys {
		if re.MatchString(key) {
			matched = append(matched, key)
		}
	}

	return matched
}
