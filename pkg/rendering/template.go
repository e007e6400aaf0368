// Package rendering provides template rendering for dataset prefixes, file patterns and config files
package rendering

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

// TemplateEngine provides template rendering with Sprig functions
type TemplateEngine struct {
	funcMap template.FuncMap
}

// NewTemplateEngine creates a new template engine with Sprig functions
func NewTemplateEngine() *TemplateEngine {
	return &TemplateEngine{
		funcMap: sprig.TxtFuncMap(),
	}
}

// Render renders a template with the given variables
func (t *TemplateEngine) Render(name, content string, variables map[string]interface{}) (string, error) {
	tmpl, err := template.New(name).Funcs(t.funcMap).Option("missingkey=error").Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, variables); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// BuildVariables builds the template variables available to every run-scoped template.
// run_date is the already formatted run date, run_time the underlying UTC day.
func BuildVariables(dataset, formattedRunDate string, runDate time.Time) map[string]interface{} {
	return map[string]interface{}{
		"dataset":  dataset,
		"run_date": formattedRunDate,
		"run_time": runDate.UTC(),
	}
}
