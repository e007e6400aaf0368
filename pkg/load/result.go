package load

import (
	"strconv"
	"strings"

	"github.com/ethpandaops/mirror/pkg/warehouse"
)

// COPY statuses reported per file
const (
	FileStatusLoaded          = "LOADED"
	FileStatusPartiallyLoaded = "PARTIALLY_LOADED"
	FileStatusLoadFailed      = "LOAD_FAILED"
	FileStatusLoadSkipped     = "LOAD_SKIPPED"
)

// Result statuses
const (
	StatusLoaded          = "loaded"
	StatusPartiallyLoaded = "partially_loaded"
	StatusSkipped         = "skipped"
)

// FileResult is one row of the COPY output
type FileResult struct {
	File       string
	Status     string
	RowsParsed int64
	RowsLoaded int64
	ErrorsSeen int64
	FirstError string
}

// Result summarises a load
type Result struct {
	Status      string
	Mode        Mode
	Files       []FileResult
	RowsLoaded  int64
	RowsErrored int64
	FirstError  string
	Statement   string
}

// Skipped reports whether the warehouse processed no files
func (r *Result) Skipped() bool {
	return r.Status == StatusSkipped
}

// parseCopyRows turns COPY output rows into a result. A single status column
// without a FILE column means no files were processed.
func parseCopyRows(rows []warehouse.Row) *Result {
	result := &Result{Status: StatusSkipped}

	for _, row := range rows {
		file, ok := row.Get("FILE")
		if !ok {
			continue
		}

		fr := FileResult{
			File:       file,
			Status:     strings.ToUpper(row.String("STATUS")),
			RowsParsed: parseCount(row, "ROWS_PARSED"),
			RowsLoaded: parseCount(row, "ROWS_LOADED"),
			ErrorsSeen: parseCount(row, "ERRORS_SEEN"),
			FirstError: row.String("FIRST_ERROR"),
		}

		result.Files = append(result.Files, fr)
		result.RowsLoaded += fr.RowsLoaded
		result.RowsErrored += fr.ErrorsSeen

		if result.FirstError == "" && fr.FirstError != "" {
			result.FirstError = fr.FirstError
		}
	}

	if len(result.Files) == 0 {
		return result
	}

	result.Status = StatusLoaded
	skipped := 0

	for _, fr := range result.Files {
		switch fr.Status {
		case FileStatusPartiallyLoaded:
			result.Status = StatusPartiallyLoaded
		case FileStatusLoadSkipped:
			skipped++
		}
	}

	if skipped == len(result.Files) {
		result.Status = StatusSkipped
	}

	return result
}

func failedFiles(result *Result) []FileResult {
	var failed []FileResult

	for _, fr := range result.Files {
		if fr.Status == FileStatusLoadFailed {
			failed = append(failed, fr)
		}
	}

	return failed
}

func parseCount(row warehouse.Row, column string) int64 {
	v, ok := row.Get(column)
	if !ok {
		return 0
	}

	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0
	}

	return n
}
