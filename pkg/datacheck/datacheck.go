// Package datacheck compares a loaded file with the rows it produced in the mirror table
package datacheck

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ethpandaops/mirror/pkg/naming"
	"github.com/ethpandaops/mirror/pkg/warehouse"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrDataMismatch is returned when file and table rows differ and the check is configured to fail
	ErrDataMismatch = errors.New("file and table data differ")
	// ErrNoColumns is returned when no columns are given to compare
	ErrNoColumns = errors.New("no columns to compare")
	// ErrUnsupportedDelimiter is returned when the delimiter is not a single character
	ErrUnsupportedDelimiter = errors.New("delimiter must be a single character")
)

const (
	fieldSeparator = "\x1f"
	maxSamples     = 5
	maxTracked     = 1000
)

// Request describes one comparison
type Request struct {
	Dataset string
	Table   naming.Table
	// Columns are the file columns in file order
	Columns []string
	// LocalPath is the untouched local copy of the loaded file
	LocalPath string
	// FileName is the staged file name recorded in the FILENAME column
	FileName   string
	Delimiter  string
	SkipHeader int
}

// Result summarises a comparison
type Result struct {
	FileRows    int
	TableRows   int
	OnlyInFile  int
	OnlyInTable int
	// Samples holds a few rows found only in the file
	Samples []string
}

// Equal reports whether both sides hold the same multiset of rows
func (r *Result) Equal() bool {
	return r.OnlyInFile == 0 && r.OnlyInTable == 0
}

// Checker runs data comparisons
type Checker struct {
	log        logrus.FieldLogger
	failOnDiff bool
}

// NewChecker creates a checker. With failOnDiff set a difference is returned as ErrDataMismatch.
func NewChecker(log logrus.FieldLogger, failOnDiff bool) *Checker {
	return &Checker{
		log:        log.WithField("component", "datacheck"),
		failOnDiff: failOnDiff,
	}
}

// Check hashes every file row and every table row of the latest load of the
// file and compares them as multisets
func (c *Checker) Check(ctx context.Context, ex warehouse.Executor, req Request) (*Result, error) {
	query, err := buildQuery(req)
	if err != nil {
		return nil, err
	}

	var (
		fileRows  map[uint64]int
		fileTotal int
		samples   map[uint64]string
		tableRows []warehouse.Row
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		fileRows, samples, fileTotal, err = hashFile(gctx, req)

		return err
	})

	g.Go(func() error {
		var err error

		tableRows, err = ex.Query(gctx, query)
		if err != nil {
			return fmt.Errorf("failed to read table rows: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, row := range tableRows {
		fileRows[hashValues(row.Strings())]--
	}

	result := &Result{FileRows: fileTotal, TableRows: len(tableRows)}

	for h, n := range fileRows {
		switch {
		case n > 0:
			result.OnlyInFile += n
			if len(result.Samples) < maxSamples {
				result.Samples = append(result.Samples, samples[h])
			}
		case n < 0:
			result.OnlyInTable -= n
		}
	}

	log := c.log.WithFields(logrus.Fields{
		"dataset":       req.Dataset,
		"table":         req.Table.Qualified(),
		"file":          req.FileName,
		"file_rows":     result.FileRows,
		"table_rows":    result.TableRows,
		"only_in_file":  result.OnlyInFile,
		"only_in_table": result.OnlyInTable,
	})

	if result.Equal() {
		log.Info("File and table data are equal")
		return result, nil
	}

	log.WithField("samples", result.Samples).Warn("Differences between file and table")

	if c.failOnDiff {
		return result, fmt.Errorf("%w: %d rows only in file, %d rows only in table",
			ErrDataMismatch, result.OnlyInFile, result.OnlyInTable)
	}

	return result, nil
}

func buildQuery(req Request) (string, error) {
	if err := warehouse.ValidateIdentifier(req.Table.Qualified()); err != nil {
		return "", err
	}

	if len(req.Columns) == 0 {
		return "", ErrNoColumns
	}

	columns := make([]string, len(req.Columns))
	for i, col := range req.Columns {
		columns[i] = warehouse.ColumnIdentifier(col)
	}

	table := req.Table.Qualified()
	file := warehouse.QuoteLiteral(req.FileName)

	// CREATED_DTS is constant within one COPY, so the latest value marks the rows of the latest load
	return fmt.Sprintf("SELECT %s FROM %s WHERE FILENAME = %s AND CREATED_DTS = (SELECT MAX(CREATED_DTS) FROM %s WHERE FILENAME = %s)",
		strings.Join(columns, ", "), table, file, table, file), nil
}

func hashFile(ctx context.Context, req Request) (map[uint64]int, map[uint64]string, int, error) {
	if req.Delimiter != "" && utf8.RuneCountInString(req.Delimiter) != 1 {
		return nil, nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedDelimiter, req.Delimiter)
	}

	f, err := os.Open(req.LocalPath)
	if err != nil {
		return nil, nil, 0, err
	}
	defer f.Close()

	br := bufio.NewReader(f)

	var r io.Reader = br

	if magic, _ := br.Peek(2); bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()

		r = gz
	}

	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	if req.Delimiter != "" {
		cr.Comma, _ = utf8.DecodeRuneInString(req.Delimiter)
	}

	counts := make(map[uint64]int)
	samples := make(map[uint64]string)
	total := 0

	for line := 0; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, 0, err
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, nil, 0, fmt.Errorf("failed to parse %s: %w", req.LocalPath, err)
		}

		if line < req.SkipHeader {
			continue
		}

		h := hashValues(record)
		counts[h]++
		total++

		if _, ok := samples[h]; !ok && len(samples) < maxTracked {
			samples[h] = strings.Join(record, req.Delimiter)
		}
	}

	return counts, samples, total, nil
}

func hashValues(values []string) uint64 {
	normalized := make([]string, len(values))
	for i, v := range values {
		normalized[i] = strings.TrimSpace(v)
	}

	return xxh3.HashString(strings.Join(normalized, fieldSeparator))
}
