package schema

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

//nolint:gochecknoglobals // Candidate delimiters in order of preference
var delimiterCandidates = []string{",", "\t", ";", "|"}

// Sniffed holds the file format properties read from a local file
type Sniffed struct {
	Delimiter  string
	SkipHeader int
	Compressed bool
	Header     []string
}

// SniffLocalFile reads the header line of a local, optionally gzip compressed,
// CSV file and guesses its delimiter
func SniffLocalFile(path string) (*Sniffed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)

	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	compressed := bytes.Equal(magic, []byte{0x1f, 0x8b})

	var r io.Reader = br

	if compressed {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream: %w", err)
		}
		defer gz.Close()

		r = gz
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, ErrEmptyFile
	}

	delimiter := DetectDelimiter(line)

	cr := csv.NewReader(strings.NewReader(line))
	cr.Comma = rune(delimiter[0])
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	return &Sniffed{
		Delimiter:  delimiter,
		SkipHeader: DefaultSkipHeader,
		Compressed: compressed,
		Header:     NormalizeAll(header),
	}, nil
}

// DetectDelimiter picks the candidate delimiter that occurs most often in a line
func DetectDelimiter(line string) string {
	best := DefaultDelimiter
	bestCount := 0

	for _, d := range delimiterCandidates {
		if n := strings.Count(line, d); n > bestCount {
			best = d
			bestCount = n
		}
	}

	return best
}
