package table

import (
	"encoding/csv"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Row caps used by the pipeline call sites
const (
	DefaultMaxRows = 1000
	RecipeMaxRows  = 500
)

var numberPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseOptions controls Parse
type ParseOptions struct {
	// MaxRows truncates the row sequence to its first MaxRows rows (<= 0 means unlimited)
	MaxRows int
	// Comma is the field delimiter (default ',')
	Comma rune
}

// Table is an ordered sequence of rows plus the header order
type Table struct {
	Headers []string
	Rows    []Row
}

// Parse turns delimited text into typed rows. The header comes from the first
// record; cells are trimmed and cast to number or date where unambiguous.
// Rows beyond MaxRows are dropped without error.
func Parse(text string, opts ParseOptions) (*Table, error) {
	cr := newReader(strings.NewReader(text), opts)

	line := 0
	hdr, err := readRecord(cr, &line)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrHeaderMissing
		}
		return nil, &ParseError{Line: line, Err: err}
	}

	headers, index := normalizeHeaders(hdr)
	if len(headers) == 0 {
		return nil, ErrHeaderMissing
	}

	t := &Table{Headers: headers}
	for {
		if opts.MaxRows > 0 && len(t.Rows) >= opts.MaxRows {
			break
		}

		rec, err := readRecord(cr, &line)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Line: line, Err: err}
		}

		row := make(Row, len(headers))
		for i, name := range headers {
			si := index[i]
			if si >= len(rec) {
				continue
			}
			row[name] = Cast(strings.TrimSpace(rec[si]))
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// Headers reads the header record of text and returns its column names. It
// fails with ErrHeaderMissing when there is no header or no first data row.
func Headers(text string) ([]string, error) {
	cr := newReader(strings.NewReader(text), ParseOptions{})

	line := 0
	hdr, err := readRecord(cr, &line)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrHeaderMissing
		}
		return nil, &ParseError{Line: line, Err: err}
	}

	headers, _ := normalizeHeaders(hdr)
	if len(headers) == 0 {
		return nil, ErrHeaderMissing
	}

	// A header line without any data row does not describe a usable table
	if _, err := readRecord(cr, &line); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrHeaderMissing
		}
		return nil, &ParseError{Line: line, Err: err}
	}
	return headers, nil
}

// Cast converts a trimmed cell into a number, a date or a string
func Cast(s string) Value {
	if s == "" {
		return String("")
	}
	if numberPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return Number(f)
		}
	}
	if len(s) >= 10 && s[4] == '-' {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return Date(t)
			}
		}
	}
	return String(s)
}

func newReader(r io.Reader, opts ParseOptions) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	return cr
}

// readRecord returns the next non-blank record
func readRecord(cr *csv.Reader, line *int) ([]string, error) {
	for {
		rec, err := cr.Read()
		*line++
		if err != nil {
			return nil, err
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		return rec, nil
	}
}

// normalizeHeaders trims names, strips a BOM and drops blank or repeated
// names. index maps each kept header to its source field position.
func normalizeHeaders(hdr []string) ([]string, []int) {
	seen := make(map[string]bool, len(hdr))
	var headers []string
	var index []int
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		h = strings.TrimSpace(h)
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		headers = append(headers, h)
		index = append(index, i)
	}
	return headers, index
}
