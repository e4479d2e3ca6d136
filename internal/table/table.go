// Package table holds the in-memory CSV table a conversion works on.
//
// A Table is created per request from the uploaded bytes, renamed according
// to a header mapping, coerced, and serialized back to CSV text.
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrEmptyFile is returned when the upload has no header row.
	ErrEmptyFile = errors.New("csv file is empty")

	// ErrInvalidCSV is returned when the upload cannot be parsed as CSV.
	ErrInvalidCSV = errors.New("invalid csv")

	// ErrDuplicateHeader is returned when two columns share a header.
	ErrDuplicateHeader = errors.New("duplicate column header")
)

// Table is a header row plus data rows. Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Parse reads CSV bytes into a Table.
//
// Header cells are cleaned of whitespace, quotes and Excel formula wrappers.
// Blank headers are named column_<n> (1-based). Short rows are padded with
// empty cells; blank lines are skipped.
func Parse(data []byte) (*Table, error) {
	data, err := normalizeEncoding(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	if isEmptyRow(header) {
		return nil, ErrEmptyFile
	}

	t := &Table{Header: make([]string, len(header))}
	seen := make(map[string]int, len(header))
	for i, h := range header {
		h = CleanHeader(h)
		if h == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		if prev, dup := seen[h]; dup {
			return nil, fmt.Errorf("%w: %q appears in columns %d and %d", ErrDuplicateHeader, h, prev+1, i+1)
		}
		seen[h] = i
		t.Header[i] = h
	}

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}
		if isEmptyRow(row) {
			continue
		}
		if len(row) > len(t.Header) {
			line, _ := r.FieldPos(0)
			return nil, fmt.Errorf("%w: line %d has %d fields, header has %d",
				ErrInvalidCSV, line, len(row), len(t.Header))
		}
		for len(row) < len(t.Header) {
			row = append(row, "")
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// CleanHeader removes common CSV artifacts from a header cell: surrounding
// whitespace, an Excel formula wrapper (="...") and stray quotes.
func CleanHeader(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Rename returns a new table whose columns follow mapping. Columns whose
// header is not a mapping key are dropped, or kept under their original name
// when keepUnmapped is set. A kept column whose name is already taken by a
// mapped target gets an "_unmapped" suffix. Column order follows the source
// header.
func (t *Table) Rename(mapping map[string]string, keepUnmapped bool) *Table {
	taken := make(map[string]bool)
	unmapped := make(map[string]bool)
	for _, h := range t.Header {
		if target, ok := mapping[h]; ok {
			taken[target] = true
		} else {
			unmapped[h] = true
		}
	}

	var (
		header []string
		src    []int
	)
	for i, h := range t.Header {
		target, ok := mapping[h]
		switch {
		case ok:
			header = append(header, target)
		case keepUnmapped:
			name := uniqueName(h, taken, unmapped)
			taken[name] = true
			header = append(header, name)
		default:
			continue
		}
		src = append(src, i)
	}

	out := &Table{Header: header, Rows: make([][]string, len(t.Rows))}
	for r, row := range t.Rows {
		nr := make([]string, len(src))
		for j, i := range src {
			nr[j] = row[i]
		}
		out.Rows[r] = nr
	}
	return out
}

// uniqueName suffixes h when a mapped target already uses it, skipping names
// held by other source columns.
func uniqueName(h string, taken, reserved map[string]bool) string {
	if !taken[h] {
		return h
	}
	name := h + "_unmapped"
	for n := 2; taken[name] || reserved[name]; n++ {
		name = fmt.Sprintf("%s_unmapped_%d", h, n)
	}
	return name
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		Header: append([]string(nil), t.Header...),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Records returns each row as a header-keyed map.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, len(t.Rows))
	for r, row := range t.Rows {
		rec := make(map[string]string, len(t.Header))
		for i, h := range t.Header {
			rec[h] = row[i]
		}
		out[r] = rec
	}
	return out
}

// WriteCSV writes the header and rows as RFC 4180 CSV.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// Encode returns the table as CSV text.
func (t *Table) Encode() (string, error) {
	var buf bytes.Buffer
	if err := t.WriteCSV(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
