// Package artifacts reads and names the files provider workers produce:
// delimited query/response tables, HTML summary reports, and the
// filename grammar that ties them to a business and a test run.
package artifacts

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// Row is one table record keyed by header name.
type Row map[string]string

// Table is a parsed delimited file with its header order preserved.
type Table struct {
	Header []string
	Rows   []Row
}

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	for _, h := range t.Header {
		if h == name {
			return true
		}
	}
	return false
}

// Records returns the rows as ordered field slices matching Header.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make([]string, len(t.Header))
		for i, h := range t.Header {
			rec[i] = row[h]
		}
		out = append(out, rec)
	}
	return out
}

// ParseDelimitedTable parses comma-separated text into rows keyed by the
// first row's fields. It never fails: rows whose field count differs from
// the header are dropped, and text with fewer than two rows yields nothing.
func ParseDelimitedTable(text string) []Row {
	return ParseTable(text).Rows
}

// ParseTable is ParseDelimitedTable that also returns the header.
func ParseTable(text string) *Table {
	records := readRecords(text)
	if len(records) < 2 {
		return &Table{}
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimRight(h, "\r")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	table := &Table{Header: header}
	for _, rec := range records[1:] {
		if len(rec) != len(header) {
			continue
		}
		row := make(Row, len(header))
		for i, h := range header {
			row[h] = strings.TrimRight(rec[i], "\r")
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// readRecords splits text into records, keeping quoted newlines and commas
// inside their field. Reading stops at the first unrecoverable record.
func readRecords(text string) [][]string {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			break
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// RenderDelimitedTable writes header and records as comma-separated text,
// quoting fields that contain delimiters, quotes, or line breaks.
func RenderDelimitedTable(header []string, records [][]string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(header)
	for _, rec := range records {
		_ = w.Write(rec)
	}
	w.Flush()
	return buf.String()
}
