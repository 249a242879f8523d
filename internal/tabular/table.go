// Package tabular loads a delimited text file into an in-memory Table of
// string cells and exposes it by row and column position.
package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"datasync/internal/datasource"
)

const utf8BOM = "\uFEFF"

// Table is a loaded CSV. Rows may be ragged; ColumnCount is the widest of
// the header row and every data row.
type Table struct {
	headers []string
	rows    [][]string
	cols    int
	hasHead bool
	headLen int
}

// NewTable builds a Table from already-split cells. headers may be nil when
// the data has no header row.
func NewTable(headers []string, rows [][]string) *Table {
	t := &Table{rows: rows, hasHead: headers != nil, headLen: len(headers)}
	t.cols = len(headers)
	for _, r := range rows {
		t.cols = max(t.cols, len(r))
	}
	t.headers = make([]string, t.cols)
	for i, h := range headers {
		t.headers[i] = normalizeHeader(h)
	}
	return t
}

// Load reads src with opt.
func Load(ctx context.Context, src datasource.Source, opt Options) (*Table, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	enc, err := LookupEncoding(opt.Encoding)
	if err != nil {
		return nil, err
	}

	rc, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("tabular: open %s: %w", datasource.NameOf(src), err)
	}
	defer rc.Close()

	// A BOM, when present, wins over the configured encoding.
	r := transform.NewReader(rc, unicode.BOMOverride(enc.NewDecoder()))

	cr := csv.NewReader(r)
	cr.Comma = opt.Separator
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = false

	var headers []string
	if opt.HasHeaderRow {
		h, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return NewTable([]string{}, nil), nil
		}
		if err != nil {
			return nil, fmt.Errorf("tabular: read header: %w", err)
		}
		headers = h
	}

	for i := 0; i < opt.Skip; i++ {
		if _, err := cr.Read(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("tabular: skip row %d: %w", i+1, err)
		}
	}

	var rows [][]string
	for opt.SampleRows == 0 || len(rows) < opt.SampleRows {
		if len(rows)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tabular: %w", err)
		}
		if opt.TrimSpace {
			for i := range rec {
				rec[i] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, rec)
	}

	return NewTable(headers, rows), nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, utf8BOM)
	return norm.NFC.String(strings.TrimSpace(h))
}

// HasHeaderRow reports whether column names came from the data.
func (t *Table) HasHeaderRow() bool { return t.hasHead }

// ColumnCount is the number of CSV positions.
func (t *Table) ColumnCount() int { return t.cols }

// ColumnName returns the header at i, or "" without a header row or when i
// is out of range.
func (t *Table) ColumnName(i int) string {
	if i < 0 || i >= len(t.headers) {
		return ""
	}
	return t.headers[i]
}

// Headers returns a copy of every header, one per position.
func (t *Table) Headers() []string {
	out := make([]string, len(t.headers))
	copy(out, t.headers)
	return out
}

// RowCount is the number of data rows loaded.
func (t *Table) RowCount() int { return len(t.rows) }

// RowSize is the number of cells in row.
func (t *Table) RowSize(row int) int {
	if row < 0 || row >= len(t.rows) {
		return 0
	}
	return len(t.rows[row])
}

// Value returns a cell, or "" for positions past the end of a ragged row.
func (t *Table) Value(row, col int) string {
	if row < 0 || row >= len(t.rows) || col < 0 || col >= len(t.rows[row]) {
		return ""
	}
	return t.rows[row][col]
}

// RowsContainSameNumberOfColumns reports whether every data row (and the
// header row, when present) has exactly ColumnCount cells.
func (t *Table) RowsContainSameNumberOfColumns() bool {
	if t.hasHead && t.headLen != t.cols {
		return false
	}
	for _, r := range t.rows {
		if len(r) != t.cols {
			return false
		}
	}
	return true
}
