// Package dataset loads incident, station and supplied-count tables from CSV
// or XLSX files and writes results back out.
package dataset

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ErrMissingColumn is returned when a table lacks a required column.
var ErrMissingColumn = eris.New("dataset: missing required column")

// Table is a header plus string rows, independent of the source format.
type Table struct {
	Header []string
	Rows   [][]string
}

// ReadTable reads a CSV or XLSX file, picking the reader by extension.
func ReadTable(path string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path)
	case ".csv", ".txt", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "dataset: open csv")
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(f)
	default:
		return nil, eris.Errorf("dataset: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV reads a comma-separated table with a header row.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "dataset: read csv")
	}
	return newTable(records)
}

// ReadXLSX reads the first sheet of an XLSX workbook; its first row is the header.
func ReadXLSX(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("dataset: xlsx has no sheets")
	}

	sheet := f.Sheets[0]
	records := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		records = append(records, cells)
	}
	return newTable(records)
}

func newTable(records [][]string) (*Table, error) {
	if len(records) == 0 {
		return nil, eris.New("dataset: table has no header row")
	}
	header := make([]string, len(records[0]))
	for i, col := range records[0] {
		col = strings.TrimPrefix(col, "\ufeff")
		header[i] = strings.TrimSpace(col)
	}

	var rows [][]string
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	return &Table{Header: header, Rows: rows}, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Require returns ErrMissingColumn naming every absent column.
func (t *Table) Require(cols ...string) error {
	have := make(map[string]bool, len(t.Header))
	for _, h := range t.Header {
		have[h] = true
	}
	var missing []string
	for _, c := range cols {
		if !have[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return eris.Wrapf(ErrMissingColumn, "need %s, missing %s (have %s)",
			strings.Join(cols, ", "), strings.Join(missing, ", "), strings.Join(t.Header, ", "))
	}
	return nil
}

// decoder returns a csvutil decoder over the table rows. Rows are padded or
// truncated to the header width so a ragged row fails on its values rather
// than aborting the whole table.
func (t *Table) decoder() (*csvutil.Decoder, error) {
	dec, err := csvutil.NewDecoder(&rowReader{rows: t.Rows, width: len(t.Header)}, t.Header...)
	if err != nil {
		return nil, eris.Wrap(err, "dataset: build decoder")
	}
	return dec, nil
}

// rowReader adapts Table rows to csvutil.Reader.
type rowReader struct {
	rows  [][]string
	width int
	next  int
}

func (r *rowReader) Read() ([]string, error) {
	if r.next >= len(r.rows) {
		return nil, io.EOF
	}
	row := r.rows[r.next]
	r.next++

	out := make([]string, r.width)
	copy(out, row)
	return out, nil
}
