package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// DefaultSheetName is the dataset name assigned to delimited-text sources,
// which carry exactly one sheet.
const DefaultSheetName = "Sheet1"

// Kind identifies the source file format.
type Kind int

const (
	KindUnknown Kind = iota
	KindDelimited
	KindWorkbook
)

// IngestionError indicates the source file could not be decoded or contained
// no usable sheets or rows. It is fatal to the whole run.
type IngestionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *IngestionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest %s: %s: %v", filepath.Base(e.Path), e.Reason, e.Err)
	}
	return fmt.Sprintf("ingest %s: %s", filepath.Base(e.Path), e.Reason)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// Dataset is one named tabular sheet: a header plus rows of string cells.
// It is immutable after ingestion; later stages only read it.
type Dataset struct {
	Name    string
	Columns []string
	Rows    [][]string
}

// Len returns the number of data rows.
func (d *Dataset) Len() int { return len(d.Rows) }

func (d *Dataset) columnIndex(name string) int {
	for i, c := range d.Columns {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the dataset has a column with the given name
// (case-insensitive).
func (d *Dataset) HasColumn(name string) bool { return d.columnIndex(name) >= 0 }

// Column returns all cell values of the named column in row order.
func (d *Dataset) Column(name string) ([]string, bool) {
	idx := d.columnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, 0, len(d.Rows))
	for _, r := range d.Rows {
		if idx < len(r) {
			out = append(out, r[idx])
		} else {
			out = append(out, "")
		}
	}
	return out, true
}

// NumericColumn returns the parseable numeric values of the named column in
// row order; blank and non-numeric cells are skipped.
func (d *Dataset) NumericColumn(name string) ([]float64, bool) {
	vals, ok := d.Column(name)
	if !ok {
		return nil, false
	}
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if f, ok := ParseNumber(v); ok {
			out = append(out, f)
		}
	}
	return out, true
}

// DetectKind classifies a source path by extension.
func DetectKind(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return KindDelimited
	case ".xlsx", ".xlsm":
		return KindWorkbook
	default:
		return KindUnknown
	}
}

// ReadFile parses a tabular source file into one or more named datasets.
// Delimited text yields exactly one dataset under DefaultSheetName; a
// workbook yields one dataset per worksheet in workbook order. Sheets with
// no data rows are skipped; if none remain the file is rejected.
func ReadFile(path string) ([]Dataset, error) {
	switch DetectKind(path) {
	case KindDelimited:
		ds, err := readDelimited(path)
		if err != nil {
			return nil, err
		}
		return []Dataset{*ds}, nil
	case KindWorkbook:
		return readWorkbook(path)
	default:
		return nil, &IngestionError{Path: path, Reason: fmt.Sprintf("unsupported file type %q", filepath.Ext(path))}
	}
}

func readDelimited(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IngestionError{Path: path, Reason: "open", Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = sniffDelimiter(path)

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &IngestionError{Path: path, Reason: "empty file"}
		}
		return nil, &IngestionError{Path: path, Reason: "read header", Err: err}
	}
	ncol := len(header)
	cols := make([]string, ncol)
	for i, h := range header {
		cols[i] = strings.TrimSpace(h)
	}

	ds := &Dataset{Name: DefaultSheetName, Columns: cols}
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, &IngestionError{Path: path, Reason: fmt.Sprintf("read row %d", len(ds.Rows)+1), Err: err}
		}
		ds.Rows = append(ds.Rows, padRow(rec, ncol))
	}
	if len(ds.Rows) == 0 {
		return nil, &IngestionError{Path: path, Reason: "no data rows"}
	}
	return ds, nil
}

func readWorkbook(path string) ([]Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &IngestionError{Path: path, Reason: "open workbook", Err: err}
	}
	defer f.Close()

	var out []Dataset
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, &IngestionError{Path: path, Reason: fmt.Sprintf("read sheet %q", sheet), Err: err}
		}
		if len(rows) < 2 {
			continue // header only, or empty
		}
		ncol := len(rows[0])
		cols := make([]string, ncol)
		for i, h := range rows[0] {
			cols[i] = strings.TrimSpace(h)
		}
		ds := Dataset{Name: sheet, Columns: cols}
		for _, rec := range rows[1:] {
			ds.Rows = append(ds.Rows, padRow(rec, ncol))
		}
		out = append(out, ds)
	}
	if len(out) == 0 {
		return nil, &IngestionError{Path: path, Reason: "no usable sheets"}
	}
	return out, nil
}

func padRow(rec []string, ncol int) []string {
	row := make([]string, ncol)
	copy(row, rec)
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}
	return row
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
