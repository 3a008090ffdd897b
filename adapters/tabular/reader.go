// Package tabular reads and writes the CSV and Excel tables the commands
// consume and produce.
package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Table is a header row plus data rows; every row has len(Headers) cells.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Index returns the position of the header equal to name, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// Has reports whether a header named name exists.
func (t *Table) Has(name string) bool { return t.Index(name) >= 0 }

// Column returns the values of the named column in row order.
func (t *Table) Column(name string) []string {
	idx := t.Index(name)
	if idx < 0 {
		return nil
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out
}

// FormatOf infers the table format from the file extension.
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// Read loads a CSV file or the first sheet of an Excel workbook.
func Read(path string) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("table file not found: %s: %w", path, err)
	}

	start := time.Now()
	var (
		rows [][]string
		err  error
	)
	switch FormatOf(path) {
	case FormatXLSX:
		rows, err = readExcelRows(path)
	default:
		rows, err = readCSVFile(path)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: file is empty, a header row is required", path)
	}

	table := fromRows(rows)
	log.Printf("[tabular] %s read in %.2fms (%d columns, %d rows)",
		filepath.Base(path), float64(time.Since(start).Nanoseconds())/1e6, len(table.Headers), len(table.Rows))
	return table, nil
}

// ReadCSV parses CSV from r.
func ReadCSV(r io.Reader) (*Table, error) {
	rows, err := parseCSV(r)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv input is empty, a header row is required")
	}
	return fromRows(rows), nil
}

func readCSVFile(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()
	return parseCSV(file)
}

func parseCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return rows, nil
}

func readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// fromRows trims headers, strips a UTF-8 BOM and pads or cuts every data
// row to the header width. Fully blank rows are dropped.
func fromRows(rows [][]string) *Table {
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		headers[i] = strings.TrimSpace(h)
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cells := make([]string, len(headers))
		blank := true
		for j := range cells {
			if j < len(row) {
				cells[j] = row[j]
				if strings.TrimSpace(row[j]) != "" {
					blank = false
				}
			}
		}
		if blank {
			continue
		}
		data = append(data, cells)
	}
	return &Table{Headers: headers, Rows: data}
}
