package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet of a report workbook.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]interface{}
}

// Write saves headers and rows as CSV, or as a single-sheet workbook when
// path ends in .xlsx.
func Write(path string, headers []string, rows [][]string) error {
	if FormatOf(path) == FormatXLSX {
		cells := make([][]interface{}, len(rows))
		for i, row := range rows {
			cells[i] = make([]interface{}, len(row))
			for j, v := range row {
				cells[i][j] = v
			}
		}
		return WriteWorkbook(path, []Sheet{{Name: "Sheet1", Headers: headers, Rows: cells}})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, headers, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV writes headers and rows to w.
func WriteCSV(w io.Writer, headers []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteWorkbook saves one worksheet per Sheet, in order.
func WriteWorkbook(path string, sheets []Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("workbook %s needs at least one sheet", path)
	}
	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return err
		}

		header := make([]interface{}, len(sheet.Headers))
		for j, h := range sheet.Headers {
			header[j] = h
		}
		if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
			return err
		}
		for r, row := range sheet.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			row := row
			if err := f.SetSheetRow(sheet.Name, cell, &row); err != nil {
				return err
			}
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}
