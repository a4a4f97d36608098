package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// oleMagic opens every OLE2 compound document, which is how BIFF .xls
// workbooks are stored. xlsx files are zip archives.
var oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// xlsMaxCols is the BIFF8 column limit, used when a row carries no ROW record
const xlsMaxCols = 256

// SpreadsheetToCSV renders the first sheet of an xls/xlsx workbook as CSV text.
// Other sheets are ignored.
func SpreadsheetToCSV(name string, data []byte) (string, error) {
	read := readXLSX
	if bytes.HasPrefix(data, oleMagic) {
		read = readXLS
	}

	rows, err := read(data)
	if err != nil {
		return "", &SpreadsheetError{File: name, Err: err}
	}
	if len(rows) == 0 {
		return "", &SpreadsheetError{File: name, Err: ErrEmptySpreadsheet}
	}

	// readers trim trailing empty cells, pad back to the sheet width
	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, r := range rows {
		rec := make([]string, width)
		copy(rec, r)
		if err := w.Write(rec); err != nil {
			return "", &SpreadsheetError{File: name, Err: err}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", &SpreadsheetError{File: name, Err: err}
	}

	return buf.String(), nil
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// readXLS reads the first sheet of a BIFF workbook. The decoder panics on
// some malformed records, so those are turned into errors.
func readXLS(data []byte) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, fmt.Errorf("malformed xls workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb == nil {
		return nil, errors.New("no workbook stream in xls file")
	}
	if wb.NumSheets() == 0 {
		return nil, nil
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	blank := true
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if len(row) > 0 {
			blank = false
		}
		rows = append(rows, row)
	}
	if blank {
		return nil, nil
	}

	// drop blank rows after the last filled one
	for len(rows) > 0 && len(rows[len(rows)-1]) == 0 {
		rows = rows[:len(rows)-1]
	}
	return rows, nil
}

// xlsRow returns the cells of row i without trailing blanks. Missing rows
// come back empty.
func xlsRow(sheet *xls.WorkSheet, i int) (cells []string) {
	defer func() {
		if recover() != nil {
			cells = nil
		}
	}()

	row := sheet.Row(i)
	last := row.LastCol()
	if last <= 0 || last > xlsMaxCols {
		last = xlsMaxCols
	}

	cells = make([]string, last)
	for c := 0; c < last; c++ {
		cells[c] = row.Col(c)
	}

	n := len(cells)
	for n > 0 && cells[n-1] == "" {
		n--
	}
	return cells[:n]
}
