package table

import (
	"errors"
	"fmt"
)

// ErrHeaderMissing indicates that no columns could be read from the data
var ErrHeaderMissing = errors.New("could not read data headers, please check the CSV file format")

// ErrEmptySpreadsheet indicates a workbook without sheets or rows
var ErrEmptySpreadsheet = errors.New("spreadsheet is empty")

// ErrUnsupportedFile indicates a file that is neither CSV nor a spreadsheet
var ErrUnsupportedFile = errors.New("unsupported file type")

// ErrURLNotAllowed indicates a fetch target outside http(s) or on a
// non-public address
var ErrURLNotAllowed = errors.New("url not allowed")

// ErrFileRead indicates the source bytes could not be read
var ErrFileRead = errors.New("error reading file")

// ParseError wraps a failure of the CSV reader
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error on line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SpreadsheetError represents a failed xls/xlsx to CSV conversion
type SpreadsheetError struct {
	File string
	Err  error
}

func (e *SpreadsheetError) Error() string {
	return fmt.Sprintf("spreadsheet %q: %v", e.File, e.Err)
}

func (e *SpreadsheetError) Unwrap() error {
	return e.Err
}

// FileReadError represents a file that could not be read or decoded
type FileReadError struct {
	File string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("read %q: %v", e.File, e.Err)
}

func (e *FileReadError) Unwrap() error {
	return e.Err
}
