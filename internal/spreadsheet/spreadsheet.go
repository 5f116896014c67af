// Package spreadsheet reads product lists from uploaded Excel workbooks.
package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"kleiderkammer/internal/domain"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("only .xlsx files are supported")
	ErrNoSheets          = errors.New("workbook has no sheets")
)

// Rows streams the rows of the first sheet of a workbook.
type Rows struct {
	file *excelize.File
	rows *excelize.Rows
}

// CheckExtension rejects file names that are not .xlsx workbooks.
func CheckExtension(filename string) error {
	if !strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return &domain.ImportError{Err: fmt.Errorf("%s: %w", filepath.Base(filename), ErrUnsupportedFormat)}
	}
	return nil
}

// Open reads a workbook from r. filename is only used to check the extension.
func Open(r io.Reader, filename string) (*Rows, error) {
	if err := CheckExtension(filename); err != nil {
		return nil, err
	}

	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &domain.ImportError{Err: fmt.Errorf("failed to read workbook: %w", err)}
	}
	return fromFile(file)
}

// OpenFile reads a workbook from disk.
func OpenFile(path string) (*Rows, error) {
	if err := CheckExtension(path); err != nil {
		return nil, err
	}

	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &domain.ImportError{Err: fmt.Errorf("failed to open workbook: %w", err)}
	}
	return fromFile(file)
}

func fromFile(file *excelize.File) (*Rows, error) {
	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		file.Close()
		return nil, &domain.ImportError{Err: ErrNoSheets}
	}

	rows, err := file.Rows(sheets[0])
	if err != nil {
		file.Close()
		return nil, &domain.ImportError{Err: fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)}
	}

	return &Rows{file: file, rows: rows}, nil
}

// Next advances to the next row.
func (r *Rows) Next() bool {
	return r.rows.Next()
}

// Columns returns the cell values of the current row.
func (r *Rows) Columns() ([]string, error) {
	return r.rows.Columns()
}

// Err returns the error that stopped iteration, if any.
func (r *Rows) Err() error {
	return r.rows.Error()
}

// Close releases the row iterator and the workbook.
func (r *Rows) Close() error {
	return errors.Join(r.rows.Close(), r.file.Close())
}
