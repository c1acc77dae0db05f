package summary

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// TableReader reads every sheet of a report file as header-less rows of
// cell text, in workbook order.
type TableReader interface {
	ReadTables(path string) ([][][]string, error)
}

// TableReaderFunc adapts a function to TableReader.
type TableReaderFunc func(path string) ([][][]string, error)

func (f TableReaderFunc) ReadTables(path string) ([][][]string, error) { return f(path) }

// Registry maps spreadsheet extensions to readers. An extension registered
// with a nil reader is recognised as a report but cannot be parsed.
type Registry struct {
	readers map[string]TableReader
}

// NewRegistry returns a registry for OOXML workbooks. Legacy .xls files are
// recognised but have no reader.
func NewRegistry() *Registry {
	r := &Registry{readers: make(map[string]TableReader)}
	ooxml := TableReaderFunc(readWorkbook)
	r.Register(".xlsx", ooxml)
	r.Register(".xlsm", ooxml)
	r.Register(".xls", nil)
	return r
}

// Register sets the reader for an extension such as ".xlsx".
func (r *Registry) Register(ext string, reader TableReader) {
	r.readers[strings.ToLower(ext)] = reader
}

// Handles reports whether name has a registered extension.
func (r *Registry) Handles(name string) bool {
	_, ok := r.readers[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Find returns the reader for path.
func (r *Registry) Find(path string) (TableReader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	reader, ok := r.readers[ext]
	if !ok {
		return nil, fmt.Errorf("no reader registered for %q", ext)
	}
	if reader == nil {
		return nil, fmt.Errorf("%s files are not supported", ext)
	}
	return reader, nil
}

func readWorkbook(path string) ([][][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tables [][][]string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		tables = append(tables, rows)
	}
	return tables, nil
}
