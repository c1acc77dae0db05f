package inputs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/xuri/excelize/v2"
)

// ReadSeries loads a headed numeric table from a CSV or OOXML workbook. The
// first row names the columns; every other cell must be numeric. Blank rows
// are skipped.
func ReadSeries(path string) (*models.Series, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = workbookRows(path)
	default:
		rows, err = csvRows(path)
	}
	if err != nil {
		return nil, err
	}
	return buildSeries(filepath.Base(path), rows)
}

func csvRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrInputFormat, filepath.Base(path), err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func workbookRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrInputFormat, filepath.Base(path), err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%w: %s has no sheets", models.ErrInputFormat, filepath.Base(path))
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrInputFormat, filepath.Base(path), err)
	}
	return rows, nil
}

func buildSeries(name string, rows [][]string) (*models.Series, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", models.ErrInputFormat, name)
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		header[i] = h
	}

	cols := make([][]float64, len(header))
	for n, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		for i := range header {
			cell := ""
			if i < len(row) {
				cell = strings.TrimSpace(row[i])
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s row %d column %q: %q is not numeric",
					models.ErrInputFormat, name, n+2, header[i], cell)
			}
			cols[i] = append(cols[i], v)
		}
	}
	if len(cols) == 0 || len(cols[0]) == 0 {
		return nil, fmt.Errorf("%w: %s has no data rows", models.ErrInputFormat, name)
	}

	s := models.NewSeries()
	for i, h := range header {
		if s.Has(h) {
			return nil, fmt.Errorf("%w: %s repeats column %q", models.ErrInputFormat, name, h)
		}
		s.Set(h, cols[i])
	}
	return s, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
