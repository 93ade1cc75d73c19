// Package ingest turns uploaded spreadsheets into forecast requests.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/TENTURAVITEJA/forecasting-AI/internal/domain/models"
)

var (
	ErrEmptyWorkbook = errors.New("workbook has no header row")
	ErrSheetNotFound = errors.New("sheet not found")
)

// Table is a sheet read as a header row plus data rows.
type Table struct {
	Sheet   string
	Columns []string
	Rows    [][]any
	Skipped int
}

// ReadWorkbook reads one sheet of an xlsx stream. An empty sheet name picks
// the first sheet. The first row is the header; data rows whose length
// differs from the header are skipped.
func ReadWorkbook(r io.Reader, sheet string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}
	if sheet == "" {
		sheet = sheets[0]
	} else if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}

	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(raw) == 0 || len(raw[0]) == 0 {
		return nil, ErrEmptyWorkbook
	}

	t := &Table{Sheet: sheet, Columns: make([]string, len(raw[0]))}
	for i, h := range raw[0] {
		t.Columns[i] = strings.TrimSpace(h)
	}
	for _, row := range raw[1:] {
		if len(row) != len(t.Columns) {
			t.Skipped++
			continue
		}
		cells := make([]any, len(row))
		for i, c := range row {
			cells[i] = c
		}
		t.Rows = append(t.Rows, cells)
	}
	return t, nil
}

// Request builds a tabular forecast request from the table. A single-column
// sheet may omit target; its only column is used.
func (t *Table) Request(target string, steps any, choice string) *models.ForecastRequest {
	if target == "" && len(t.Columns) == 1 {
		target = t.Columns[0]
	}
	req := &models.ForecastRequest{
		Rows:        t.Rows,
		Columns:     t.Columns,
		Steps:       steps,
		ModelChoice: choice,
	}
	if req.Rows == nil {
		req.Rows = [][]any{}
	}
	if target != "" {
		req.TargetColumn = &target
	}
	return req
}
