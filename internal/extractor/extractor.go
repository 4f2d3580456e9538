// Package extractor reads spreadsheet container files into the Sheet
// contract consumed by the pipeline. It is the only package that touches
// file formats; everything downstream sees a rectangular typed grid.
package extractor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"finsheet/internal/analyzer"
	"finsheet/internal/errors"
	"finsheet/pkg/contracts/domain"
)

// Extractor converts .xlsx workbooks into domain Sheets.
type Extractor struct {
	logger *slog.Logger
}

// New creates an extractor.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger.With(slog.String("component", "extractor"))}
}

// ExtractFile opens a workbook and extracts every sheet in workbook
// order.
func (e *Extractor) ExtractFile(ctx context.Context, path string) ([]*domain.Sheet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewFileParse(fmt.Sprintf("opening workbook %s: %v", path, err), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			e.logger.Warn("closing workbook", slog.String("path", path), slog.String("error", cerr.Error()))
		}
	}()

	names := f.GetSheetList()
	sheets := make([]*domain.Sheet, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sheet, err := e.extractSheet(f, name)
		if err != nil {
			return nil, err
		}
		sheets = append(sheets, sheet)
	}

	e.logger.Debug("workbook extracted",
		slog.String("path", path),
		slog.Int("sheets", len(sheets)))
	return sheets, nil
}

// extractSheet pulls one worksheet into a null-padded rectangular grid
// with typed cell metadata, formulas and merged regions.
func (e *Extractor) extractSheet(f *excelize.File, name string) (*domain.Sheet, error) {
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, errors.NewFileParse(fmt.Sprintf("reading sheet %q: %v", name, err), err)
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	sheet := &domain.Sheet{
		Name:  name,
		Data:  make([][]interface{}, len(rows)),
		Cells: make(map[domain.CellRef]domain.Cell),
	}

	for r, row := range rows {
		padded := make([]interface{}, width)
		for c := 0; c < width; c++ {
			if c >= len(row) || row[c] == "" {
				continue
			}
			value := row[c]
			padded[c] = value

			cell := domain.Cell{Value: value, Type: analyzer.ClassifyValue(value)}
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err == nil {
				if formula, ferr := f.GetCellFormula(name, axis); ferr == nil && formula != "" {
					cell.Formula = formula
					cell.Type = domain.CellTypeFormula
				}
			}
			sheet.Cells[domain.CellRef{Row: r, Col: c}] = cell
		}
		sheet.Data[r] = padded
	}

	merges, err := f.GetMergeCells(name)
	if err != nil {
		return nil, errors.NewFileParse(fmt.Sprintf("reading merges of sheet %q: %v", name, err), err)
	}
	for _, m := range merges {
		startCol, startRow, err1 := excelize.CellNameToCoordinates(m.GetStartAxis())
		endCol, endRow, err2 := excelize.CellNameToCoordinates(m.GetEndAxis())
		if err1 != nil || err2 != nil {
			continue
		}
		sheet.Merged = append(sheet.Merged, domain.MergedRegion{
			StartRow: startRow - 1, StartCol: startCol - 1,
			EndRow: endRow - 1, EndCol: endCol - 1,
		})
	}

	return sheet, nil
}
