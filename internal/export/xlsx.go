package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Reports"

// columnWidths widens the columns that usually carry prose.
var columnWidths = map[string]float64{
	"title":         40,
	"date":          12,
	"aircraft_type": 24,
	"registration":  14,
	"location":      28,
	"summary":       60,
	"cause":         60,
	"source_pdf":    36,
	"text_length":   12,
}

// XLSXWriter writes a single-sheet workbook with a bold header row.
type XLSXWriter struct {
	logger *slog.Logger
}

func NewXLSXWriter(logger *slog.Logger) *XLSXWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXWriter{logger: logger}
}

func (w *XLSXWriter) Format() string { return "xlsx" }

func (w *XLSXWriter) Write(t Table, path string) error {
	start := time.Now()
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			w.logger.Warn("export.xlsx.close_error", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	activeIndex, err := f.GetSheetIndex(sheetName)
	if err != nil {
		return fmt.Errorf("sheet index: %w", err)
	}
	f.SetActiveSheet(activeIndex)

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	for i, h := range t.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("header %s: %w", h, err)
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("header %s: %w", h, err)
		}
	}
	if len(t.Columns) > 0 {
		last, err := excelize.CoordinatesToCellName(len(t.Columns), 1)
		if err != nil {
			return fmt.Errorf("header range: %w", err)
		}
		if err := f.SetCellStyle(sheetName, "A1", last, bold); err != nil {
			return fmt.Errorf("header style: %w", err)
		}
	}

	for r, row := range t.Rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return fmt.Errorf("row %d: %w", r+1, err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("cell %s: %w", cell, err)
			}
		}
	}

	for i, h := range t.Columns {
		if width, ok := columnWidths[h]; ok {
			col, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				return fmt.Errorf("column %s: %w", h, err)
			}
			if err := f.SetColWidth(sheetName, col, col, width); err != nil {
				return fmt.Errorf("column width %s: %w", h, err)
			}
		}
	}

	if err := ensureParent(path); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	w.logger.Info("export.xlsx.ok",
		"path", path,
		"rows", t.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
