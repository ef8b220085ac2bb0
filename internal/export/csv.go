package export

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
)

// CSVWriter writes a UTF-8 comma-separated file with a header row.
type CSVWriter struct {
	logger *slog.Logger
}

func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

func (w *CSVWriter) Format() string { return "csv" }

func (w *CSVWriter) Write(t Table, path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(t.Columns); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = cellString(row[i])
			}
		}
		if err := cw.Write(record); err != nil {
			_ = f.Close()
			return fmt.Errorf("csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("csv flush: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	w.logger.Info("export.csv.ok", "path", path, "rows", t.Len())
	return nil
}
