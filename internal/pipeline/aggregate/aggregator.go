// Package aggregate loads every field record and writes the combined table.
package aggregate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/aaib-collector/constants"
	"github.com/joseph-ayodele/aaib-collector/internal/checkpoint"
	"github.com/joseph-ayodele/aaib-collector/internal/common"
	"github.com/joseph-ayodele/aaib-collector/internal/entity"
	"github.com/joseph-ayodele/aaib-collector/internal/export"
)

// Output pairs a writer with its destination.
type Output struct {
	Writer export.Writer
	Path   string
}

type Stats struct {
	Files   int
	Rows    int
	Skipped int
	Written []string // paths written successfully
}

type Aggregator struct {
	Records *checkpoint.Store
	Outputs []Output
	Logger  *slog.Logger
}

func NewAggregator(records *checkpoint.Store, outputs []Output, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{Records: records, Outputs: outputs, Logger: logger}
}

// Aggregate builds the canonical table from all field records and writes every output.
// With no loadable records it writes nothing and returns an empty table.
func (a *Aggregator) Aggregate(ctx context.Context) (export.Table, Stats, error) {
	log := common.LoggerFromContext(ctx, a.Logger)
	table := export.NewTable(entity.Columns)
	var stats Stats

	keys, err := a.Records.Keys()
	if err != nil {
		log.Error("aggregate.scan_failed", "dir", a.Records.Dir, "error", err)
		return table, stats, err
	}
	stats.Files = len(keys)

	for _, key := range keys {
		row, err := a.loadRow(key)
		if err != nil {
			log.Error("aggregate.record_unreadable", "file", key+constants.ExtractedSuffix, "error", err)
			stats.Skipped++
			continue
		}
		table.Rows = append(table.Rows, row)
	}
	stats.Rows = table.Len()

	if table.Len() == 0 {
		log.Error("aggregate.no_records", "dir", a.Records.Dir, "files", stats.Files, "skipped", stats.Skipped)
		return table, stats, nil
	}

	for _, out := range a.Outputs {
		if err := out.Writer.Write(table, out.Path); err != nil {
			log.Error("aggregate.write_failed", "format", out.Writer.Format(), "path", out.Path, "error", err)
			continue
		}
		stats.Written = append(stats.Written, out.Path)
	}
	log.Info("aggregate.done", "rows", stats.Rows, "skipped", stats.Skipped, "written", len(stats.Written))
	return table, stats, nil
}

// loadRow reads one record leniently: missing columns become nil, extra keys are ignored.
func (a *Aggregator) loadRow(key string) ([]any, error) {
	raw, err := os.ReadFile(a.Records.Path(key))
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("decode: not an object")
	}

	row := make([]any, len(entity.Columns))
	for i, col := range entity.Columns {
		row[i] = cellValue(m[col])
	}
	return row, nil
}

func cellValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
