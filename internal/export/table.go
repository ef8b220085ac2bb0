// Package export renders the aggregated report table to spreadsheet and delimited text files.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Table is a column-ordered set of rows. A nil cell is an absent value.
type Table struct {
	Columns []string
	Rows    [][]any
}

// NewTable returns an empty table with the given columns.
func NewTable(columns []string) Table {
	return Table{Columns: append([]string(nil), columns...), Rows: [][]any{}}
}

// Len returns the number of rows.
func (t Table) Len() int { return len(t.Rows) }

// Writer renders a table to a file.
type Writer interface {
	Write(t Table, path string) error
	Format() string
}

// cellString renders a cell for text output. nil renders as the empty string.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		if b, err := json.Marshal(t); err == nil {
			return string(b)
		}
		return fmt.Sprint(t)
	}
}

func ensureParent(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
