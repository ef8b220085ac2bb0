package export

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sample() Table {
	t := NewTable([]string{"title", "date", "text_length"})
	t.Rows = append(t.Rows,
		[]any{"Piper, \"PA-28\"", nil, int64(1200)},
		[]any{"Côte d'Azur", "2024-01-15", int64(7)},
	)
	return t
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "reports.csv")

	require.NoError(t, NewCSVWriter(nil).Write(sample(), path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "title,date,text_length\n\"Piper, \"\"PA-28\"\"\",,1200\nCôte d'Azur,2024-01-15,7\n", string(raw))
}

func TestCSVWriterEmptyTableWritesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.csv")

	require.NoError(t, NewCSVWriter(nil).Write(NewTable([]string{"a", "b"}), path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(raw))
}

func TestXLSXWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.xlsx")

	require.NoError(t, NewXLSXWriter(nil).Write(sample(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{sheetName}, f.GetSheetList())

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"title", "date", "text_length"}, rows[0])
	assert.Equal(t, "Piper, \"PA-28\"", rows[1][0])
	assert.Equal(t, "", rows[1][1])
	assert.Equal(t, "1200", rows[1][2])
	assert.Equal(t, []string{"Côte d'Azur", "2024-01-15", "7"}, rows[2])
}

func TestXLSXWriterBadPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	err := NewXLSXWriter(nil).Write(sample(), filepath.Join(blocker, "reports.xlsx"))

	assert.Error(t, err)
}

func TestXLSXWriterStylesHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.xlsx")
	require.NoError(t, NewXLSXWriter(nil).Write(sample(), path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	width, err := f.GetColWidth(sheetName, "A")
	require.NoError(t, err)
	assert.Equal(t, 40.0, width)

	styleID, err := f.GetCellStyle(sheetName, "C1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
}

func TestXLSXWriterRejectsTooManyColumns(t *testing.T) {
	cols := make([]string, excelize.MaxColumns+1)
	for i := range cols {
		cols[i] = "c"
	}
	path := filepath.Join(t.TempDir(), "reports.xlsx")

	err := NewXLSXWriter(nil).Write(NewTable(cols), path)

	require.Error(t, err)
	assert.NoFileExists(t, path)
}
