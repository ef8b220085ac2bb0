package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONIsReadableAndUnescaped(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "texts"), "_text.json")

	require.NoError(t, s.WriteJSON("report-1", map[string]any{"text": "Côte <d'Azur> & co"}))

	raw, err := os.ReadFile(s.Path("report-1"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Côte <d'Azur> & co")
	assert.Contains(t, string(raw), "\n  \"text\"")

	var back map[string]string
	require.NoError(t, s.ReadJSON("report-1", &back))
	assert.Equal(t, "Côte <d'Azur> & co", back["text"])
	assert.True(t, s.Has("report-1"))
	assert.False(t, s.Has("report-2"))
}

func TestKeysSkipsHiddenForeignAndDirs(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, ".pdf")
	for _, name := range []string{"b.pdf", "a.pdf", ".tmp-c.pdf-123", ".hidden.pdf", "notes.txt", "upper.PDF"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755))

	keys, err := s.Keys()

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestKeysMissingDirIsError(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), ".pdf").Keys()
	assert.True(t, IsNotExist(err))
}

func TestWriteFromVerifyFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, ".pdf")
	bad := errors.New("not a pdf")

	_, err := s.WriteFrom("doc", strings.NewReader("garbage"), func(string) error { return bad })

	assert.ErrorIs(t, err, bad)
	assert.False(t, s.Has("doc"))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteFromCommitsStream(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "pdfs"), ".pdf")

	n, err := s.WriteFrom("doc", strings.NewReader("%PDF-1.4 body"), nil)

	require.NoError(t, err)
	assert.EqualValues(t, len("%PDF-1.4 body"), n)
	raw, err := os.ReadFile(s.Path("doc"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(raw))
}
