// Package checkpoint persists per-document stage artifacts as files keyed by document stem.
// A file's presence is the stage's completion marker, so every write is atomic.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const tempPrefix = ".tmp-"

// Store is a directory of "<key><Suffix>" files.
type Store struct {
	Dir    string
	Suffix string
}

func New(dir, suffix string) *Store {
	return &Store{Dir: dir, Suffix: suffix}
}

// Path returns the artifact path for key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.Dir, key+s.Suffix)
}

// Has reports whether a completed artifact exists for key.
func (s *Store) Has(key string) bool {
	fi, err := os.Stat(s.Path(key))
	return err == nil && fi.Mode().IsRegular()
}

// Ensure creates the store directory.
func (s *Store) Ensure() error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", s.Dir, err)
	}
	return nil
}

// Keys lists the keys of all completed artifacts in name order. Hidden and in-flight files are ignored.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.Dir, err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || IsHidden(name) || !strings.HasSuffix(name, s.Suffix) {
			continue
		}
		key := strings.TrimSuffix(name, s.Suffix)
		if key == "" {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// WriteJSON stores v as indented UTF-8 JSON without HTML escaping.
func (s *Store) WriteJSON(key string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err := s.WriteFrom(key, &buf, nil)
	return err
}

// ReadJSON decodes the artifact for key into v.
func (s *Store) ReadJSON(key string, v any) error {
	raw, err := os.ReadFile(s.Path(key))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", s.Path(key), err)
	}
	return nil
}

// WriteFrom streams r into a hidden temp file and renames it into place.
// verify, when set, inspects the temp file first; a verify error discards it.
func (s *Store) WriteFrom(key string, r io.Reader, verify func(path string) error) (int64, error) {
	if err := s.Ensure(); err != nil {
		return 0, err
	}
	final := s.Path(key)
	tmp, err := os.CreateTemp(s.Dir, tempPrefix+filepath.Base(final)+"-*")
	if err != nil {
		return 0, fmt.Errorf("create temp for %s: %w", final, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	n, err := io.CopyBuffer(tmp, r, make([]byte, 32<<10))
	if err != nil {
		_ = tmp.Close()
		return n, fmt.Errorf("write %s: %w", final, err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if verify != nil {
		if err := verify(tmpPath); err != nil {
			return n, err
		}
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return n, fmt.Errorf("commit %s: %w", final, err)
	}
	committed = true
	return n, nil
}

// IsNotExist reports whether err means the artifact is missing.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
