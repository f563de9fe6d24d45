// Package fragment stores one bundle per exported entity on disk. The presence
// of a fragment file marks that entity as done.
package fragment

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/ALT-F4-LLC/lp2jira/internal/model"
)

const (
	dirPerms  = 0o755
	filePerms = 0o644
)

// ErrExists is returned when writing a fragment that is already on disk.
var ErrExists = errors.New("fragment already exists")

// Kind selects the directory a fragment lives in.
type Kind string

const (
	KindUser   Kind = "user"
	KindIssue  Kind = "issue"
	KindUpdate Kind = "update"
)

// Store maps fragment kinds to directories.
type Store struct {
	dirs map[Kind]string
}

// NewStore returns a store writing users, issues and reconcile updates into
// the given directories.
func NewStore(usersDir, issuesDir, updatesDir string) *Store {
	return &Store{dirs: map[Kind]string{
		KindUser:   usersDir,
		KindIssue:  issuesDir,
		KindUpdate: updatesDir,
	}}
}

// Dir returns the directory holding fragments of kind.
func (s *Store) Dir(kind Kind) string {
	return s.dirs[kind]
}

// FileName returns the file name used for key. Path separators in the key are
// replaced so sub-task ids stay within the directory.
func FileName(key string) string {
	r := strings.NewReplacer("/", "_", "\\", "_")
	return r.Replace(key) + ".json"
}

// Path returns the fragment path of key.
func (s *Store) Path(kind Kind, key string) string {
	return filepath.Join(s.dirs[kind], FileName(key))
}

// Exists reports whether the fragment of key has been written.
func (s *Store) Exists(kind Kind, key string) (bool, error) {
	_, err := os.Stat(s.Path(kind, key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Write stores b as the fragment of key. The file appears complete or not at
// all. An existing fragment is left untouched and ErrExists is returned.
func (s *Store) Write(kind Kind, key string, b model.Bundle) (string, error) {
	dir := s.dirs[kind]
	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return "", fmt.Errorf("create fragment directory: %w", err)
	}

	path := s.Path(kind, key)
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("%w: %s", ErrExists, path)
	}

	data, err := b.Encode()
	if err != nil {
		return "", err
	}
	if err := WriteFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Read loads the fragment of key.
func (s *Store) Read(kind Kind, key string) (model.Bundle, error) {
	return ReadFile(s.Path(kind, key))
}

// ReadFile loads a fragment from path.
func ReadFile(path string) (model.Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Bundle{}, err
	}
	return model.DecodeBundle(data)
}

// List returns the paths of every fragment of kind, sorted by file name.
func (s *Store) List(kind Kind) ([]string, error) {
	entries, err := os.ReadDir(s.dirs[kind])
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s fragments: %w", kind, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		paths = append(paths, filepath.Join(s.dirs[kind], e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// Remove deletes every fragment of kind and returns how many were removed.
func (s *Store) Remove(kind Kind) (int, error) {
	paths, err := s.List(kind)
	if err != nil {
		return 0, err
	}
	for i, p := range paths {
		if err := os.Remove(p); err != nil {
			return i, fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return len(paths), nil
}

// WriteFile replaces path atomically with data.
func WriteFile(path string, data []byte) error {
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(path, filePerms); err != nil {
		return fmt.Errorf("set permissions on %s: %w", path, err)
	}
	return nil
}
