// Package state persists prefetch run state to the filesystem.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/smileynet/wopt/internal/prefetch"
)

// Compile-time check: FileStore satisfies prefetch.StateStore.
var _ prefetch.StateStore = (*FileStore)(nil)

// FileStore persists run state as JSON files under a base directory.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a FileStore that saves state under baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

// Save writes the run state to a JSON file named by the run ID. The file is
// replaced atomically so a crash mid-write leaves the previous state intact.
func (s *FileStore) Save(st prefetch.State) error {
	p, err := s.path(st.ID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("state: creating directory: %w", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshaling: %w", err)
	}

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("state: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("state: replacing %s: %w", p, err)
	}
	return nil
}

// Load reads run state for the given ID.
// Returns (state, true, nil) if found, (zero, false, nil) if not found.
func (s *FileStore) Load(id string) (prefetch.State, bool, error) {
	p, err := s.path(id)
	if err != nil {
		return prefetch.State{}, false, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prefetch.State{}, false, nil
		}
		return prefetch.State{}, false, fmt.Errorf("state: reading %s: %w", p, err)
	}

	var st prefetch.State
	if err := json.Unmarshal(data, &st); err != nil {
		return prefetch.State{}, false, fmt.Errorf("state: parsing %s: %w", p, err)
	}
	return st, true, nil
}

// Remove deletes the state file for the given ID.
func (s *FileStore) Remove(id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("state: removing %s: %w", p, err)
	}
	return nil
}

// IDs returns the IDs of every saved run, sorted. A missing base directory
// yields no IDs.
func (s *FileStore) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("state: listing %s: %w", s.baseDir, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ErrInvalidID indicates a run ID is empty or contains path traversal components.
var ErrInvalidID = errors.New("state: invalid run ID")

// path returns the filesystem path for a run state file.
// It rejects IDs that are empty, dot-segments, or contain path separators.
func (s *FileStore) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || id != filepath.Base(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return filepath.Join(s.baseDir, id+".json"), nil
}
