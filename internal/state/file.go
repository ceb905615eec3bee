package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const stateFileMode = 0o600

// FileStore keeps the state map in a JSON file. Saves write a temporary file
// in the same directory and rename it over the target.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store. A missing or empty file is an empty map.
func (s *FileStore) Load(context.Context) (Map, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Map{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if len(data) == 0 {
		return Map{}, nil
	}

	m := Map{}
	if unmarshalErr := json.Unmarshal(data, &m); unmarshalErr != nil {
		return nil, fmt.Errorf("decode state file %s: %w", s.path, unmarshalErr)
	}
	return m, nil
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, m Map) error {
	if m == nil {
		m = Map{}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
		return fmt.Errorf("create state dir: %w", mkErr)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, writeErr := tmp.Write(data); writeErr != nil {
		_ = tmp.Close()
		return fmt.Errorf("write state: %w", writeErr)
	}
	if syncErr := tmp.Sync(); syncErr != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync state: %w", syncErr)
	}
	if closeErr := tmp.Close(); closeErr != nil {
		return fmt.Errorf("close state: %w", closeErr)
	}
	if chmodErr := os.Chmod(tmpPath, stateFileMode); chmodErr != nil {
		return fmt.Errorf("chmod state: %w", chmodErr)
	}
	if renameErr := os.Rename(tmpPath, s.path); renameErr != nil {
		return fmt.Errorf("rename state: %w", renameErr)
	}
	return nil
}
