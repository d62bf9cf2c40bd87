package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileRecord is the on-disk progress document
type fileRecord struct {
	MaxUnlockedLevel int `json:"max_unlocked_level"`
}

// FileStore keeps progress in a small JSON document
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file store, making the parent directory if needed
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("progress file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create progress directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// LoadProgress returns the default when no file exists yet
func (s *FileStore) LoadProgress() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultLevel, nil
		}
		return DefaultLevel, fmt.Errorf("failed to read progress file: %w", err)
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return DefaultLevel, fmt.Errorf("failed to parse progress file: %w", err)
	}
	if rec.MaxUnlockedLevel < DefaultLevel {
		return DefaultLevel, nil
	}
	return rec.MaxUnlockedLevel, nil
}

// SaveProgress writes the record through a temp file and rename
func (s *FileStore) SaveProgress(level int) error {
	if err := checkLevel(level); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(fileRecord{MaxUnlockedLevel: level}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write progress file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace progress file: %w", err)
	}
	return nil
}

// ResetProgress removes the record so the default applies again
func (s *FileStore) ResetProgress() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove progress file: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error {
	return nil
}
