package progress

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultLevel is the unlocked maximum reported when nothing has been saved
const DefaultLevel = 1

var ErrInvalidLevel = errors.New("unlocked level must be at least 1")

// Store persists the highest level unlocked
type Store interface {
	LoadProgress() (int, error)
	SaveProgress(level int) error
	ResetProgress() error
	Close() error
}

// Kind names a Store backend
type Kind string

const (
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
	KindMemory Kind = "memory"
)

// Open builds the store named by kind. path is ignored for the memory store.
func Open(kind string, path string) (Store, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindFile, "":
		return NewFileStore(path)
	case KindSQLite:
		return OpenSQLite(path)
	case KindMemory:
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown progress store %q (want file, sqlite or memory)", kind)
}

func checkLevel(level int) error {
	if level < DefaultLevel {
		return fmt.Errorf("%w, got %d", ErrInvalidLevel, level)
	}
	return nil
}
