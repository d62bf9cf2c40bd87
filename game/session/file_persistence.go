package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/wricardo/parcel-run/game/service"
)

const (
	jsonExt = ".json"
	zstdExt = ".json.zst"
)

// FilePersistence implements SessionPersistence using file system storage.
// Snapshots are plain JSON, or zstd-compressed JSON when compression is on.
// Both forms are read regardless of the setting.
type FilePersistence struct {
	sessionsDir string
	newEngine   EngineFactory
	compress    bool
}

// FileOption configures a FilePersistence
type FileOption func(*FilePersistence)

// WithCompression writes snapshots as zstd-compressed JSON
func WithCompression(enabled bool) FileOption {
	return func(fp *FilePersistence) {
		fp.compress = enabled
	}
}

// NewFilePersistence creates a new file-based session persistence layer
func NewFilePersistence(sessionsDir string, newEngine EngineFactory, opts ...FileOption) (*FilePersistence, error) {
	if newEngine == nil {
		return nil, fmt.Errorf("engine factory is required")
	}
	// Create sessions directory if it doesn't exist
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	fp := &FilePersistence{
		sessionsDir: sessionsDir,
		newEngine:   newEngine,
	}
	for _, opt := range opts {
		opt(fp)
	}
	return fp, nil
}

// Save persists a session snapshot
func (fp *FilePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	state := session.Engine.GetState()
	data := PersistedSessionData{
		ID:             session.ID,
		LevelID:        state.LevelID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		GameState:      state,
	}

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	ext, stale := jsonExt, zstdExt
	if fp.compress {
		ext, stale = zstdExt, jsonExt
		if payload, err = compress(payload); err != nil {
			return fmt.Errorf("failed to compress session data: %w", err)
		}
	}

	if err := os.WriteFile(fp.path(session.ID, ext), payload, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	// Drop a snapshot left over in the other format
	if err := os.Remove(fp.path(session.ID, stale)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale session file: %w", err)
	}
	return nil
}

// Load rebuilds a session from its snapshot
func (fp *FilePersistence) Load(id string) (*service.Session, error) {
	filePath, compressed, ok := fp.find(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	payload, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	if compressed {
		if payload, err = decompress(payload); err != nil {
			return nil, fmt.Errorf("failed to decompress session file: %w", err)
		}
	}

	var data PersistedSessionData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}
	if data.GameState == nil {
		return nil, fmt.Errorf("session %s has no game state", id)
	}

	gameEngine, err := fp.newEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to create game engine: %w", err)
	}
	if err := gameEngine.Restore(data.GameState); err != nil {
		return nil, fmt.Errorf("failed to restore session %s: %w", id, err)
	}

	return &service.Session{
		ID:             data.ID,
		Engine:         gameEngine,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
	}, nil
}

// Delete removes a session's snapshot files
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return ErrSessionNotFound
	}
	for _, ext := range []string{jsonExt, zstdExt} {
		if err := os.Remove(fp.path(id, ext)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove session file: %w", err)
		}
	}
	return nil
}

// ListAll returns all persisted session IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	seen := make(map[string]bool)
	var sessionIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		var id string
		switch {
		case strings.HasSuffix(name, zstdExt):
			id = strings.TrimSuffix(name, zstdExt)
		case strings.HasSuffix(name, jsonExt):
			id = strings.TrimSuffix(name, jsonExt)
		default:
			continue
		}
		if !seen[id] {
			seen[id] = true
			sessionIDs = append(sessionIDs, id)
		}
	}
	return sessionIDs, nil
}

// Exists checks if a session snapshot exists in either format
func (fp *FilePersistence) Exists(id string) bool {
	_, _, ok := fp.find(id)
	return ok
}

// find locates a snapshot, preferring the configured format
func (fp *FilePersistence) find(id string) (string, bool, bool) {
	order := []string{jsonExt, zstdExt}
	if fp.compress {
		order = []string{zstdExt, jsonExt}
	}
	for _, ext := range order {
		p := fp.path(id, ext)
		if _, err := os.Stat(p); err == nil {
			return p, ext == zstdExt, true
		}
	}
	return "", false, false
}

// path returns the snapshot path for a session ID
func (fp *FilePersistence) path(id, ext string) string {
	return filepath.Join(fp.sessionsDir, id+ext)
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
