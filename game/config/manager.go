package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wricardo/parcel-run/game/engine"
	"github.com/wricardo/parcel-run/game/service"
)

var (
	ErrLevelNotFound = engine.ErrLevelNotFound
	ErrInvalidLevel  = engine.ErrInvalidLevel
)

// levelExtensions are tried in order when resolving a level id to a file
var levelExtensions = []string{".json", ".yaml", ".yml"}

// Manager discovers, validates and caches level files named level_<n>.<ext>
type Manager struct {
	levelsDir string
	rules     *engine.Rules
	logger    *slog.Logger
	schema    *jsonschema.Schema

	levels map[int]*engine.Level
	mu     sync.RWMutex
}

// NewManager creates a level manager over levelsDir
func NewManager(levelsDir string, rules *engine.Rules, logger *slog.Logger) (*Manager, error) {
	info, err := os.Stat(levelsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("levels directory does not exist: %s", levelsDir)
		}
		return nil, fmt.Errorf("failed to stat levels directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("levels path is not a directory: %s", levelsDir)
	}
	if rules == nil {
		rules = engine.DefaultRules()
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	schema, err := compileLevelSchema()
	if err != nil {
		return nil, err
	}

	return &Manager{
		levelsDir: levelsDir,
		rules:     rules,
		logger:    logger,
		schema:    schema,
		levels:    make(map[int]*engine.Level),
	}, nil
}

// Rules returns the rules levels are parsed with
func (m *Manager) Rules() *engine.Rules {
	return m.rules
}

// LoadLevel loads a level by id
func (m *Manager) LoadLevel(id int) (*engine.Level, error) {
	m.mu.RLock()
	// Check cache first
	if level, exists := m.levels[id]; exists {
		m.mu.RUnlock()
		return level, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if level, exists := m.levels[id]; exists {
		return level, nil
	}

	path, ok := m.levelPath(id)
	if !ok {
		return nil, fmt.Errorf("level %d: %w", id, ErrLevelNotFound)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read level file: %w", err)
	}

	level, err := ParseLevelDocument(id, data, filepath.Ext(path), m.schema, m.rules)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	for _, w := range level.Warnings {
		m.logger.Warn("level warning", "level", id, "file", filepath.Base(path), "warning", w)
	}

	m.levels[id] = level
	return level, nil
}

// LevelCount returns how many levels exist contiguously from level_1; a gap ends the count
func (m *Manager) LevelCount() int {
	count := 0
	for {
		if _, ok := m.levelPath(count + 1); !ok {
			return count
		}
		count++
	}
}

// ListLevels returns information about every level in the contiguous run.
// Levels that fail to parse are logged and skipped.
func (m *Manager) ListLevels() ([]*service.LevelInfo, error) {
	if _, err := os.ReadDir(m.levelsDir); err != nil {
		return nil, fmt.Errorf("failed to read levels directory: %w", err)
	}

	total := m.LevelCount()
	levels := make([]*service.LevelInfo, 0, total)
	for id := 1; id <= total; id++ {
		level, err := m.LoadLevel(id)
		if err != nil {
			m.logger.Warn("skipping invalid level", "level", id, "error", err)
			continue
		}
		path, _ := m.levelPath(id)
		levels = append(levels, &service.LevelInfo{
			ID:          id,
			Filename:    filepath.Base(path),
			Name:        level.Name,
			Width:       level.Width,
			Height:      level.Height,
			Packages:    level.Packages,
			InitialFuel: level.InitialFuel,
			HintBattery: level.HintBattery,
		})
	}
	return levels, nil
}

// RefreshCache drops every cached level so the next load rereads disk
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels = make(map[int]*engine.Level)
}

// levelPath resolves a level id to an existing file
func (m *Manager) levelPath(id int) (string, bool) {
	if id < 1 {
		return "", false
	}
	for _, ext := range levelExtensions {
		path := filepath.Join(m.levelsDir, fmt.Sprintf("level_%d%s", id, ext))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// ParseLevelDocument validates a raw level document and builds the level.
// YAML documents are normalized to JSON first so one schema covers both.
func ParseLevelDocument(id int, data []byte, ext string, schema *jsonschema.Schema, rules *engine.Rules) (*engine.Level, error) {
	if schema == nil {
		var err error
		if schema, err = compileLevelSchema(); err != nil {
			return nil, err
		}
	}

	switch ext {
	case ".yaml", ".yml":
		converted, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		data = converted
	case ".json", "":
	default:
		return nil, fmt.Errorf("unsupported level format %q", ext)
	}

	doc, err := decodeJSON(data)
	if err != nil {
		return nil, &engine.ValidationError{Field: "level", Reason: fmt.Sprintf("is not valid JSON: %v", err)}
	}
	if err := validateDocument(schema, doc); err != nil {
		return nil, err
	}

	var spec engine.LevelSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, &engine.ValidationError{Field: "level", Reason: err.Error()}
	}
	return engine.NewLevel(id, &spec, rules)
}

// yamlToJSON re-encodes a YAML document as JSON
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &engine.ValidationError{Field: "level", Reason: fmt.Sprintf("is not valid YAML: %v", err)}
	}
	if doc == nil {
		return nil, &engine.ValidationError{Field: "level", Reason: "is empty"}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		var unsupported *json.UnsupportedTypeError
		if errors.As(err, &unsupported) {
			return nil, &engine.ValidationError{Field: "level", Reason: "uses non-string mapping keys"}
		}
		return nil, fmt.Errorf("failed to convert YAML level: %w", err)
	}
	return out, nil
}
