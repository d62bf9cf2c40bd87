package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/parcel-run/game/engine"
)

func writeLevel(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func newTestManager(t *testing.T, dir string) *Manager {
	t.Helper()
	m, err := NewManager(dir, nil, nil)
	require.NoError(t, err)
	return m
}

const level1JSON = `{
  "level_name": "First Delivery",
  "initial_fuel": 3,
  "hint_battery": 1,
  "map_grid": ["S0D"]
}`

const level2YAML = `
initial_fuel: 8
hint_battery: 0
map_grid:
  - "S0#"
  - "00D"
`

func TestNewManagerMissingDir(t *testing.T) {
	_, err := NewManager(filepath.Join(t.TempDir(), "nope"), nil, nil)
	assert.Error(t, err)
}

func TestNewManagerRejectsBadRules(t *testing.T) {
	rules := engine.DefaultRules()
	rules.Wall = rules.Start
	_, err := NewManager(t.TempDir(), rules, nil)
	assert.Error(t, err)
}

func TestLoadLevelJSON(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "level_1.json", level1JSON)
	m := newTestManager(t, dir)

	level, err := m.LoadLevel(1)
	require.NoError(t, err)
	assert.Equal(t, 1, level.ID)
	assert.Equal(t, "First Delivery", level.Name)
	assert.Equal(t, 3, level.InitialFuel)
	assert.Equal(t, 1, level.HintBattery)
	assert.Equal(t, engine.Position{Row: 0, Col: 0}, level.Start)
	assert.Equal(t, []engine.Position{{Row: 0, Col: 2}}, level.Destinations)

	again, err := m.LoadLevel(1)
	require.NoError(t, err)
	assert.Same(t, level, again, "second load is served from cache")
}

func TestLoadLevelYAML(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "level_2.yaml", level2YAML)
	m := newTestManager(t, dir)

	level, err := m.LoadLevel(2)
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultLevelName, level.Name)
	assert.Equal(t, 8, level.InitialFuel)
	assert.Equal(t, engine.Grid{"S0#", "00D"}, level.Grid)
}

func TestLoadLevelNotFound(t *testing.T) {
	m := newTestManager(t, t.TempDir())
	_, err := m.LoadLevel(1)
	assert.ErrorIs(t, err, ErrLevelNotFound)

	_, err = m.LoadLevel(0)
	assert.ErrorIs(t, err, ErrLevelNotFound)
}

func TestLoadLevelValidation(t *testing.T) {
	tests := []struct {
		name  string
		file  string
		body  string
		field string
	}{
		{"negative fuel", "level_1.json", `{"initial_fuel": -1, "hint_battery": 0, "map_grid": ["SD"]}`, "initial_fuel"},
		{"fractional fuel", "level_1.json", `{"initial_fuel": 1.5, "hint_battery": 0, "map_grid": ["SD"]}`, "initial_fuel"},
		{"string battery", "level_1.json", `{"initial_fuel": 1, "hint_battery": "two", "map_grid": ["SD"]}`, "hint_battery"},
		{"missing grid", "level_1.json", `{"initial_fuel": 1, "hint_battery": 0}`, "level"},
		{"grid not a list", "level_1.json", `{"initial_fuel": 1, "hint_battery": 0, "map_grid": "SD"}`, "map_grid"},
		{"ragged rows", "level_1.json", `{"initial_fuel": 1, "hint_battery": 0, "map_grid": ["S0D", "0"]}`, "map_grid"},
		{"no start", "level_1.json", `{"initial_fuel": 1, "hint_battery": 0, "map_grid": ["00D"]}`, "map_grid"},
		{"not json", "level_1.json", `{"initial_fuel": `, "level"},
		{"yaml negative battery", "level_1.yml", "initial_fuel: 1\nhint_battery: -4\nmap_grid: [SD]\n", "hint_battery"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeLevel(t, dir, tt.file, tt.body)
			m := newTestManager(t, dir)

			_, err := m.LoadLevel(1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidLevel), "got %v", err)

			var verr *engine.ValidationError
			require.True(t, errors.As(err, &verr), "got %T", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestLevelCountStopsAtGap(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "level_1.json", level1JSON)
	writeLevel(t, dir, "level_2.yaml", level2YAML)
	writeLevel(t, dir, "level_4.json", level1JSON)
	writeLevel(t, dir, "notes.txt", "not a level")
	m := newTestManager(t, dir)

	assert.Equal(t, 2, m.LevelCount())
}

func TestListLevels(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "level_1.json", level1JSON)
	writeLevel(t, dir, "level_2.yaml", level2YAML)
	writeLevel(t, dir, "level_3.json", `{"initial_fuel": 1}`)
	m := newTestManager(t, dir)

	levels, err := m.ListLevels()
	require.NoError(t, err)
	require.Len(t, levels, 2, "invalid level 3 is skipped")

	assert.Equal(t, 1, levels[0].ID)
	assert.Equal(t, "level_1.json", levels[0].Filename)
	assert.Equal(t, "First Delivery", levels[0].Name)
	assert.Equal(t, 1, levels[0].Packages)

	assert.Equal(t, 2, levels[1].ID)
	assert.Equal(t, "level_2.yaml", levels[1].Filename)
	assert.Equal(t, 3, levels[1].Width)
	assert.Equal(t, 2, levels[1].Height)
}

func TestRefreshCache(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "level_1.json", level1JSON)
	m := newTestManager(t, dir)

	first, err := m.LoadLevel(1)
	require.NoError(t, err)

	writeLevel(t, dir, "level_1.json", `{"level_name": "Rewritten", "initial_fuel": 1, "hint_battery": 0, "map_grid": ["SD"]}`)
	cached, err := m.LoadLevel(1)
	require.NoError(t, err)
	assert.Equal(t, first.Name, cached.Name)

	m.RefreshCache()
	fresh, err := m.LoadLevel(1)
	require.NoError(t, err)
	assert.Equal(t, "Rewritten", fresh.Name)
}

func TestConcurrentLoads(t *testing.T) {
	dir := t.TempDir()
	writeLevel(t, dir, "level_1.json", level1JSON)
	m := newTestManager(t, dir)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			level, err := m.LoadLevel(1)
			assert.NoError(t, err)
			assert.Equal(t, "First Delivery", level.Name)
		}()
	}
	wg.Wait()
}

func TestParseLevelDocumentUnsupportedFormat(t *testing.T) {
	_, err := ParseLevelDocument(1, []byte("x"), ".toml", nil, nil)
	assert.Error(t, err)
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
symbols:
  wall: "X"
costs:
  hint: 2
`), 0644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, byte('X'), rules.Wall)
	assert.Equal(t, byte('S'), rules.Start)
	assert.Equal(t, 1, rules.DefaultMoveCost)
	assert.Equal(t, 2, rules.HintCost)
}

func TestParseRulesErrors(t *testing.T) {
	tests := map[string]string{
		"multi-char symbol": "symbols:\n  start: SS\n",
		"digit symbol":      "symbols:\n  wall: \"1\"\n",
		"clashing symbols":  "symbols:\n  destination: S\n",
		"negative cost":     "costs:\n  default_move: -1\n",
		"bad yaml":          "symbols: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(body))
			assert.Error(t, err)
		})
	}
}
