package engine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidLevel  = errors.New("invalid level")
	ErrLevelNotFound = errors.New("level not found")
)

// ValidationError describes why a level description was rejected
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("level validation: %s %s", e.Field, e.Reason)
}

// Is lets callers match any validation failure with errors.Is(err, ErrInvalidLevel)
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidLevel
}

// Grid is an ordered sequence of equal-length rows of tile symbols
type Grid []string

// Height returns the number of rows
func (g Grid) Height() int {
	return len(g)
}

// Width returns the row length, or zero for an empty grid
func (g Grid) Width() int {
	if len(g) == 0 {
		return 0
	}
	return len(g[0])
}

// InBounds reports whether p lies inside the grid
func (g Grid) InBounds(p Position) bool {
	return p.Row >= 0 && p.Row < g.Height() && p.Col >= 0 && p.Col < len(g[p.Row])
}

// At returns the symbol at p. The caller must check InBounds first.
func (g Grid) At(p Position) byte {
	return g[p.Row][p.Col]
}

// LevelSpec is the raw level record as it appears in a level file
type LevelSpec struct {
	Name        *string  `json:"level_name,omitempty" yaml:"level_name,omitempty"`
	InitialFuel *int     `json:"initial_fuel" yaml:"initial_fuel"`
	HintBattery *int     `json:"hint_battery" yaml:"hint_battery"`
	Grid        []string `json:"map_grid" yaml:"map_grid"`
}

// Level is a validated, read-only level definition
type Level struct {
	ID           int        `json:"id"`
	Name         string     `json:"name"`
	InitialFuel  int        `json:"initial_fuel"`
	HintBattery  int        `json:"hint_battery"`
	Grid         Grid       `json:"grid"`
	Start        Position   `json:"start"`
	Destinations []Position `json:"destinations"`
	Packages     int        `json:"packages"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`

	// Warnings carries non-fatal findings, such as a level without destinations
	Warnings []string `json:"warnings,omitempty"`
}

// NewLevel validates a raw level record and builds the level definition.
// Every cell is scanned once to locate the start tile and the destinations.
func NewLevel(id int, spec *LevelSpec, rules *Rules) (*Level, error) {
	if spec == nil {
		return nil, &ValidationError{Field: "level", Reason: "is required"}
	}
	if rules == nil {
		rules = DefaultRules()
	}

	name := DefaultLevelName
	if spec.Name != nil && *spec.Name != "" {
		name = *spec.Name
	}

	if spec.InitialFuel == nil {
		return nil, &ValidationError{Field: "initial_fuel", Reason: "is required"}
	}
	if *spec.InitialFuel < 0 {
		return nil, &ValidationError{Field: "initial_fuel", Reason: fmt.Sprintf("must be a non-negative integer, got %d", *spec.InitialFuel)}
	}
	if spec.HintBattery == nil {
		return nil, &ValidationError{Field: "hint_battery", Reason: "is required"}
	}
	if *spec.HintBattery < 0 {
		return nil, &ValidationError{Field: "hint_battery", Reason: fmt.Sprintf("must be a non-negative integer, got %d", *spec.HintBattery)}
	}
	if spec.Grid == nil {
		return nil, &ValidationError{Field: "map_grid", Reason: "is required"}
	}
	if len(spec.Grid) == 0 {
		return nil, &ValidationError{Field: "map_grid", Reason: "must contain at least one row"}
	}
	if len(spec.Grid) > MaxGridSize {
		return nil, &ValidationError{Field: "map_grid", Reason: fmt.Sprintf("must have at most %d rows, got %d", MaxGridSize, len(spec.Grid))}
	}

	grid := make(Grid, len(spec.Grid))
	copy(grid, spec.Grid)

	width := len(grid[0])
	if width > MaxGridSize {
		return nil, &ValidationError{Field: "map_grid", Reason: fmt.Sprintf("rows must have at most %d cells, got %d", MaxGridSize, width)}
	}

	var start *Position
	var destinations []Position
	for r, row := range grid {
		if len(row) != width {
			return nil, &ValidationError{
				Field:  "map_grid",
				Reason: fmt.Sprintf("row %d has length %d, expected %d", r, len(row), width),
			}
		}
		for c := 0; c < len(row); c++ {
			switch row[c] {
			case rules.Start:
				if start != nil {
					return nil, &ValidationError{
						Field:  "map_grid",
						Reason: fmt.Sprintf("has multiple start tiles at (%d,%d) and (%d,%d)", start.Row, start.Col, r, c),
					}
				}
				start = &Position{Row: r, Col: c}
			case rules.Destination:
				destinations = append(destinations, Position{Row: r, Col: c})
			}
		}
	}
	if start == nil {
		return nil, &ValidationError{Field: "map_grid", Reason: fmt.Sprintf("has no start tile '%c'", rules.Start)}
	}

	level := &Level{
		ID:           id,
		Name:         name,
		InitialFuel:  *spec.InitialFuel,
		HintBattery:  *spec.HintBattery,
		Grid:         grid,
		Start:        *start,
		Destinations: destinations,
		Packages:     len(destinations),
		Width:        width,
		Height:       len(grid),
	}
	if level.Packages == 0 {
		level.Warnings = append(level.Warnings, fmt.Sprintf("no destination tiles '%c' found; level is already complete", rules.Destination))
	}
	return level, nil
}

// IsDestination reports whether p is one of the level's destinations
func (l *Level) IsDestination(p Position) bool {
	for _, d := range l.Destinations {
		if d == p {
			return true
		}
	}
	return false
}
