package engine

import (
	"fmt"
	"time"
)

// CanMoveTo checks if a cell exists and is not a wall
func CanMoveTo(grid Grid, p Position, rules *Rules) bool {
	return grid.InBounds(p) && rules.Traversable(grid.At(p))
}

// LegalMoves computes which cardinal moves are legal from pos. It is a pure
// function of the grid and the position, so callers recompute it before
// every move instead of caching flags.
func LegalMoves(grid Grid, pos Position, rules *Rules) Moves {
	var m Moves
	if !grid.InBounds(pos) {
		return m
	}
	for _, d := range Directions {
		m.set(d, CanMoveTo(grid, pos.Step(d), rules))
	}
	return m
}

// ApplyMove shifts pos one cell in dir when legal allows it. Fuel is not
// touched here; cost accounting belongs to the session.
func ApplyMove(pos Position, dir Direction, legal Moves) (Position, bool) {
	if !legal.Allows(dir) {
		return pos, false
	}
	return pos.Step(dir), true
}

// describeBlock explains why a move from pos in dir is not possible
func describeBlock(grid Grid, pos Position, dir Direction, rules *Rules) string {
	target := pos.Step(dir)
	if !grid.InBounds(target) {
		return fmt.Sprintf("Can't move %s: edge of map at (%d,%d)", dir, target.Row, target.Col)
	}
	return fmt.Sprintf("Can't move %s: %s at (%d,%d)", dir, rules.Kind(grid.At(target)), target.Row, target.Col)
}

// addMoveToHistory adds a move to the session's move history
func (e *GameEngine) addMoveToHistory(action string, from, to Position, success bool) {
	entry := MoveHistoryEntry{
		Action:       action,
		FromPosition: from,
		ToPosition:   to,
		Fuel:         e.fuel,
		Timestamp:    time.Now().Unix(),
		Success:      success,
		MoveNumber:   len(e.history) + 1,
	}
	// Append to cumulative history (never cleared by retry)
	e.history = append(e.history, entry)

	// Append to current segment history
	e.current = append(e.current, entry)
}
