package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLegalMovesBoundaries(t *testing.T) {
	rules := DefaultRules()
	grid := Grid{"S#"}

	moves := LegalMoves(grid, Position{0, 0}, rules)
	assert.Equal(t, Moves{}, moves)

	for _, d := range Directions {
		pos, moved := ApplyMove(Position{0, 0}, d, moves)
		assert.False(t, moved, "direction %s", d)
		assert.Equal(t, Position{0, 0}, pos)
	}
}

func TestLegalMovesOpenCell(t *testing.T) {
	rules := DefaultRules()
	grid := Grid{
		"0#0",
		"0S2",
		"0D0",
	}

	moves := LegalMoves(grid, Position{1, 1}, rules)
	assert.Equal(t, Moves{Up: false, Down: true, Left: true, Right: true}, moves)
	assert.Equal(t, []Direction{Down, Left, Right}, moves.List())
}

func TestLegalMovesOutOfBounds(t *testing.T) {
	assert.Equal(t, Moves{}, LegalMoves(Grid{"S0"}, Position{3, 3}, DefaultRules()))
}

func TestApplyMove(t *testing.T) {
	legal := Moves{Right: true, Down: true}

	tests := []struct {
		dir       Direction
		want      Position
		wantMoved bool
	}{
		{Right, Position{2, 3}, true},
		{Down, Position{3, 2}, true},
		{Up, Position{2, 2}, false},
		{Left, Position{2, 2}, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			got, moved := ApplyMove(Position{2, 2}, tt.dir, legal)
			assert.Equal(t, tt.wantMoved, moved)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDirection(t *testing.T) {
	tests := map[string]Direction{
		"up":     Up,
		" DOWN ": Down,
		"Left":   Left,
		"right":  Right,
	}
	for in, want := range tests {
		got, ok := ParseDirection(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParseDirection("north")
	assert.False(t, ok)
}
