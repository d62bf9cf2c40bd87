package engine

import "fmt"

// Rules is the immutable tile and cost configuration shared by the level
// parser, the movement evaluator and the session state machine.
type Rules struct {
	Start       byte
	Wall        byte
	Destination byte
	Road        byte

	DefaultMoveCost int
	HintCost        int
}

// DefaultRules returns the stock symbol set: S start, # wall, D destination, 0 road
func DefaultRules() *Rules {
	return &Rules{
		Start:           'S',
		Wall:            '#',
		Destination:     'D',
		Road:            '0',
		DefaultMoveCost: 1,
		HintCost:        1,
	}
}

// Validate checks the rules for internal consistency
func (r *Rules) Validate() error {
	if r == nil {
		return fmt.Errorf("rules validation: rules are required")
	}
	symbols := map[string]byte{
		"start":       r.Start,
		"wall":        r.Wall,
		"destination": r.Destination,
	}
	seen := make(map[byte]string)
	for name, sym := range symbols {
		if sym == 0 {
			return fmt.Errorf("rules validation: %s symbol is required", name)
		}
		if isDigit(sym) {
			return fmt.Errorf("rules validation: %s symbol '%c' must not be a digit", name, sym)
		}
		if other, ok := seen[sym]; ok {
			return fmt.Errorf("rules validation: %s and %s share symbol '%c'", name, other, sym)
		}
		seen[sym] = name
	}
	if r.Road == 0 {
		return fmt.Errorf("rules validation: road symbol is required")
	}
	if other, ok := seen[r.Road]; ok {
		return fmt.Errorf("rules validation: road and %s share symbol '%c'", other, r.Road)
	}
	if r.DefaultMoveCost < 1 {
		return fmt.Errorf("rules validation: default move cost must be at least 1, got %d", r.DefaultMoveCost)
	}
	if r.HintCost < 1 {
		return fmt.Errorf("rules validation: hint cost must be at least 1, got %d", r.HintCost)
	}
	return nil
}

// Kind classifies a grid symbol
func (r *Rules) Kind(sym byte) TileKind {
	switch {
	case sym == r.Start:
		return StartTile
	case sym == r.Wall:
		return WallTile
	case sym == r.Destination:
		return DestinationTile
	case sym == r.Road:
		return RoadTile
	case isDigit(sym):
		return CostTile
	}
	return OpenTile
}

// Traversable reports whether a tile can be entered. Only walls block.
func (r *Rules) Traversable(sym byte) bool {
	return sym != r.Wall
}

// MoveCost returns the fuel spent when landing on a tile. Digit tiles encode
// their own cost, floored to the default when the digit is zero.
func (r *Rules) MoveCost(sym byte) int {
	if isDigit(sym) {
		if cost := int(sym - '0'); cost > 0 {
			return cost
		}
	}
	return r.DefaultMoveCost
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
