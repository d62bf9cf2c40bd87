package engine

import "strings"

// TileKind represents the role a grid symbol plays under a Rules value
type TileKind string

const (
	StartTile       TileKind = "start"
	WallTile        TileKind = "wall"
	DestinationTile TileKind = "destination"
	RoadTile        TileKind = "road"
	CostTile        TileKind = "cost"
	OpenTile        TileKind = "open"

	// Validation constants
	MaxGridSize          = 64
	MaxBulkMoves         = 50
	DefaultUnlockedLevel = 1
	DefaultLevelName     = "Unnamed Level"
)

// State is the lifecycle tag of a session
type State string

const (
	Idle           State = "idle"
	Playing        State = "playing"
	ConfirmingHint State = "confirm_hint"
	Paused         State = "paused"
	LevelComplete  State = "level_complete"
	GameOver       State = "game_over"
)

// Valid reports whether s is one of the known lifecycle states
func (s State) Valid() bool {
	switch s {
	case Idle, Playing, ConfirmingHint, Paused, LevelComplete, GameOver:
		return true
	}
	return false
}

// Position is a (row, col) grid coordinate
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Step returns the neighbouring position one cell away in direction d
func (p Position) Step(d Direction) Position {
	dr, dc := d.Delta()
	return Position{Row: p.Row + dr, Col: p.Col + dc}
}

// Less orders positions row-major
func (p Position) Less(o Position) bool {
	if p.Row != o.Row {
		return p.Row < o.Row
	}
	return p.Col < o.Col
}

// Direction is one of the four cardinal moves
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// Directions lists the cardinal moves in expansion order
var Directions = []Direction{Up, Down, Left, Right}

// ParseDirection normalizes user input into a Direction
func ParseDirection(s string) (Direction, bool) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Up:
		return Up, true
	case Down:
		return Down, true
	case Left:
		return Left, true
	case Right:
		return Right, true
	}
	return "", false
}

// Delta returns the row and column offset for the direction
func (d Direction) Delta() (int, int) {
	switch d {
	case Up:
		return -1, 0
	case Down:
		return 1, 0
	case Left:
		return 0, -1
	case Right:
		return 0, 1
	}
	return 0, 0
}

// Moves is the set of cardinal moves currently legal from a position
type Moves struct {
	Up    bool `json:"up"`
	Down  bool `json:"down"`
	Left  bool `json:"left"`
	Right bool `json:"right"`
}

// Allows reports whether direction d is legal
func (m Moves) Allows(d Direction) bool {
	switch d {
	case Up:
		return m.Up
	case Down:
		return m.Down
	case Left:
		return m.Left
	case Right:
		return m.Right
	}
	return false
}

// List returns the legal directions in expansion order
func (m Moves) List() []Direction {
	var out []Direction
	for _, d := range Directions {
		if m.Allows(d) {
			out = append(out, d)
		}
	}
	return out
}

func (m *Moves) set(d Direction, ok bool) {
	switch d {
	case Up:
		m.Up = ok
	case Down:
		m.Down = ok
	case Left:
		m.Left = ok
	case Right:
		m.Right = ok
	}
}

// Path is an ordered route from a start cell to a goal cell, both inclusive.
// An empty path means no route was found or none was requested.
type Path []Position

// DestinationStatus pairs a destination with its delivery flag
type DestinationStatus struct {
	Pos       Position `json:"pos"`
	Delivered bool     `json:"delivered"`
}

// GameState is the read-only projection of a session handed to renderers and transports
type GameState struct {
	LevelID       int                 `json:"level_id"`
	LevelName     string              `json:"level_name"`
	State         State               `json:"state"`
	Grid          []string            `json:"grid"`
	Width         int                 `json:"width"`
	Height        int                 `json:"height"`
	PlayerPos     Position            `json:"player_pos"`
	Fuel          int                 `json:"fuel"`
	Battery       int                 `json:"battery"`
	PackagesLeft  int                 `json:"packages_left"`
	TotalPackages int                 `json:"total_packages"`
	Destinations  []DestinationStatus `json:"destinations"`
	HintPath      Path                `json:"hint_path"`
	PossibleMoves Moves               `json:"possible_moves"`
	Message       string              `json:"message"`
	MoveHistory   []MoveHistoryEntry  `json:"move_history"`
	TotalMoves    int                 `json:"total_moves"`

	// CurrentMoves tracks only the moves since the last retry. It mirrors MoveHistory entries
	// but gets cleared on retry while MoveHistory remains cumulative.
	CurrentMoves      []MoveHistoryEntry `json:"current_moves"`
	CurrentMovesCount int                `json:"current_moves_count"`
}

// MoveHistoryEntry represents a single move attempt in the session history
type MoveHistoryEntry struct {
	Action       string   `json:"action"`
	FromPosition Position `json:"from_position"`
	ToPosition   Position `json:"to_position"`
	Fuel         int      `json:"fuel"`
	Timestamp    int64    `json:"timestamp"`
	Success      bool     `json:"success"`
	MoveNumber   int      `json:"move_number"`
}
