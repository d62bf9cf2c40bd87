package service

import (
	"time"

	"github.com/wricardo/parcel-run/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string            `json:"id"`
	LevelID        int               `json:"level_id"`
	LevelName      string            `json:"level_name"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	GameState      *engine.GameState `json:"game_state"`
}

// MoveResult contains the result of a move operation
type MoveResult struct {
	Success     bool              `json:"success"`
	GameState   *engine.GameState `json:"game_state"`
	Message     string            `json:"message"`
	Events      []GameEvent       `json:"events,omitempty"`
	Step        *StepInfo         `json:"step,omitempty"`
	AttemptedTo *AttemptInfo      `json:"attempted_to,omitempty"`
}

// BulkMoveResult contains the result of multiple moves
type BulkMoveResult struct {
	// Summary
	MovesExecuted  int               `json:"moves_executed"`
	RequestedMoves int               `json:"requested_moves"`
	Success        bool              `json:"success"`
	GameState      *engine.GameState `json:"game_state"`
	Events         []GameEvent       `json:"events"`
	StoppedReason  string            `json:"stopped_reason,omitempty"`   // Human-readable reason
	StopReasonCode string            `json:"stop_reason_code,omitempty"` // invalid_direction|blocked_wall|blocked_boundary|out_of_fuel|level_complete|game_over|not_playing
	StoppedOnMove  int               `json:"stopped_on_move,omitempty"`  // 1-based index of the move that caused stop
	Truncated      bool              `json:"truncated,omitempty"`
	Limit          int               `json:"limit,omitempty"`

	// Start/end snapshot
	StartPos          engine.Position `json:"start_pos"`
	EndPos            engine.Position `json:"end_pos"`
	StartFuel         int             `json:"start_fuel"`
	EndFuel           int             `json:"end_fuel"`
	PackagesDelivered int             `json:"packages_delivered"`

	// Per-step compact trace (only for this call)
	Steps []StepInfo `json:"steps,omitempty"`

	// Failure diagnostics
	AttemptedTo *AttemptInfo `json:"attempted_to,omitempty"`

	// Final status aids
	State         engine.State       `json:"state"`
	Message       string             `json:"message,omitempty"`
	PossibleMoves []engine.Direction `json:"possible_moves,omitempty"`
}

// StepInfo is a compact record for each executed move
type StepInfo struct {
	Idx        int              `json:"idx"`
	Dir        engine.Direction `json:"dir"`
	From       engine.Position  `json:"from"`
	To         engine.Position  `json:"to"`
	TileChar   string           `json:"tile_char"`
	TileType   engine.TileKind  `json:"tile_type"`
	FuelBefore int              `json:"fuel_before"`
	FuelAfter  int              `json:"fuel_after"`
	Success    bool             `json:"success"`
	Delivered  bool             `json:"delivered,omitempty"`
	Complete   bool             `json:"complete,omitempty"`
}

// AttemptInfo details the target cell of a move that did not happen
type AttemptInfo struct {
	Row      int             `json:"row"`
	Col      int             `json:"col"`
	TileChar string          `json:"tile_char"`
	TileType engine.TileKind `json:"tile_type"`
	Passable bool            `json:"passable"`
}

// ActionResult is returned by the non-movement session actions
type ActionResult struct {
	Success   bool              `json:"success"`
	GameState *engine.GameState `json:"game_state"`
	Message   string            `json:"message"`
	Events    []GameEvent       `json:"events,omitempty"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	Type      string          `json:"type"` // "move", "blocked", "delivery", "level_complete", "game_over", "hint_requested", "hint", "hint_declined", "paused", "resumed", "level_loaded"
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
	Position  engine.Position `json:"position,omitempty"`
}

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []engine.MoveHistoryEntry `json:"moves"`
	TotalMoves  int                       `json:"total_moves"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// LevelInfo provides information about a level file
type LevelInfo struct {
	ID          int    `json:"id"`
	Filename    string `json:"filename"`
	Name        string `json:"name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Packages    int    `json:"packages"`
	InitialFuel int    `json:"initial_fuel"`
	HintBattery int    `json:"hint_battery"`
	Unlocked    bool   `json:"unlocked"`
}

// ProgressInfo reports the unlocked maximum against the available levels
type ProgressInfo struct {
	MaxUnlockedLevel int `json:"max_unlocked_level"`
	TotalLevels      int `json:"total_levels"`
}
