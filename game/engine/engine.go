package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zyedidia/generic/mapset"
)

var (
	ErrNoLevelLoaded     = errors.New("no level loaded")
	ErrNoNextLevel       = errors.New("no next level")
	ErrInvalidTransition = errors.New("action not allowed in current state")
	ErrUnknownChoice     = errors.New("unknown dialog choice")
	ErrInvalidSnapshot   = errors.New("invalid session snapshot")
)

// LevelSource resolves level ids to validated level definitions
type LevelSource interface {
	LoadLevel(id int) (*Level, error)
	// LevelCount returns the number of contiguous levels available from id 1
	LevelCount() int
}

// ProgressStore persists the highest level unlocked
type ProgressStore interface {
	LoadProgress() (int, error)
	SaveProgress(level int) error
	ResetProgress() error
}

// Engine provides the main interface for game operations
type Engine interface {
	// Session actions
	LoadLevel(id int) error
	Move(direction Direction) bool
	RequestHint() bool
	ConfirmHint(confirmed bool) bool
	Pause() bool
	Resume() bool
	Retry() error
	NextLevel() error
	Exit()
	Choose(choice DialogChoice) error

	// Session queries
	State() State
	Fuel() int
	Battery() int
	PackagesLeft() int
	TotalPackages() int
	Grid() Grid
	PlayerPosition() Position
	Destinations() []DestinationStatus
	HintPath() Path
	PossibleMoves() Moves
	LevelID() int
	Loaded() bool

	// Snapshots
	GetState() *GameState
	GetMoveHistory() []MoveHistoryEntry
	Restore(state *GameState) error
}

// GameEngine implements the Engine interface. It is not safe for concurrent
// use; callers serialize actions against one engine.
type GameEngine struct {
	rules    *Rules
	levels   LevelSource
	progress ProgressStore
	logger   *slog.Logger

	level        *Level
	state        State
	pos          Position
	fuel         int
	battery      int
	delivered    mapset.Set[Position]
	packagesLeft int
	hintPath     Path
	message      string

	history []MoveHistoryEntry
	current []MoveHistoryEntry
}

// Option configures a GameEngine
type Option func(*GameEngine)

// WithLogger sets the logger used for transition records
func WithLogger(logger *slog.Logger) Option {
	return func(e *GameEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRules replaces the default tile and cost rules
func WithRules(rules *Rules) Option {
	return func(e *GameEngine) {
		if rules != nil {
			e.rules = rules
		}
	}
}

// NewEngine creates an engine with no level loaded
func NewEngine(levels LevelSource, progress ProgressStore, opts ...Option) (*GameEngine, error) {
	if levels == nil {
		return nil, fmt.Errorf("level source is required")
	}
	if progress == nil {
		return nil, fmt.Errorf("progress store is required")
	}

	e := &GameEngine{
		rules:     DefaultRules(),
		levels:    levels,
		progress:  progress,
		logger:    slog.New(slog.DiscardHandler),
		state:     Idle,
		delivered: mapset.New[Position](),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.rules.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Rules returns the rules the engine plays by
func (e *GameEngine) Rules() *Rules {
	return e.rules
}

// LoadLevel starts a fresh session on the given level. On failure the
// engine is left unloaded.
func (e *GameEngine) LoadLevel(id int) error {
	level, err := e.levels.LoadLevel(id)
	if err != nil {
		e.unload()
		return fmt.Errorf("load level %d: %w", id, err)
	}
	e.start(level)
	return nil
}

// start resets every session field from the level definition
func (e *GameEngine) start(level *Level) {
	e.level = level
	e.pos = level.Start
	e.fuel = level.InitialFuel
	e.battery = level.HintBattery
	e.delivered = mapset.New[Position]()
	e.packagesLeft = level.Packages
	e.hintPath = nil
	e.current = nil
	e.state = Playing
	e.message = fmt.Sprintf("Level %d: %s", level.ID, level.Name)

	for _, w := range level.Warnings {
		e.logger.Warn("level warning", "level", level.ID, "warning", w)
	}
	e.logger.Debug("level_loaded", "level", level.ID, "name", level.Name,
		"fuel", e.fuel, "battery", e.battery, "packages", e.packagesLeft)

	e.deliverAt(e.pos)
	e.evaluate()
}

func (e *GameEngine) unload() {
	e.level = nil
	e.state = Idle
	e.hintPath = nil
	e.delivered = mapset.New[Position]()
	e.packagesLeft = 0
	e.message = ""
}

// Move attempts to move the player one cell. It reports whether the player moved.
func (e *GameEngine) Move(direction Direction) bool {
	if e.level == nil || e.state != Playing {
		return false
	}
	from := e.pos

	if e.fuel <= 0 && e.packagesLeft > 0 {
		e.message = "Out of fuel"
		e.setState(GameOver)
		e.addMoveToHistory(string(direction), from, from, false)
		return false
	}

	legal := LegalMoves(e.level.Grid, e.pos, e.rules)
	to, moved := ApplyMove(e.pos, direction, legal)
	if !moved {
		e.message = describeBlock(e.level.Grid, e.pos, direction, e.rules)
		e.addMoveToHistory(string(direction), from, from, false)
		return false
	}

	e.pos = to
	e.fuel -= e.rules.MoveCost(e.level.Grid.At(to))
	e.message = fmt.Sprintf("Moved %s to (%d,%d)", direction, to.Row, to.Col)
	e.deliverAt(to)
	e.evaluate()
	e.addMoveToHistory(string(direction), from, to, true)
	return true
}

// deliverAt records a delivery when p is an undelivered destination
func (e *GameEngine) deliverAt(p Position) {
	if !e.level.IsDestination(p) || e.delivered.Has(p) {
		return
	}
	e.delivered.Put(p)
	e.packagesLeft--
	e.message = fmt.Sprintf("Package delivered at (%d,%d)! %d left", p.Row, p.Col, e.packagesLeft)
	e.logger.Debug("package_delivered", "level", e.level.ID, "row", p.Row, "col", p.Col, "left", e.packagesLeft)
}

// evaluate applies win and loss checks. Completion is checked before fuel so
// the move that both delivers the last package and empties the tank wins.
func (e *GameEngine) evaluate() {
	if e.state != Playing && e.state != ConfirmingHint {
		return
	}
	if e.packagesLeft == 0 {
		e.message = "All packages delivered!"
		e.setState(LevelComplete)
		e.complete()
		return
	}
	if e.fuel < 0 {
		e.message = "Out of fuel"
		e.setState(GameOver)
	}
}

// complete propagates the unlock of the next level to the progress store
func (e *GameEngine) complete() {
	next := e.level.ID + 1
	unlocked := e.loadProgress()
	if next <= unlocked {
		return
	}
	if next > e.levels.LevelCount()+1 {
		return
	}
	if err := e.progress.SaveProgress(next); err != nil {
		e.logger.Warn("failed to save progress", "level", next, "error", err)
		return
	}
	e.logger.Debug("progress_saved", "unlocked", next)
}

// loadProgress reads the unlocked maximum, degrading to the default on failure
func (e *GameEngine) loadProgress() int {
	unlocked, err := e.progress.LoadProgress()
	if err != nil {
		e.logger.Warn("failed to load progress", "error", err)
		return DefaultUnlockedLevel
	}
	if unlocked < DefaultUnlockedLevel {
		return DefaultUnlockedLevel
	}
	return unlocked
}

func (e *GameEngine) setState(s State) {
	if e.state == s {
		return
	}
	e.logger.Debug("state_changed", "from", e.state, "to", s)
	e.state = s
}

// RequestHint asks for hint confirmation when there is battery for it
func (e *GameEngine) RequestHint() bool {
	if e.level == nil || e.state != Playing {
		return false
	}
	if e.battery < e.rules.HintCost || e.packagesLeft == 0 {
		e.message = "Not enough battery for a hint"
		return false
	}
	e.message = fmt.Sprintf("Use %d battery for a hint?", e.rules.HintCost)
	e.setState(ConfirmingHint)
	return true
}

// ConfirmHint answers a pending hint request. Confirming spends battery and
// routes toward an undelivered destination; declining clears the hint.
func (e *GameEngine) ConfirmHint(confirmed bool) bool {
	if e.level == nil || e.state != ConfirmingHint {
		return false
	}
	e.hintPath = nil
	if !confirmed || e.battery < e.rules.HintCost {
		e.message = "Hint cancelled"
		e.setState(Playing)
		return true
	}

	e.battery -= e.rules.HintCost
	target, path, ok := HintRoute(e.level.Grid, e.pos, e.pending(), e.rules)
	if ok {
		e.hintPath = path
		e.message = fmt.Sprintf("Hint: %d steps to (%d,%d)", len(path)-1, target.Row, target.Col)
	} else {
		e.message = "No route to any remaining destination"
	}
	e.logger.Debug("hint_used", "battery", e.battery, "found", ok, "steps", len(path))
	e.setState(Playing)
	return true
}

// pending lists undelivered destinations in level order
func (e *GameEngine) pending() []Position {
	var out []Position
	for _, d := range e.level.Destinations {
		if !e.delivered.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// Pause suspends play
func (e *GameEngine) Pause() bool {
	if e.level == nil || e.state != Playing {
		return false
	}
	e.message = "Paused"
	e.setState(Paused)
	return true
}

// Resume continues a paused session
func (e *GameEngine) Resume() bool {
	if e.level == nil || e.state != Paused {
		return false
	}
	e.message = "Resumed"
	e.setState(Playing)
	return true
}

// Retry reloads the current level. The cumulative move history survives;
// the current segment starts over.
func (e *GameEngine) Retry() error {
	if e.level == nil {
		return ErrNoLevelLoaded
	}
	switch e.state {
	case LevelComplete, GameOver, Paused:
	default:
		return fmt.Errorf("retry from %s: %w", e.state, ErrInvalidTransition)
	}
	return e.LoadLevel(e.level.ID)
}

// NextLevel loads the level after the completed one if it is unlocked and exists
func (e *GameEngine) NextLevel() error {
	if e.level == nil {
		return ErrNoLevelLoaded
	}
	if e.state != LevelComplete {
		return fmt.Errorf("next level from %s: %w", e.state, ErrInvalidTransition)
	}
	next := e.level.ID + 1
	if next > e.loadProgress() || next > e.levels.LevelCount() {
		return fmt.Errorf("level %d: %w", next, ErrNoNextLevel)
	}
	return e.LoadLevel(next)
}

// Exit discards the session
func (e *GameEngine) Exit() {
	if e.level != nil {
		e.logger.Debug("session_exited", "level", e.level.ID)
	}
	e.unload()
	e.history = nil
	e.current = nil
}

// State returns the lifecycle tag
func (e *GameEngine) State() State {
	return e.state
}

// Fuel returns the remaining fuel
func (e *GameEngine) Fuel() int {
	return e.fuel
}

// Battery returns the remaining hint battery
func (e *GameEngine) Battery() int {
	return e.battery
}

// PackagesLeft returns the number of undelivered packages
func (e *GameEngine) PackagesLeft() int {
	return e.packagesLeft
}

// TotalPackages returns the number of packages in the level
func (e *GameEngine) TotalPackages() int {
	if e.level == nil {
		return 0
	}
	return e.level.Packages
}

// Grid returns a copy of the level grid
func (e *GameEngine) Grid() Grid {
	if e.level == nil {
		return nil
	}
	out := make(Grid, len(e.level.Grid))
	copy(out, e.level.Grid)
	return out
}

// PlayerPosition returns the player's cell
func (e *GameEngine) PlayerPosition() Position {
	return e.pos
}

// Destinations returns every destination with its delivered flag, in level order
func (e *GameEngine) Destinations() []DestinationStatus {
	if e.level == nil {
		return nil
	}
	out := make([]DestinationStatus, len(e.level.Destinations))
	for i, d := range e.level.Destinations {
		out[i] = DestinationStatus{Pos: d, Delivered: e.delivered.Has(d)}
	}
	return out
}

// HintPath returns the last confirmed hint path, possibly empty
func (e *GameEngine) HintPath() Path {
	out := make(Path, len(e.hintPath))
	copy(out, e.hintPath)
	return out
}

// PossibleMoves returns the moves legal from the player's cell
func (e *GameEngine) PossibleMoves() Moves {
	if e.level == nil {
		return Moves{}
	}
	return LegalMoves(e.level.Grid, e.pos, e.rules)
}

// LevelID returns the loaded level id, or zero
func (e *GameEngine) LevelID() int {
	if e.level == nil {
		return 0
	}
	return e.level.ID
}

// Loaded reports whether a level is loaded
func (e *GameEngine) Loaded() bool {
	return e.level != nil
}

// Level returns the loaded level definition
func (e *GameEngine) Level() *Level {
	return e.level
}

// GetState builds a snapshot of the session for renderers and persistence
func (e *GameEngine) GetState() *GameState {
	s := &GameState{
		LevelID:           e.LevelID(),
		State:             e.state,
		Grid:              e.Grid(),
		PlayerPos:         e.pos,
		Fuel:              e.fuel,
		Battery:           e.battery,
		PackagesLeft:      e.packagesLeft,
		TotalPackages:     e.TotalPackages(),
		Destinations:      e.Destinations(),
		HintPath:          e.HintPath(),
		PossibleMoves:     e.PossibleMoves(),
		Message:           e.message,
		MoveHistory:       append([]MoveHistoryEntry{}, e.history...),
		TotalMoves:        len(e.history),
		CurrentMoves:      append([]MoveHistoryEntry{}, e.current...),
		CurrentMovesCount: len(e.current),
	}
	if e.level != nil {
		s.LevelName = e.level.Name
		s.Width = e.level.Width
		s.Height = e.level.Height
	}
	return s
}

// GetMoveHistory returns the cumulative move history
func (e *GameEngine) GetMoveHistory() []MoveHistoryEntry {
	return append([]MoveHistoryEntry{}, e.history...)
}

// Restore rebuilds a session from a snapshot produced by GetState. The level
// is reloaded by id so the snapshot cannot alter the grid.
func (e *GameEngine) Restore(snap *GameState) error {
	if snap == nil {
		return fmt.Errorf("%w: snapshot is nil", ErrInvalidSnapshot)
	}
	if !snap.State.Valid() {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidSnapshot, snap.State)
	}
	if snap.State == Idle {
		e.Exit()
		e.history = append([]MoveHistoryEntry{}, snap.MoveHistory...)
		return nil
	}

	level, err := e.levels.LoadLevel(snap.LevelID)
	if err != nil {
		return fmt.Errorf("restore level %d: %w", snap.LevelID, err)
	}
	if !CanMoveTo(level.Grid, snap.PlayerPos, e.rules) {
		return fmt.Errorf("%w: player position (%d,%d) is not a traversable cell",
			ErrInvalidSnapshot, snap.PlayerPos.Row, snap.PlayerPos.Col)
	}
	if snap.Battery < 0 {
		return fmt.Errorf("%w: negative battery %d", ErrInvalidSnapshot, snap.Battery)
	}

	delivered := mapset.New[Position]()
	for _, d := range snap.Destinations {
		if !d.Delivered {
			continue
		}
		if !level.IsDestination(d.Pos) {
			return fmt.Errorf("%w: (%d,%d) is not a destination", ErrInvalidSnapshot, d.Pos.Row, d.Pos.Col)
		}
		delivered.Put(d.Pos)
	}
	packagesLeft := level.Packages - delivered.Size()
	if snap.PackagesLeft != packagesLeft {
		return fmt.Errorf("%w: %d packages left but %d destinations undelivered",
			ErrInvalidSnapshot, snap.PackagesLeft, packagesLeft)
	}
	if err := e.checkSnapshotState(snap, packagesLeft); err != nil {
		return err
	}

	e.level = level
	e.state = snap.State
	e.pos = snap.PlayerPos
	e.fuel = snap.Fuel
	e.battery = snap.Battery
	e.delivered = delivered
	e.packagesLeft = packagesLeft
	e.hintPath = append(Path{}, snap.HintPath...)
	e.message = snap.Message
	e.history = append([]MoveHistoryEntry{}, snap.MoveHistory...)
	e.current = append([]MoveHistoryEntry{}, snap.CurrentMoves...)
	return nil
}

// checkSnapshotState rejects lifecycle tags that evaluate could never have
// produced from the snapshot's fuel, battery and deliveries.
func (e *GameEngine) checkSnapshotState(snap *GameState, packagesLeft int) error {
	var reason string
	switch {
	case packagesLeft == 0 && snap.State != LevelComplete:
		reason = fmt.Sprintf("every package is delivered but state is %s", snap.State)
	case packagesLeft > 0 && snap.State == LevelComplete:
		reason = fmt.Sprintf("level complete with %d packages left", packagesLeft)
	case snap.State == GameOver && snap.Fuel > 0:
		reason = fmt.Sprintf("game over with %d fuel left", snap.Fuel)
	case snap.State != GameOver && snap.State != LevelComplete && snap.Fuel < 0:
		reason = fmt.Sprintf("state %s with negative fuel %d", snap.State, snap.Fuel)
	case snap.State == ConfirmingHint && snap.Battery < e.rules.HintCost:
		reason = fmt.Sprintf("hint pending with battery %d", snap.Battery)
	default:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidSnapshot, reason)
}
