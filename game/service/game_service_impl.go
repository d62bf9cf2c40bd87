package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wricardo/parcel-run/game/engine"
	"github.com/wricardo/parcel-run/internal/ctxlog"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	levels   LevelCatalog
	progress engine.ProgressStore
	mu       sync.RWMutex
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, levels LevelCatalog, progress engine.ProgressStore) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		levels:   levels,
		progress: progress,
	}
}

// CreateSession creates a new game session playing levelID
func (s *gameServiceImpl) CreateSession(ctx context.Context, levelID int) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if levelID == 0 {
		levelID = engine.DefaultUnlockedLevel
	}
	// Levels past the catalog fall through to the not-found path below
	if unlocked := s.unlocked(ctx); levelID > unlocked && levelID <= s.levels.LevelCount() {
		return nil, fmt.Errorf("level %d, highest unlocked is %d: %w", levelID, unlocked, ErrLevelLocked)
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", levelID)
	if err != nil {
		if errors.Is(err, engine.ErrLevelNotFound) {
			if total := s.levels.LevelCount(); total > 0 {
				return nil, fmt.Errorf("level %d not found, available levels are 1-%d: %w", levelID, total, err)
			}
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	ctxlog.FromContext(ctx).Info("session created", "session", sess.ID, "level", levelID)
	return sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession exits the session and removes it
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	sess.Engine.Exit()
	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Info("session deleted", "session", sessionID)
	return nil
}

// Move executes a single move for a session
func (s *gameServiceImpl) Move(ctx context.Context, sessionID, direction string) (*MoveResult, error) {
	dir, ok := engine.ParseDirection(direction)
	if !ok {
		return nil, fmt.Errorf("%w: %q (want up, down, left or right)", ErrInvalidDirection, direction)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	e := sess.Engine
	before := e.GetState()
	success := e.Move(dir)
	state := e.GetState()

	result := &MoveResult{
		Success:   success,
		GameState: state,
		Message:   state.Message,
		Events:    extractMoveEvents(before, state, dir, success),
	}
	if success {
		step := buildStep(1, dir, before, state, e.Rules())
		result.Step = &step
	} else {
		result.AttemptedTo = attemptedTarget(before, dir, e.Rules())
	}

	s.persist(ctx, sessionID, "move")
	return result, nil
}

// BulkMove executes moves in sequence, stopping at the first one that is
// refused or that ends play
func (s *gameServiceImpl) BulkMove(ctx context.Context, sessionID string, moves []string) (*BulkMoveResult, error) {
	if len(moves) == 0 {
		return nil, ErrNoMoves
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	e := sess.Engine

	start := e.GetState()
	result := &BulkMoveResult{
		RequestedMoves: len(moves),
		Events:         make([]GameEvent, 0),
		Success:        true,
		StartPos:       start.PlayerPos,
		StartFuel:      start.Fuel,
	}

	// Limit moves to prevent abuse
	if len(moves) > engine.MaxBulkMoves {
		result.Truncated = true
		result.Limit = engine.MaxBulkMoves
		moves = moves[:engine.MaxBulkMoves]
	}

	for i, raw := range moves {
		if e.State() != engine.Playing {
			result.Success = false
			result.StoppedOnMove = i + 1
			result.StopReasonCode = stopCode(e.State())
			result.StoppedReason = fmt.Sprintf("session is %s", e.State())
			break
		}

		dir, ok := engine.ParseDirection(raw)
		if !ok {
			result.Success = false
			result.StoppedOnMove = i + 1
			result.StopReasonCode = "invalid_direction"
			result.StoppedReason = fmt.Sprintf("move %d: invalid direction %q", i+1, raw)
			break
		}

		before := e.GetState()
		moved := e.Move(dir)
		after := e.GetState()
		result.Events = append(result.Events, extractMoveEvents(before, after, dir, moved)...)

		if !moved {
			result.Success = false
			result.StoppedOnMove = i + 1
			result.AttemptedTo = attemptedTarget(before, dir, e.Rules())
			switch {
			case after.State == engine.GameOver:
				result.StopReasonCode = "out_of_fuel"
			case result.AttemptedTo.TileType == "boundary":
				result.StopReasonCode = "blocked_boundary"
			default:
				result.StopReasonCode = "blocked_wall"
			}
			result.StoppedReason = fmt.Sprintf("move %d blocked: %s", i+1, after.Message)
			break
		}

		result.MovesExecuted++
		step := buildStep(i+1, dir, before, after, e.Rules())
		if step.Delivered {
			result.PackagesDelivered++
		}
		result.Steps = append(result.Steps, step)

		if after.State != engine.Playing {
			result.StopReasonCode = stopCode(after.State)
			result.StoppedReason = after.Message
			if i+1 < len(moves) {
				result.StoppedOnMove = i + 1
			}
			break
		}
	}

	end := e.GetState()
	result.GameState = end
	result.EndPos = end.PlayerPos
	result.EndFuel = end.Fuel
	result.State = end.State
	result.Message = end.Message
	result.PossibleMoves = end.PossibleMoves.List()

	s.persist(ctx, sessionID, "bulk move")
	return result, nil
}

// RequestHint opens the hint confirmation for a session
func (s *gameServiceImpl) RequestHint(ctx context.Context, sessionID string) (*ActionResult, error) {
	return s.act(ctx, sessionID, "hint request", func(e *engine.GameEngine) (bool, []GameEvent) {
		if !e.RequestHint() {
			return false, nil
		}
		return true, []GameEvent{event("hint_requested", e.GetState().Message, e.PlayerPosition())}
	})
}

// ConfirmHint answers a pending hint confirmation
func (s *gameServiceImpl) ConfirmHint(ctx context.Context, sessionID string, confirm bool) (*ActionResult, error) {
	return s.act(ctx, sessionID, "hint confirm", func(e *engine.GameEngine) (bool, []GameEvent) {
		if !e.ConfirmHint(confirm) {
			return false, nil
		}
		kind := "hint_declined"
		if confirm {
			kind = "hint"
		}
		return true, []GameEvent{event(kind, e.GetState().Message, e.PlayerPosition())}
	})
}

// Pause pauses a session
func (s *gameServiceImpl) Pause(ctx context.Context, sessionID string) (*ActionResult, error) {
	return s.act(ctx, sessionID, "pause", func(e *engine.GameEngine) (bool, []GameEvent) {
		if !e.Pause() {
			return false, nil
		}
		return true, []GameEvent{event("paused", "Game paused", e.PlayerPosition())}
	})
}

// Resume resumes a paused session
func (s *gameServiceImpl) Resume(ctx context.Context, sessionID string) (*ActionResult, error) {
	return s.act(ctx, sessionID, "resume", func(e *engine.GameEngine) (bool, []GameEvent) {
		if !e.Resume() {
			return false, nil
		}
		return true, []GameEvent{event("resumed", "Game resumed", e.PlayerPosition())}
	})
}

// Retry restarts the current level. A refused retry is an error, unlike
// the boolean actions.
func (s *gameServiceImpl) Retry(ctx context.Context, sessionID string) (*ActionResult, error) {
	return s.transition(ctx, sessionID, "retry", (*engine.GameEngine).Retry)
}

// NextLevel advances a completed session to the next unlocked level
func (s *gameServiceImpl) NextLevel(ctx context.Context, sessionID string) (*ActionResult, error) {
	return s.transition(ctx, sessionID, "next level", (*engine.GameEngine).NextLevel)
}

// Choose dispatches a dialog answer through the engine's closed choice set.
// Refused choices are errors here, as with Retry.
func (s *gameServiceImpl) Choose(ctx context.Context, sessionID, value string) (*ActionResult, error) {
	choice, err := engine.ParseChoice(value)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Engine.Choose(choice); err != nil {
		return nil, fmt.Errorf("choose %s: %w", value, err)
	}

	state := sess.Engine.GetState()
	result := &ActionResult{Success: true, GameState: state, Message: state.Message}

	if _, exit := choice.(engine.ExitChoice); exit {
		if err := s.sessions.Delete(sessionID); err != nil {
			return nil, err
		}
		result.Message = "Session closed"
		result.Events = []GameEvent{event("exited", result.Message, state.PlayerPos)}
		ctxlog.FromContext(ctx).Info("session exited", "session", sessionID)
		return result, nil
	}

	result.Events = []GameEvent{event(choiceEvent(choice), state.Message, state.PlayerPos)}
	s.persist(ctx, sessionID, value)
	return result, nil
}

// choiceEvent names the event a dialog answer produces
func choiceEvent(choice engine.DialogChoice) string {
	switch c := choice.(type) {
	case engine.ResumeChoice:
		return "resumed"
	case engine.RetryChoice, engine.NextLevelChoice:
		return "level_loaded"
	case engine.HintChoice:
		if c.Confirm {
			return "hint"
		}
		return "hint_declined"
	}
	return "choice"
}

func (s *gameServiceImpl) transition(ctx context.Context, sessionID, action string, fn func(*engine.GameEngine) error) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess.Engine); err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	state := sess.Engine.GetState()
	s.persist(ctx, sessionID, action)
	return &ActionResult{
		Success:   true,
		GameState: state,
		Message:   state.Message,
		Events:    []GameEvent{event("level_loaded", state.Message, state.PlayerPos)},
	}, nil
}

// act runs a boolean engine action under the service lock
func (s *gameServiceImpl) act(ctx context.Context, sessionID, action string, fn func(*engine.GameEngine) (bool, []GameEvent)) (*ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	ok, events := fn(sess.Engine)
	state := sess.Engine.GetState()
	if ok {
		s.persist(ctx, sessionID, action)
	}
	return &ActionResult{
		Success:   ok,
		GameState: state,
		Message:   state.Message,
		Events:    events,
	}, nil
}

// GetGameState retrieves the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Engine.GetState(), nil
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return paginate(sess.Engine.GetMoveHistory(), opts), nil
}

// paginate slices history into one page
func paginate(history []engine.MoveHistoryEntry, opts HistoryOptions) *HistoryResponse {
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	moves := []engine.MoveHistoryEntry{}
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			moves = append(moves, history[i])
		}
	} else if start < total {
		moves = append(moves, history[start:end]...)
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}
}

// ListLevels returns the available levels flagged with their unlock status
func (s *gameServiceImpl) ListLevels(ctx context.Context) ([]*LevelInfo, error) {
	levels, err := s.levels.ListLevels()
	if err != nil {
		return nil, err
	}
	unlocked := s.unlocked(ctx)
	for _, l := range levels {
		l.Unlocked = l.ID <= unlocked
	}
	return levels, nil
}

// GetLevel returns one level definition
func (s *gameServiceImpl) GetLevel(ctx context.Context, levelID int) (*engine.Level, error) {
	return s.levels.LoadLevel(levelID)
}

// GetProgress reports the unlocked maximum
func (s *gameServiceImpl) GetProgress(ctx context.Context) (*ProgressInfo, error) {
	return &ProgressInfo{
		MaxUnlockedLevel: s.unlocked(ctx),
		TotalLevels:      s.levels.LevelCount(),
	}, nil
}

// ResetProgress locks every level but the first again
func (s *gameServiceImpl) ResetProgress(ctx context.Context) (*ProgressInfo, error) {
	if err := s.progress.ResetProgress(); err != nil {
		return nil, fmt.Errorf("failed to reset progress: %w", err)
	}
	ctxlog.FromContext(ctx).Info("progress reset")
	return s.GetProgress(ctx)
}

// unlocked reads progress, degrading to the first level on failure
func (s *gameServiceImpl) unlocked(ctx context.Context) int {
	level, err := s.progress.LoadProgress()
	if err != nil {
		ctxlog.FromContext(ctx).Warn("failed to load progress", "error", err)
		return engine.DefaultUnlockedLevel
	}
	if level < engine.DefaultUnlockedLevel {
		return engine.DefaultUnlockedLevel
	}
	return level
}

// session fetches a session and marks it accessed. Callers must hold the
// write lock since the access time is read by sessionInfo under RLock.
func (s *gameServiceImpl) session(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

// persist saves a session after an action; failures are logged, not returned
func (s *gameServiceImpl) persist(ctx context.Context, sessionID, action string) {
	if err := s.sessions.Save(sessionID); err != nil {
		ctxlog.FromContext(ctx).Warn("failed to persist session",
			slog.String("session", sessionID), slog.String("after", action), slog.Any("error", err))
	}
}

func sessionInfo(sess *Session) *SessionInfo {
	state := sess.Engine.GetState()
	return &SessionInfo{
		ID:             sess.ID,
		LevelID:        state.LevelID,
		LevelName:      state.LevelName,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      state,
	}
}

func event(kind, message string, pos engine.Position) GameEvent {
	return GameEvent{Type: kind, Message: message, Timestamp: time.Now(), Position: pos}
}

// extractMoveEvents generates events from one move
func extractMoveEvents(before, after *engine.GameState, dir engine.Direction, moved bool) []GameEvent {
	if !moved {
		events := []GameEvent{event("blocked", after.Message, before.PlayerPos)}
		if after.State == engine.GameOver && before.State != engine.GameOver {
			events = append(events, event("game_over", after.Message, after.PlayerPos))
		}
		return events
	}

	events := []GameEvent{event("move",
		fmt.Sprintf("Moved %s to (%d,%d)", dir, after.PlayerPos.Row, after.PlayerPos.Col), after.PlayerPos)}

	if after.PackagesLeft < before.PackagesLeft {
		events = append(events, event("delivery",
			fmt.Sprintf("Package delivered! %d left", after.PackagesLeft), after.PlayerPos))
	}

	switch after.State {
	case engine.LevelComplete:
		events = append(events, event("level_complete", "All packages delivered!", after.PlayerPos))
	case engine.GameOver:
		events = append(events, event("game_over", after.Message, after.PlayerPos))
	}
	return events
}

// buildStep records one executed move
func buildStep(idx int, dir engine.Direction, before, after *engine.GameState, rules *engine.Rules) StepInfo {
	tile := after.Grid[after.PlayerPos.Row][after.PlayerPos.Col]
	return StepInfo{
		Idx:        idx,
		Dir:        dir,
		From:       before.PlayerPos,
		To:         after.PlayerPos,
		TileChar:   string(tile),
		TileType:   rules.Kind(tile),
		FuelBefore: before.Fuel,
		FuelAfter:  after.Fuel,
		Success:    true,
		Delivered:  after.PackagesLeft < before.PackagesLeft,
		Complete:   after.State == engine.LevelComplete,
	}
}

// attemptedTarget describes the cell a refused move aimed at
func attemptedTarget(before *engine.GameState, dir engine.Direction, rules *engine.Rules) *AttemptInfo {
	target := before.PlayerPos.Step(dir)
	grid := engine.Grid(before.Grid)
	if !grid.InBounds(target) {
		return &AttemptInfo{Row: target.Row, Col: target.Col, TileChar: "", TileType: "boundary"}
	}
	tile := grid.At(target)
	return &AttemptInfo{
		Row:      target.Row,
		Col:      target.Col,
		TileChar: string(tile),
		TileType: rules.Kind(tile),
		Passable: rules.Traversable(tile),
	}
}

func stopCode(state engine.State) string {
	switch state {
	case engine.LevelComplete:
		return "level_complete"
	case engine.GameOver:
		return "game_over"
	}
	return "not_playing"
}
