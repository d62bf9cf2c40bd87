package service

import (
	"context"
	"errors"
	"time"

	"github.com/wricardo/parcel-run/game/engine"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrNoMoves          = errors.New("no moves provided")
	ErrLevelLocked      = errors.New("level is locked")
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, levelID int) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	Move(ctx context.Context, sessionID, direction string) (*MoveResult, error)
	BulkMove(ctx context.Context, sessionID string, moves []string) (*BulkMoveResult, error)
	RequestHint(ctx context.Context, sessionID string) (*ActionResult, error)
	ConfirmHint(ctx context.Context, sessionID string, confirm bool) (*ActionResult, error)
	Pause(ctx context.Context, sessionID string) (*ActionResult, error)
	Resume(ctx context.Context, sessionID string) (*ActionResult, error)
	Retry(ctx context.Context, sessionID string) (*ActionResult, error)
	NextLevel(ctx context.Context, sessionID string) (*ActionResult, error)
	// Choose answers a dialog by its button value (resume, retry, next_level,
	// exit, hint_yes, hint_no). Exit also removes the session.
	Choose(ctx context.Context, sessionID, choice string) (*ActionResult, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Levels and progress
	ListLevels(ctx context.Context) ([]*LevelInfo, error)
	GetLevel(ctx context.Context, levelID int) (*engine.Level, error)
	GetProgress(ctx context.Context) (*ProgressInfo, error)
	ResetProgress(ctx context.Context) (*ProgressInfo, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, levelID int) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// LevelCatalog resolves and lists level definitions
type LevelCatalog interface {
	engine.LevelSource
	ListLevels() ([]*LevelInfo, error)
}

// Session represents an active game session
type Session struct {
	ID             string
	Engine         *engine.GameEngine
	CreatedAt      time.Time
	LastAccessedAt time.Time
}
