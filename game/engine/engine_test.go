package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubLevels serves levels from memory, keyed by id
type stubLevels struct {
	specs map[int]*LevelSpec
}

func (s *stubLevels) LoadLevel(id int) (*Level, error) {
	raw, ok := s.specs[id]
	if !ok {
		return nil, fmt.Errorf("level %d: %w", id, ErrLevelNotFound)
	}
	return NewLevel(id, raw, nil)
}

func (s *stubLevels) LevelCount() int {
	n := 0
	for {
		if _, ok := s.specs[n+1]; !ok {
			return n
		}
		n++
	}
}

// stubProgress records the unlocked maximum in memory
type stubProgress struct {
	unlocked int
	saves    int
	loadErr  error
}

func (p *stubProgress) LoadProgress() (int, error) {
	if p.loadErr != nil {
		return 0, p.loadErr
	}
	if p.unlocked == 0 {
		return DefaultUnlockedLevel, nil
	}
	return p.unlocked, nil
}

func (p *stubProgress) SaveProgress(level int) error {
	p.unlocked = level
	p.saves++
	return nil
}

func (p *stubProgress) ResetProgress() error {
	p.unlocked = DefaultUnlockedLevel
	return nil
}

func newTestEngine(t *testing.T, specs map[int]*LevelSpec) (*GameEngine, *stubProgress) {
	t.Helper()
	progress := &stubProgress{}
	e, err := NewEngine(&stubLevels{specs: specs}, progress)
	require.NoError(t, err)
	return e, progress
}

func loadSingle(t *testing.T, raw *LevelSpec) (*GameEngine, *stubProgress) {
	t.Helper()
	e, progress := newTestEngine(t, map[int]*LevelSpec{1: raw})
	require.NoError(t, e.LoadLevel(1))
	return e, progress
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	_, err := NewEngine(nil, &stubProgress{})
	assert.Error(t, err)
	_, err = NewEngine(&stubLevels{}, nil)
	assert.Error(t, err)

	bad := DefaultRules()
	bad.HintCost = 0
	_, err = NewEngine(&stubLevels{}, &stubProgress{}, WithRules(bad))
	assert.Error(t, err)
}

func TestEngineStartsIdle(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	assert.Equal(t, Idle, e.State())
	assert.False(t, e.Loaded())
	assert.False(t, e.Move(Right))
	assert.False(t, e.RequestHint())
	assert.ErrorIs(t, e.Retry(), ErrNoLevelLoaded)
	assert.ErrorIs(t, e.NextLevel(), ErrNoLevelLoaded)
}

func TestLoadLevelInitialState(t *testing.T) {
	e, _ := loadSingle(t, spec(3, 2, "S0D"))

	assert.Equal(t, Playing, e.State())
	assert.Equal(t, 1, e.LevelID())
	assert.Equal(t, 3, e.Fuel())
	assert.Equal(t, 2, e.Battery())
	assert.Equal(t, 1, e.PackagesLeft())
	assert.Equal(t, 1, e.TotalPackages())
	assert.Equal(t, Position{0, 0}, e.PlayerPosition())
	assert.Equal(t, Grid{"S0D"}, e.Grid())
	assert.Equal(t, []DestinationStatus{{Pos: Position{0, 2}}}, e.Destinations())
	assert.Empty(t, e.HintPath())
	assert.Equal(t, Moves{Right: true}, e.PossibleMoves())
}

func TestLoadLevelFailureLeavesEngineUnloaded(t *testing.T) {
	e, _ := newTestEngine(t, map[int]*LevelSpec{
		1: spec(3, 0, "S0D"),
		2: spec(3, 0, "S0D", "00"),
	})
	require.NoError(t, e.LoadLevel(1))

	err := e.LoadLevel(2)
	assert.ErrorIs(t, err, ErrInvalidLevel)
	assert.Equal(t, Idle, e.State())
	assert.False(t, e.Loaded())

	err = e.LoadLevel(9)
	assert.ErrorIs(t, err, ErrLevelNotFound)
	assert.Equal(t, Idle, e.State())
}

func TestMoveFuelAccountingToCompletion(t *testing.T) {
	e, progress := loadSingle(t, spec(3, 0, "S0D"))

	require.True(t, e.Move(Right))
	assert.Equal(t, Position{0, 1}, e.PlayerPosition())
	assert.Equal(t, 2, e.Fuel())
	assert.Equal(t, Playing, e.State())

	require.True(t, e.Move(Right))
	assert.Equal(t, Position{0, 2}, e.PlayerPosition())
	assert.Equal(t, 1, e.Fuel())
	assert.Equal(t, 0, e.PackagesLeft())
	assert.Equal(t, LevelComplete, e.State())
	assert.True(t, e.Destinations()[0].Delivered)

	// next level id 2 is within LevelCount()+1
	assert.Equal(t, 2, progress.unlocked)
}

func TestMoveFuelExhaustionLoss(t *testing.T) {
	e, progress := loadSingle(t, spec(1, 0, "S0D"))

	require.True(t, e.Move(Right))
	assert.Equal(t, 0, e.Fuel())
	assert.Equal(t, 1, e.PackagesLeft())
	assert.Equal(t, Playing, e.State())

	assert.False(t, e.Move(Right))
	assert.Equal(t, GameOver, e.State())
	assert.Equal(t, Position{0, 1}, e.PlayerPosition())
	assert.Equal(t, 0, progress.saves)
}

func TestMoveNegativeFuelLoss(t *testing.T) {
	e, _ := loadSingle(t, spec(2, 0, "S5D"))

	require.True(t, e.Move(Right))
	assert.Equal(t, -3, e.Fuel())
	assert.Equal(t, GameOver, e.State())
	assert.False(t, e.Move(Right))
}

func TestWinOnLastDropOfFuel(t *testing.T) {
	e, _ := loadSingle(t, spec(1, 0, "SD"))
	require.True(t, e.Move(Right))
	assert.Equal(t, 0, e.Fuel())
	assert.Equal(t, LevelComplete, e.State())

	rules := DefaultRules()
	rules.DefaultMoveCost = 2
	costly, err := NewEngine(&stubLevels{specs: map[int]*LevelSpec{1: spec(1, 0, "SD")}}, &stubProgress{}, WithRules(rules))
	require.NoError(t, err)
	require.NoError(t, costly.LoadLevel(1))
	require.True(t, costly.Move(Right))
	assert.Equal(t, -1, costly.Fuel())
	assert.Equal(t, LevelComplete, costly.State(), "completion wins over overdrawn fuel")
}

func TestMoveCostFromDigitTiles(t *testing.T) {
	e, _ := loadSingle(t, spec(20, 0, "S40D"))

	require.True(t, e.Move(Right))
	assert.Equal(t, 16, e.Fuel())
	require.True(t, e.Move(Right))
	assert.Equal(t, 15, e.Fuel(), "zero digit costs the default")
}

func TestIllegalMoveIsNoop(t *testing.T) {
	e, _ := loadSingle(t, spec(5, 0, "S#D", "000"))

	assert.False(t, e.Move(Right))
	assert.False(t, e.Move(Up))
	assert.Equal(t, Position{0, 0}, e.PlayerPosition())
	assert.Equal(t, 5, e.Fuel())
	assert.Equal(t, Playing, e.State())

	history := e.GetMoveHistory()
	require.Len(t, history, 2)
	assert.False(t, history[0].Success)
	assert.Equal(t, 1, history[0].MoveNumber)
	assert.Equal(t, 2, history[1].MoveNumber)
}

func TestStartOnDestinationCompletesOnLoad(t *testing.T) {
	e, _ := loadSingle(t, spec(0, 0, "S"))
	assert.Equal(t, 0, e.PackagesLeft())
	assert.Equal(t, LevelComplete, e.State())
}

func TestIdempotentDelivery(t *testing.T) {
	e, _ := loadSingle(t, spec(10, 0, "SD0D"))

	require.True(t, e.Move(Right))
	assert.Equal(t, 1, e.PackagesLeft())
	require.True(t, e.Move(Right))
	require.True(t, e.Move(Left))
	assert.Equal(t, 1, e.PackagesLeft())
	assert.Equal(t, 1, e.delivered.Size())
	assert.Equal(t, Playing, e.State())
}

func TestHintFlow(t *testing.T) {
	e, _ := loadSingle(t, spec(10, 1, "S00", "##0", "D00"))

	require.True(t, e.RequestHint())
	assert.Equal(t, ConfirmingHint, e.State())
	assert.False(t, e.Move(Right), "moves are blocked while confirming")

	require.True(t, e.ConfirmHint(true))
	assert.Equal(t, Playing, e.State())
	assert.Equal(t, 0, e.Battery())

	want := Path{{0, 0}, {0, 1}, {0, 2}, {1, 2}, {2, 2}, {2, 1}, {2, 0}}
	if diff := cmp.Diff(want, e.HintPath()); diff != "" {
		t.Errorf("hint path mismatch (-want +got):\n%s", diff)
	}

	assert.False(t, e.RequestHint(), "battery is empty")
	assert.Equal(t, Playing, e.State())
}

func TestHintDeclined(t *testing.T) {
	e, _ := loadSingle(t, spec(10, 2, "S0D"))

	require.True(t, e.RequestHint())
	require.True(t, e.ConfirmHint(false))
	assert.Equal(t, Playing, e.State())
	assert.Equal(t, 2, e.Battery())
	assert.Empty(t, e.HintPath())

	assert.False(t, e.ConfirmHint(true), "no pending request")
}

func TestHintUnreachableSpendsBattery(t *testing.T) {
	e, _ := loadSingle(t, spec(10, 1, "S#D"))

	require.True(t, e.RequestHint())
	require.True(t, e.ConfirmHint(true))
	assert.Equal(t, 0, e.Battery())
	assert.Empty(t, e.HintPath())
}

func TestHintSkipsDeliveredDestinations(t *testing.T) {
	e, _ := loadSingle(t, spec(10, 1, "SD00D"))

	require.True(t, e.Move(Right))
	require.True(t, e.RequestHint())
	require.True(t, e.ConfirmHint(true))
	assert.Equal(t, Path{{0, 1}, {0, 2}, {0, 3}, {0, 4}}, e.HintPath())
}

func TestPauseResume(t *testing.T) {
	e, _ := loadSingle(t, spec(5, 0, "S0D"))

	require.True(t, e.Pause())
	assert.Equal(t, Paused, e.State())
	assert.False(t, e.Move(Right))
	assert.False(t, e.Pause())

	require.True(t, e.Resume())
	assert.Equal(t, Playing, e.State())
	assert.False(t, e.Resume())
}

func TestRetryResetsSessionKeepsHistory(t *testing.T) {
	e, _ := loadSingle(t, spec(1, 1, "S0D"))

	require.True(t, e.Move(Right))
	assert.False(t, e.Move(Right))
	require.Equal(t, GameOver, e.State())

	require.NoError(t, e.Retry())
	assert.Equal(t, Playing, e.State())
	assert.Equal(t, 1, e.Fuel())
	assert.Equal(t, 1, e.Battery())
	assert.Equal(t, Position{0, 0}, e.PlayerPosition())

	state := e.GetState()
	assert.Equal(t, 2, state.TotalMoves)
	assert.Equal(t, 0, state.CurrentMovesCount)
}

func TestRetryRefusedWhilePlaying(t *testing.T) {
	e, _ := loadSingle(t, spec(5, 0, "S0D"))
	assert.ErrorIs(t, e.Retry(), ErrInvalidTransition)

	require.True(t, e.Pause())
	assert.NoError(t, e.Retry())
	assert.Equal(t, Playing, e.State())
}

func TestNextLevel(t *testing.T) {
	e, progress := newTestEngine(t, map[int]*LevelSpec{
		1: spec(5, 0, "SD"),
		2: spec(5, 0, "S0D"),
	})
	require.NoError(t, e.LoadLevel(1))
	assert.ErrorIs(t, e.NextLevel(), ErrInvalidTransition)

	require.True(t, e.Move(Right))
	require.Equal(t, LevelComplete, e.State())
	assert.Equal(t, 2, progress.unlocked)

	require.NoError(t, e.NextLevel())
	assert.Equal(t, 2, e.LevelID())
	assert.Equal(t, Playing, e.State())

	require.True(t, e.Move(Right))
	require.True(t, e.Move(Right))
	require.Equal(t, LevelComplete, e.State())
	assert.Equal(t, 3, progress.unlocked, "last level unlocks count+1")

	err := e.NextLevel()
	assert.ErrorIs(t, err, ErrNoNextLevel)
	assert.Equal(t, LevelComplete, e.State())
}

func TestNextLevelRequiresUnlock(t *testing.T) {
	e, progress := newTestEngine(t, map[int]*LevelSpec{
		1: spec(5, 0, "SD"),
		2: spec(5, 0, "SD"),
	})
	require.NoError(t, e.LoadLevel(1))
	require.True(t, e.Move(Right))
	require.Equal(t, LevelComplete, e.State())

	// unreadable progress degrades to level 1 unlocked, so level 2 stays locked
	progress.loadErr = errors.New("disk gone")
	assert.ErrorIs(t, e.NextLevel(), ErrNoNextLevel)
}

func TestUnlockDoesNotRegress(t *testing.T) {
	e, progress := newTestEngine(t, map[int]*LevelSpec{
		1: spec(5, 0, "SD"),
		2: spec(5, 0, "SD"),
	})
	progress.unlocked = 3
	require.NoError(t, e.LoadLevel(1))
	require.True(t, e.Move(Right))
	assert.Equal(t, 3, progress.unlocked)
	assert.Equal(t, 0, progress.saves)
}

func TestExit(t *testing.T) {
	e, _ := loadSingle(t, spec(5, 0, "S0D"))
	require.True(t, e.Move(Right))

	e.Exit()
	assert.False(t, e.Loaded())
	assert.Equal(t, Idle, e.State())
	assert.Empty(t, e.GetMoveHistory())
	assert.False(t, e.Move(Right))
}

func TestChoose(t *testing.T) {
	e, _ := loadSingle(t, spec(5, 1, "S0D"))

	assert.ErrorIs(t, e.Choose(ResumeChoice{}), ErrInvalidTransition)

	require.True(t, e.Pause())
	require.NoError(t, e.Choose(ResumeChoice{}))
	assert.Equal(t, Playing, e.State())

	require.True(t, e.RequestHint())
	require.NoError(t, e.Choose(HintChoice{Confirm: true}))
	assert.Equal(t, 0, e.Battery())

	assert.ErrorIs(t, e.Choose(nil), ErrUnknownChoice)

	require.NoError(t, e.Choose(ExitChoice{}))
	assert.False(t, e.Loaded())
}

func TestParseChoice(t *testing.T) {
	tests := map[string]DialogChoice{
		"resume":            ResumeChoice{},
		"retry":             RetryChoice{},
		"next_level":        NextLevelChoice{},
		"exit_to_main_menu": ExitChoice{},
		"hint_yes":          HintChoice{Confirm: true},
		"hint_no":           HintChoice{},
	}
	for in, want := range tests {
		got, err := ParseChoice(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseChoice("dance")
	assert.ErrorIs(t, err, ErrUnknownChoice)
}

func TestRestoreRoundTrip(t *testing.T) {
	specs := map[int]*LevelSpec{1: spec(10, 2, "SD0D", "0000")}
	e, _ := newTestEngine(t, specs)
	require.NoError(t, e.LoadLevel(1))
	require.True(t, e.Move(Right))
	require.True(t, e.Move(Down))
	require.True(t, e.RequestHint())
	require.True(t, e.ConfirmHint(true))

	snap := e.GetState()

	restored, _ := newTestEngine(t, specs)
	require.NoError(t, restored.Restore(snap))

	if diff := cmp.Diff(snap, restored.GetState()); diff != "" {
		t.Errorf("restored state mismatch (-want +got):\n%s", diff)
	}

	require.True(t, restored.Move(Right))
	require.True(t, restored.Move(Right))
	require.True(t, restored.Move(Up))
	assert.Equal(t, LevelComplete, restored.State())
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	specs := map[int]*LevelSpec{1: spec(10, 2, "S#D")}
	e, _ := newTestEngine(t, specs)
	require.NoError(t, e.LoadLevel(1))
	good := e.GetState()

	tests := []struct {
		name   string
		mutate func(s *GameState)
	}{
		{"unknown state", func(s *GameState) { s.State = "dancing" }},
		{"wall position", func(s *GameState) { s.PlayerPos = Position{0, 1} }},
		{"out of bounds", func(s *GameState) { s.PlayerPos = Position{4, 4} }},
		{"bogus delivery", func(s *GameState) {
			s.Destinations = []DestinationStatus{{Pos: Position{0, 0}, Delivered: true}}
		}},
		{"packages left mismatch", func(s *GameState) { s.PackagesLeft = 0 }},
		{"playing with everything delivered", func(s *GameState) {
			s.Destinations = []DestinationStatus{{Pos: Position{0, 2}, Delivered: true}}
			s.PackagesLeft = 0
		}},
		{"complete with packages left", func(s *GameState) { s.State = LevelComplete }},
		{"game over with fuel left", func(s *GameState) { s.State = GameOver }},
		{"paused on negative fuel", func(s *GameState) { s.State = Paused; s.Fuel = -1 }},
		{"hint pending without battery", func(s *GameState) { s.State = ConfirmingHint; s.Battery = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := *good
			tt.mutate(&snap)
			fresh, _ := newTestEngine(t, specs)
			assert.ErrorIs(t, fresh.Restore(&snap), ErrInvalidSnapshot)
		})
	}

	t.Run("consistent end states", func(t *testing.T) {
		over := *good
		over.State, over.Fuel = GameOver, -2
		fresh, _ := newTestEngine(t, specs)
		require.NoError(t, fresh.Restore(&over))
		assert.Equal(t, GameOver, fresh.State())

		won := *good
		won.State, won.PackagesLeft = LevelComplete, 0
		won.Destinations = []DestinationStatus{{Pos: Position{0, 2}, Delivered: true}}
		fresh, _ = newTestEngine(t, specs)
		require.NoError(t, fresh.Restore(&won))
		assert.Equal(t, 0, fresh.PackagesLeft())
	})

	fresh, _ := newTestEngine(t, specs)
	missing := *good
	missing.LevelID = 7
	assert.ErrorIs(t, fresh.Restore(&missing), ErrLevelNotFound)
}
