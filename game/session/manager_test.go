package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/parcel-run/game/engine"
	"github.com/wricardo/parcel-run/game/progress"
)

type testLevels map[int]*engine.LevelSpec

func (l testLevels) LoadLevel(id int) (*engine.Level, error) {
	spec, ok := l[id]
	if !ok {
		return nil, fmt.Errorf("level %d: %w", id, engine.ErrLevelNotFound)
	}
	return engine.NewLevel(id, spec, nil)
}

func (l testLevels) LevelCount() int { return len(l) }

func intPtr(v int) *int { return &v }

func newTestLevels() testLevels {
	return testLevels{
		1: {InitialFuel: intPtr(5), HintBattery: intPtr(2), Grid: []string{"S0D", "000"}},
		2: {InitialFuel: intPtr(9), HintBattery: intPtr(1), Grid: []string{"S#D", "00D"}},
	}
}

func newTestFactory(t *testing.T) EngineFactory {
	t.Helper()
	levels := newTestLevels()
	store := progress.NewMemoryStore()
	return func() (*engine.GameEngine, error) {
		return engine.NewEngine(levels, store)
	}
}

func TestManager_Create(t *testing.T) {
	manager := NewManager(newTestFactory(t))

	t.Run("create with specific ID", func(t *testing.T) {
		session, err := manager.Create("test1", 1)
		require.NoError(t, err)
		assert.Equal(t, "test1", session.ID)
		assert.Equal(t, 1, session.Engine.LevelID())
		assert.Equal(t, engine.Playing, session.Engine.State())
		assert.False(t, session.CreatedAt.IsZero())
	})

	t.Run("create with generated ID", func(t *testing.T) {
		session, err := manager.Create("", 2)
		require.NoError(t, err)
		assert.Len(t, session.ID, 4)
		assert.Equal(t, 2, session.Engine.LevelID())
	})

	t.Run("duplicate ID is rejected case-insensitively", func(t *testing.T) {
		_, err := manager.Create("TEST1", 1)
		assert.ErrorIs(t, err, ErrSessionAlreadyExists)
	})

	t.Run("unknown level", func(t *testing.T) {
		_, err := manager.Create("missing", 42)
		assert.ErrorIs(t, err, engine.ErrLevelNotFound)
		assert.False(t, manager.sessionExists("missing"))
	})

	t.Run("path-like ID is rejected", func(t *testing.T) {
		_, err := manager.Create("../escape", 1)
		assert.ErrorIs(t, err, ErrInvalidSessionID)
	})
}

func TestManager_Get(t *testing.T) {
	manager := NewManager(newTestFactory(t))
	created, err := manager.Create("AbCd", 1)
	require.NoError(t, err)

	got, err := manager.Get("abcd")
	require.NoError(t, err)
	assert.Same(t, created, got)

	got, err = manager.Get("ABCD")
	require.NoError(t, err)
	assert.Same(t, created, got)

	_, err = manager.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_ListAndCount(t *testing.T) {
	manager := NewManager(newTestFactory(t))
	assert.Empty(t, manager.List())

	for i := 0; i < 3; i++ {
		_, err := manager.Create(fmt.Sprintf("s%d", i), 1)
		require.NoError(t, err)
	}

	assert.Len(t, manager.List(), 3)
	assert.Equal(t, 3, manager.Count())
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager(newTestFactory(t))
	_, err := manager.Create("gone", 1)
	require.NoError(t, err)

	require.NoError(t, manager.Delete("GONE"))
	assert.Equal(t, 0, manager.Count())
	assert.ErrorIs(t, manager.Delete("gone"), ErrSessionNotFound)
	assert.ErrorIs(t, manager.DeleteFromMemory("gone"), ErrSessionNotFound)
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := NewManager(newTestFactory(t))
	session, err := manager.Create("touch", 1)
	require.NoError(t, err)

	before := session.LastAccessedAt
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, manager.UpdateLastAccessed("touch"))
	assert.True(t, session.LastAccessedAt.After(before))

	assert.ErrorIs(t, manager.UpdateLastAccessed("ghost"), ErrSessionNotFound)
}

func TestManager_CleanupExpiredSessions(t *testing.T) {
	manager := NewManager(newTestFactory(t))
	stale, err := manager.Create("stale", 1)
	require.NoError(t, err)
	_, err = manager.Create("fresh", 1)
	require.NoError(t, err)

	stale.LastAccessedAt = time.Now().Add(-2 * time.Hour)

	assert.Equal(t, 1, manager.CleanupExpiredSessions(time.Hour))
	assert.Equal(t, 1, manager.Count())
	_, err = manager.Get("fresh")
	assert.NoError(t, err)
}

func TestManager_SaveWithoutPersistence(t *testing.T) {
	manager := NewManager(newTestFactory(t))
	assert.NoError(t, manager.Save("anything"))
	assert.NoError(t, manager.SaveAllSessions())
	assert.NoError(t, manager.LoadPersistedSessions())
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager(newTestFactory(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%02d", i)
			_, err := manager.Create(id, 1)
			assert.NoError(t, err)
			_, err = manager.Get(strings.ToUpper(id))
			assert.NoError(t, err)
			assert.NoError(t, manager.UpdateLastAccessed(id))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, manager.Count())
}
