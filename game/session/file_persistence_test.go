package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/parcel-run/game/engine"
	"github.com/wricardo/parcel-run/game/service"
)

func newPlayedSession(t *testing.T, factory EngineFactory, id string) *service.Session {
	t.Helper()
	eng, err := factory()
	require.NoError(t, err)
	require.NoError(t, eng.LoadLevel(1))
	require.True(t, eng.Move(engine.Right))
	require.False(t, eng.Move(engine.Up))

	now := time.Now().Truncate(time.Second)
	return &service.Session{ID: id, Engine: eng, CreatedAt: now, LastAccessedAt: now}
}

func TestNewFilePersistence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "sessions")
	_, err := NewFilePersistence(dir, newTestFactory(t))
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = NewFilePersistence(dir, nil)
	assert.Error(t, err)
}

func TestFilePersistence_RoundTrip(t *testing.T) {
	for _, compressed := range []bool{false, true} {
		name := "plain"
		if compressed {
			name = "zstd"
		}
		t.Run(name, func(t *testing.T) {
			factory := newTestFactory(t)
			fp, err := NewFilePersistence(t.TempDir(), factory, WithCompression(compressed))
			require.NoError(t, err)

			original := newPlayedSession(t, factory, "trip")
			require.NoError(t, fp.Save(original))
			assert.True(t, fp.Exists("trip"))

			loaded, err := fp.Load("trip")
			require.NoError(t, err)
			assert.Equal(t, original.ID, loaded.ID)
			assert.True(t, original.CreatedAt.Equal(loaded.CreatedAt))

			want := original.Engine.GetState()
			got := loaded.Engine.GetState()
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("restored state mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilePersistence_CompressedFileExtension(t *testing.T) {
	factory := newTestFactory(t)
	dir := t.TempDir()
	fp, err := NewFilePersistence(dir, factory, WithCompression(true))
	require.NoError(t, err)

	require.NoError(t, fp.Save(newPlayedSession(t, factory, "zip")))

	_, err = os.Stat(filepath.Join(dir, "zip.json.zst"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "zip.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestFilePersistence_SwitchingFormatRemovesStaleFile(t *testing.T) {
	factory := newTestFactory(t)
	dir := t.TempDir()

	plain, err := NewFilePersistence(dir, factory)
	require.NoError(t, err)
	session := newPlayedSession(t, factory, "swap")
	require.NoError(t, plain.Save(session))

	compressed, err := NewFilePersistence(dir, factory, WithCompression(true))
	require.NoError(t, err)
	require.NoError(t, compressed.Save(session))

	_, err = os.Stat(filepath.Join(dir, "swap.json"))
	assert.True(t, os.IsNotExist(err))

	ids, err := compressed.ListAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"swap"}, ids)

	// A plain reader still finds the compressed snapshot
	loaded, err := plain.Load("swap")
	require.NoError(t, err)
	assert.Equal(t, session.Engine.PlayerPosition(), loaded.Engine.PlayerPosition())
}

func TestFilePersistence_ListAll(t *testing.T) {
	factory := newTestFactory(t)
	dir := t.TempDir()
	fp, err := NewFilePersistence(dir, factory)
	require.NoError(t, err)

	ids, err := fp.ListAll()
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, fp.Save(newPlayedSession(t, factory, "one")))
	require.NoError(t, fp.Save(newPlayedSession(t, factory, "two")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0755))

	ids, err = fp.ListAll()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"one", "two"}, ids)
}

func TestFilePersistence_Delete(t *testing.T) {
	factory := newTestFactory(t)
	fp, err := NewFilePersistence(t.TempDir(), factory)
	require.NoError(t, err)

	require.NoError(t, fp.Save(newPlayedSession(t, factory, "bye")))
	require.NoError(t, fp.Delete("bye"))
	assert.False(t, fp.Exists("bye"))
	assert.ErrorIs(t, fp.Delete("bye"), ErrSessionNotFound)
}

func TestFilePersistence_LoadErrors(t *testing.T) {
	factory := newTestFactory(t)
	dir := t.TempDir()
	fp, err := NewFilePersistence(dir, factory)
	require.NoError(t, err)

	_, err = fp.Load("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.json"), []byte("{not json"), 0644))
	_, err = fp.Load("junk")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.json"), []byte(`{"id":"empty"}`), 0644))
	_, err = fp.Load("empty")
	assert.Error(t, err)

	// Snapshot pointing at a wall is rejected by the engine
	bad := `{"id":"bad","level_id":2,"game_state":{"level_id":2,"state":"playing","player_pos":{"row":0,"col":1},"fuel":3,"battery":1}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(bad), 0644))
	_, err = fp.Load("bad")
	assert.ErrorIs(t, err, engine.ErrInvalidSnapshot)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json.zst"), []byte("not zstd"), 0644))
	_, err = fp.Load("broken")
	assert.Error(t, err)
}

func TestFilePersistence_SaveNil(t *testing.T) {
	fp, err := NewFilePersistence(t.TempDir(), newTestFactory(t))
	require.NoError(t, err)
	assert.Error(t, fp.Save(nil))
}
