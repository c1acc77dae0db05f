package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/microgrid-sizing/backend/internal/logger"
	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_CreateIsolated(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, true, logger.NopLogger{})
	require.NoError(t, err)

	a, err := m.Create()
	require.NoError(t, err)
	b, err := m.Create()
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, filepath.Join(root, a.ID), a.Dir())
	assert.Equal(t, filepath.Join(root, b.ID), b.Dir())

	// Same file name in two runs must not collide.
	_, err = a.Store.SaveBytes("demand.csv", []byte("a"))
	require.NoError(t, err)
	_, err = b.Store.SaveBytes("demand.csv", []byte("b"))
	require.NoError(t, err)

	da, _ := os.ReadFile(filepath.Join(a.Dir(), "demand.csv"))
	db, _ := os.ReadFile(filepath.Join(b.Dir(), "demand.csv"))
	assert.Equal(t, "a", string(da))
	assert.Equal(t, "b", string(db))
}

func TestManager_CreateShared(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, false, nil)
	require.NoError(t, err)

	ws, err := m.Create()
	require.NoError(t, err)
	assert.NotEmpty(t, ws.ID)
	assert.Equal(t, root, ws.Dir())
	assert.False(t, m.Isolated())
}

func TestManager_Open(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, true, nil)
	require.NoError(t, err)

	ws, err := m.Create()
	require.NoError(t, err)
	m.Release(ws)

	got, err := m.Open(ws.ID)
	require.NoError(t, err)
	assert.Equal(t, ws.Dir(), got.Dir())

	shared, err := m.Open("")
	require.NoError(t, err)
	assert.Equal(t, root, shared.Dir())

	for _, id := range []string{"not-a-uuid", "../etc", "6f1c1f4e-3b1a-4d8e-9d57-0e7f4f5b2a11"} {
		_, err := m.Open(id)
		assert.True(t, errors.Is(err, models.ErrRunNotFound), id)
	}
}

func TestManager_CleanupOld(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, true, nil)
	require.NoError(t, err)

	old, err := m.Create()
	require.NoError(t, err)
	m.Release(old)

	busy, err := m.Create()
	require.NoError(t, err)

	fresh, err := m.Create()
	require.NoError(t, err)
	m.Release(fresh)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old.Dir(), past, past))
	require.NoError(t, os.Chtimes(busy.Dir(), past, past))

	// Unrelated directories are never touched.
	other := filepath.Join(root, "keep-me")
	require.NoError(t, os.Mkdir(other, 0755))
	require.NoError(t, os.Chtimes(other, past, past))

	removed := m.CleanupOld(time.Hour)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(old.Dir())
	assert.True(t, os.IsNotExist(err))
	assert.DirExists(t, busy.Dir())
	assert.DirExists(t, fresh.Dir())
	assert.DirExists(t, other)

	m.Release(busy)
	assert.Equal(t, 1, m.CleanupOld(time.Hour))
}

func TestManager_CleanupSharedIsNoop(t *testing.T) {
	m, err := NewManager(t.TempDir(), false, nil)
	require.NoError(t, err)
	assert.Zero(t, m.CleanupOld(time.Nanosecond))
}

func TestManager_Locate(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, true, nil)
	require.NoError(t, err)

	older, err := m.Create()
	require.NoError(t, err)
	_, err = older.Store.SaveBytes("Results.xlsx", []byte("older"))
	require.NoError(t, err)
	m.Release(older)

	newer, err := m.Create()
	require.NoError(t, err)
	_, err = newer.Store.SaveBytes("Results.xlsx", []byte("newer"))
	require.NoError(t, err)
	m.Release(newer)

	running, err := m.Create()
	require.NoError(t, err)
	_, err = running.Store.SaveBytes("Results.xlsx", []byte("partial"))
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(older.Dir(), "Results.xlsx"), past, past))

	got, err := m.Locate("Results.xlsx")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID, "newest finished run wins over older and running ones")

	// files left in the shared root are the fallback
	require.NoError(t, os.WriteFile(filepath.Join(root, "legacy.html"), []byte("x"), 0644))
	got, err = m.Locate("legacy.html")
	require.NoError(t, err)
	assert.Equal(t, root, got.Dir())

	for _, name := range []string{"missing.xlsx", "../Results.xlsx", newer.ID} {
		_, err := m.Locate(name)
		assert.True(t, errors.Is(err, models.ErrArtifactNotFound), name)
	}

	m.Release(running)
	require.NoError(t, os.Chtimes(filepath.Join(newer.Dir(), "Results.xlsx"), past.Add(-time.Hour), past.Add(-time.Hour)))
	got, err = m.Locate("Results.xlsx")
	require.NoError(t, err)
	assert.Equal(t, running.ID, got.ID)
}

func TestManager_LocateShared(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root, false, nil)
	require.NoError(t, err)

	got, err := m.Locate("anything.xlsx")
	require.NoError(t, err)
	assert.Equal(t, root, got.Dir())
}
