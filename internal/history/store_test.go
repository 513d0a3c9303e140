package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mend/internal/diag"
)

func TestNewSnapshot(t *testing.T) {
	s := NewSnapshot("/p", "fix", diag.Counts{diag.UnresolvedReference: 3, diag.TypeMismatch: 1})
	_, err := uuid.Parse(s.RunID)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, map[string]int{"unresolved": 3, "type-mismatch": 1}, s.Counts)
	assert.False(t, s.Time.IsZero())
}

func TestPutListLatest(t *testing.T) {
	store, err := OpenDir(t.TempDir())
	require.NoError(t, err)

	_, ok, err := store.Latest()
	require.NoError(t, err)
	assert.False(t, ok)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range 3 {
		s := NewSnapshot("/p", "loop", diag.Counts{diag.Other: i})
		s.Time = base.Add(time.Duration(i) * time.Minute)
		s.FilesChanged = i
		require.NoError(t, store.Put(s))
	}

	all, err := store.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 2, all[0].FilesChanged, "newest first")
	assert.True(t, all[0].Time.Equal(base.Add(2*time.Minute)))

	latest, ok, err := store.Latest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, all[0].RunID, latest.RunID)
	assert.Equal(t, "loop", latest.Command)

	two, err := store.List(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temp files left behind")
}

func TestListSkipsOtherSchemas(t *testing.T) {
	store, err := OpenDir(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(NewSnapshot("/p", "fix", nil)))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("x"), 0o644))

	list, err := store.List(0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestOpenUsesCacheHome(t *testing.T) {
	cache := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cache)

	a, err := Open("mend", "/work/a")
	require.NoError(t, err)
	b, err := Open("mend", "/work/b")
	require.NoError(t, err)
	again, err := Open("mend", "/work/a/")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cache, "mend"), filepath.Dir(a.Dir()))
	assert.NotEqual(t, a.Dir(), b.Dir())
	assert.Equal(t, a.Dir(), again.Dir())
}

func TestClear(t *testing.T) {
	store, err := OpenDir(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(NewSnapshot("/p", "fix", nil)))
	require.NoError(t, store.Clear())

	list, err := store.List(0)
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, store.Put(NewSnapshot("/p", "fix", nil)))
}
