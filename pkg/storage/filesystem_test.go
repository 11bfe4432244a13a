package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	name, err := store.SaveStream("upload.csv", strings.NewReader("email\na@x.com\n"))
	require.NoError(t, err)
	data, err := os.ReadFile(store.Path(name))
	require.NoError(t, err)
	assert.Equal(t, "email\na@x.com\n", string(data))

	_, err = store.SaveStream("upload.csv", strings.NewReader("again"))
	assert.Error(t, err)

	require.NoError(t, store.Delete(name))
	require.NoError(t, store.Delete(name))
	_, err = os.Stat(filepath.Join(dir, name))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../escape.csv", "nested/file.csv", `..\win.csv`} {
		_, err := store.SaveStream(name, strings.NewReader("x"))
		assert.True(t, errors.Is(err, ErrInvalidName), name)
		assert.Empty(t, store.Path(name), name)
	}
}

func TestLocalStorageMaxSize(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)
	store.WithMaxSize(4)

	_, err = store.SaveStream("big.csv", strings.NewReader("12345"))
	assert.True(t, errors.Is(err, ErrTooLarge))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = store.SaveStream("ok.csv", strings.NewReader("1234"))
	assert.NoError(t, err)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	_, err = store.SaveStream("stale.csv", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = store.SaveStream("fresh.csv", strings.NewReader("y"))
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path("stale.csv"), old, old))

	deleted, err := store.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"stale.csv"}, deleted)
	_, err = os.Stat(store.Path("fresh.csv"))
	assert.NoError(t, err)
}
