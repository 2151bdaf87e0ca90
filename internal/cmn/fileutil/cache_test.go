package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCache(t *testing.T) {
	t.Parallel()

	cache := NewCache[string]("templates", 100, time.Hour)

	assert.Equal(t, "templates", cache.Name())
	assert.Equal(t, 0, cache.Size())
}

func TestCache_StoreLoadInvalidate(t *testing.T) {
	t.Parallel()

	cache := NewCache[string]("test", 100, time.Hour)
	filePath := filepath.Join(t.TempDir(), "steps.yml")
	require.NoError(t, os.WriteFile(filePath, []byte("steps: []"), 0600))

	fi, err := os.Stat(filePath)
	require.NoError(t, err)

	cache.Store(filePath, "parsed", fi)
	data, ok := cache.Load(filePath)
	require.True(t, ok)
	assert.Equal(t, "parsed", data)

	cache.Invalidate(filePath)
	_, ok = cache.Load(filePath)
	assert.False(t, ok)
}

func TestCache_LoadLatest(t *testing.T) {
	t.Parallel()

	cache := NewCache[string]("test", 0, 0)
	filePath := filepath.Join(t.TempDir(), "jobs.yml")
	require.NoError(t, os.WriteFile(filePath, []byte("jobs: []"), 0600))

	calls := 0
	loader := func() (string, error) {
		calls++
		data, err := os.ReadFile(filePath)
		return string(data), err
	}

	v, hit, err := cache.LoadLatest(filePath, loader)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "jobs: []", v)

	v, hit, err = cache.LoadLatest(filePath, loader)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "jobs: []", v)
	assert.Equal(t, 1, calls)

	// A rewrite with a different size makes the entry stale.
	require.NoError(t, os.WriteFile(filePath, []byte("jobs:\n- job: A\n"), 0600))
	v, hit, err = cache.LoadLatest(filePath, loader)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "jobs:\n- job: A\n", v)
	assert.Equal(t, 2, calls)
}

func TestCache_LoadLatestErrors(t *testing.T) {
	t.Parallel()

	cache := NewCache[int]("test", 0, 0)

	_, _, err := cache.LoadLatest(filepath.Join(t.TempDir(), "missing.yml"), func() (int, error) { return 1, nil })
	require.Error(t, err)

	filePath := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0600))
	boom := errors.New("boom")
	_, _, err = cache.LoadLatest(filePath, func() (int, error) { return 0, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Size())
}

func TestCache_CapacityLimit(t *testing.T) {
	t.Parallel()

	cache := NewCache[int]("test", 3, time.Hour)
	dir := t.TempDir()
	for i := range 6 {
		p := filepath.Join(dir, string(rune('a'+i))+".yml")
		require.NoError(t, os.WriteFile(p, []byte("x"), 0600))
		fi, err := os.Stat(p)
		require.NoError(t, err)
		cache.Store(p, i, fi)
	}
	assert.Equal(t, 3, cache.Size())
}
