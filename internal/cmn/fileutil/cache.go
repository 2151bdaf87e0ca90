package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// entry holds cached data alongside the file metadata it was loaded from.
type entry[T any] struct {
	data    T
	size    int64
	modTime time.Time
}

// Cache is a file-keyed cache backed by an expirable LRU.
// An entry is served only while the file on disk still has the size and
// modification time recorded when the entry was stored.
type Cache[T any] struct {
	name string
	lru  *expirable.LRU[string, entry[T]]
}

// NewCache creates a cache with the given capacity and time-to-live.
// A capacity of 0 means unlimited size; a ttl of 0 disables expiry.
func NewCache[T any](name string, capacity int, ttl time.Duration) *Cache[T] {
	return &Cache[T]{
		name: name,
		lru:  expirable.NewLRU[string, entry[T]](capacity, nil, ttl),
	}
}

// Name returns the cache name.
func (c *Cache[T]) Name() string {
	return c.name
}

// Size returns the current number of entries.
func (c *Cache[T]) Size() int {
	return c.lru.Len()
}

// Store adds or replaces the entry for file.
func (c *Cache[T]) Store(file string, data T, fi os.FileInfo) {
	c.lru.Add(cacheKey(file), entry[T]{
		data:    data,
		size:    fi.Size(),
		modTime: fi.ModTime(),
	})
}

// Load returns the entry for file without checking staleness.
func (c *Cache[T]) Load(file string) (T, bool) {
	e, ok := c.lru.Get(cacheKey(file))
	if !ok {
		var zero T
		return zero, false
	}
	return e.data, true
}

// Invalidate removes the entry for file.
func (c *Cache[T]) Invalidate(file string) {
	c.lru.Remove(cacheKey(file))
}

// LoadLatest returns the cached entry for file when it is still fresh,
// otherwise it calls loader and caches the result. The boolean reports
// whether the value came from the cache.
func (c *Cache[T]) LoadLatest(file string, loader func() (T, error)) (T, bool, error) {
	var zero T
	fi, err := os.Stat(file)
	if err != nil {
		return zero, false, fmt.Errorf("failed to stat file %s: %w", file, err)
	}
	if e, ok := c.lru.Get(cacheKey(file)); ok && e.size == fi.Size() && e.modTime.Equal(fi.ModTime()) {
		return e.data, true, nil
	}
	data, err := loader()
	if err != nil {
		return zero, false, err
	}
	c.Store(file, data, fi)
	return data, false, nil
}

func cacheKey(file string) string {
	if abs, err := filepath.Abs(file); err == nil {
		return abs
	}
	return filepath.Clean(file)
}
