package fileutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FileResolver finds a file relative to an ordered list of locations.
// A location may be a directory or a file, in which case its directory is used.
type FileResolver struct {
	relativeTos []string
}

// NewFileResolver creates a new FileResolver.
func NewFileResolver(relativeTos ...string) *FileResolver {
	return &FileResolver{relativeTos: relativeTos}
}

// ResolveFilePath returns the first existing candidate for file:
// the path itself when absolute, otherwise file joined with each location.
func (r *FileResolver) ResolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		if FileExists(file) {
			return filepath.Clean(file), nil
		}
		return "", &FileNotFoundError{Path: file}
	}

	searchPaths := r.searchPaths(file)
	for _, path := range searchPaths {
		if FileExists(path) {
			return path, nil
		}
	}
	return "", &FileNotFoundError{Path: file, SearchedPaths: searchPaths}
}

func (r *FileResolver) searchPaths(file string) []string {
	var paths []string
	for _, relativeTo := range r.relativeTos {
		if relativeTo == "" {
			continue
		}
		dir := relativeTo
		if !IsDir(relativeTo) {
			dir = filepath.Dir(relativeTo)
		}
		paths = append(paths, filepath.Join(dir, file))
	}
	return paths
}

// FileNotFoundError provides detailed information about file search failure.
type FileNotFoundError struct {
	Path          string
	SearchedPaths []string
}

func (e *FileNotFoundError) Error() string {
	if len(e.SearchedPaths) == 0 {
		return fmt.Sprintf("file not found: %s", e.Path)
	}
	return fmt.Sprintf("file not found: %s (searched in: %s)", e.Path, strings.Join(e.SearchedPaths, ", "))
}
