package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	yamlExtension = ".yaml"
	ymlExtension  = ".yml"
)

// IsDir returns true if path is a directory.
func IsDir(path string) bool {
	stat, err := os.Stat(path)
	if err != nil {
		return false
	}
	return stat.IsDir()
}

// FileExists returns true if file exists and is not a directory.
func FileExists(file string) bool {
	stat, err := os.Stat(file)
	if err != nil {
		return false
	}
	return !stat.IsDir()
}

// IsYAMLFile reports whether filename has a .yml or .yaml extension.
func IsYAMLFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ymlExtension, yamlExtension:
		return true
	default:
		return false
	}
}

// ResolvePath resolves a path to an absolute, cleaned path.
// It handles empty paths, tilde expansion and environment variables.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[1:])
	}

	path = os.ExpandEnv(path)

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return filepath.Clean(absPath), nil
}

// ResolvePathOrBlank works like ResolvePath but returns the input
// unchanged when resolution fails.
func ResolvePathOrBlank(path string) string {
	resolved, err := ResolvePath(path)
	if err != nil {
		return path
	}
	return resolved
}
