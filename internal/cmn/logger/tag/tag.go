// Package tag provides standardized tag functions for structured logging.
//
// All tag keys use kebab-case naming convention for consistency.
// Use these functions instead of raw strings to ensure consistent
// and type-safe log output across the codebase.
package tag

import (
	"log/slog"
	"time"
)

// Error creates a tag for error objects.
func Error(err any) slog.Attr {
	return slog.Any("err", err)
}

// RequestID creates a tag for the id of one CLI invocation.
func RequestID(id string) slog.Attr {
	return slog.String("request-id", id)
}

// Path and file tags

// File creates a tag for file paths.
func File(path string) slog.Attr {
	return slog.String("file", path)
}

// Dir creates a tag for directory paths.
func Dir(path string) slog.Attr {
	return slog.String("dir", path)
}

// Pattern creates a tag for glob patterns.
func Pattern(p string) slog.Attr {
	return slog.String("pattern", p)
}

// Expansion tags

// Template creates a tag for a template reference as written by the caller.
func Template(ref string) slog.Attr {
	return slog.String("template", ref)
}

// Repository creates a tag for a repository resource alias.
func Repository(alias string) slog.Attr {
	return slog.String("repository", alias)
}

// Depth creates a tag for the template nesting depth.
func Depth(n int) slog.Attr {
	return slog.Int("depth", n)
}

// Kind creates a tag for an error or entity kind.
func Kind(k string) slog.Attr {
	return slog.String("kind", k)
}

// Generic tags

// Count creates a tag for counts.
func Count(n int) slog.Attr {
	return slog.Int("count", n)
}

// Duration creates a tag for elapsed time.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Name creates a tag for generic names.
func Name(name string) slog.Attr {
	return slog.String("name", name)
}

// Format creates a tag for output formats.
func Format(f string) slog.Attr {
	return slog.String("format", f)
}

// Config creates a tag for configuration file paths.
func Config(path string) slog.Attr {
	return slog.String("config", path)
}
