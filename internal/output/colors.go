// Package output renders command results for the terminal.
package output

import (
	"github.com/fatih/color"
)

// Status symbols using Unicode characters for visual clarity.
const (
	SymbolSucceeded = "✓"
	SymbolFailed    = "✗"
	SymbolCritical  = "●"
)

// Renderer renders diagnostics and validation results.
type Renderer struct {
	config Config
}

// Config holds configuration for rendering.
type Config struct {
	ColorEnabled bool // Enable colored output using ANSI escape codes.
}

// DefaultConfig returns the default configuration. Color follows the
// terminal detection of fatih/color.
func DefaultConfig() Config {
	return Config{ColorEnabled: !color.NoColor}
}

// NewRenderer creates a Renderer with the given configuration.
func NewRenderer(config Config) *Renderer {
	return &Renderer{config: config}
}

func (r *Renderer) paint(s string, attrs ...color.Attribute) string {
	if !r.config.ColorEnabled {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

func (r *Renderer) red(s string) string    { return r.paint(s, color.FgRed, color.Bold) }
func (r *Renderer) green(s string) string  { return r.paint(s, color.FgGreen) }
func (r *Renderer) yellow(s string) string { return r.paint(s, color.FgYellow) }

// gray is used for secondary information such as call stack locations.
func (r *Renderer) gray(s string) string { return r.paint(s, color.Faint) }
