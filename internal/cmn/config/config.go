package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Config holds the resolved configuration for the application.
type Config struct {
	Core     Core
	Expand   Expand
	Cache    Cache
	Diagram  Diagram
	Warnings []string
}

// Core holds settings shared by every command.
type Core struct {
	// Debug enables debug logging.
	Debug bool
	// LogFormat is "text" or "json".
	LogFormat string
	// ConfigFileUsed is the config file that was read, if any.
	ConfigFileUsed string
}

// Expand holds the defaults applied to every expansion.
type Expand struct {
	MaxDepth        int
	AzureCompatible bool
	SkipSyntaxCheck bool
	// Variables merges VariablesFile and the variables key.
	Variables    map[string]any
	Repositories map[string]Repository
}

// Repository is a local checkout of a repository resource.
type Repository struct {
	Location string
	Match    Match
}

// Match holds optional criteria a repository resource must meet.
type Match struct {
	Name     string
	Type     string
	Endpoint string
	Ref      string
}

// Cache configures the parsed template cache.
type Cache struct {
	Capacity int
	TTL      time.Duration
}

// Diagram configures the diagram renderer.
type Diagram struct {
	Direction string
}

var (
	validLogFormats  = []string{"text", "json"}
	validDirections  = []string{"LR", "RL", "TB", "TD", "BT"}
	defaultCacheSize = 200
	defaultCacheTTL  = 10 * time.Minute
)

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !slices.Contains(validLogFormats, c.Core.LogFormat) {
		return fmt.Errorf("invalid log format: %q (must be one of %s)", c.Core.LogFormat, strings.Join(validLogFormats, ", "))
	}
	if c.Expand.MaxDepth < 0 {
		return fmt.Errorf("invalid maxDepth: %d", c.Expand.MaxDepth)
	}
	if c.Cache.Capacity < 0 {
		return fmt.Errorf("invalid cache capacity: %d", c.Cache.Capacity)
	}
	if !slices.Contains(validDirections, c.Diagram.Direction) {
		return fmt.Errorf("invalid diagram direction: %q (must be one of %s)", c.Diagram.Direction, strings.Join(validDirections, ", "))
	}
	for alias, repo := range c.Expand.Repositories {
		if repo.Location == "" {
			return fmt.Errorf("repository %q: location is required", alias)
		}
	}
	return nil
}
