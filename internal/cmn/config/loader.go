package config

import (
	"fmt"
	"maps"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dagucloud/azpipe/internal/cmn/fileutil"
)

// ConfigLoader reads and merges configuration from the config file and the
// environment.
type ConfigLoader struct {
	v          *viper.Viper
	configFile string
	configDir  string
	warnings   []string
}

// ConfigLoaderOption defines a functional option for configuring a ConfigLoader.
type ConfigLoaderOption func(*ConfigLoader)

// WithConfigFile sets the configuration file path. When empty the loader
// looks for config.yaml in the default config directory.
func WithConfigFile(configFile string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.configFile = configFile
	}
}

// WithConfigDir overrides the directory searched for config.yaml.
func WithConfigDir(dir string) ConfigLoaderOption {
	return func(l *ConfigLoader) {
		l.configDir = dir
	}
}

// NewConfigLoader creates a ConfigLoader with the given viper instance and options.
func NewConfigLoader(v *viper.Viper, options ...ConfigLoaderOption) *ConfigLoader {
	loader := &ConfigLoader{v: v}
	for _, opt := range options {
		opt(loader)
	}
	return loader
}

// Load reads the configuration using the global viper instance, so flags
// bound with viper.BindPFlag take part in the result.
func Load(options ...ConfigLoaderOption) (*Config, error) {
	return NewConfigLoader(viper.GetViper(), options...).Load()
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/azpipe.
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppSlug)
}

// Load reads configuration files, applies defaults and environment overrides,
// and returns a validated Config instance.
func (l *ConfigLoader) Load() (*Config, error) {
	l.configureViper()
	l.setViperDefaultValues()

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	configFileUsed, err := l.resolvePath("config file", l.v.ConfigFileUsed())
	if err != nil {
		return nil, err
	}

	var def Definition
	if err := l.v.Unmarshal(&def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg, err := l.buildConfig(def, filepath.Dir(configFileUsed))
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}
	cfg.Core.ConfigFileUsed = configFileUsed
	cfg.Warnings = l.warnings

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildConfig transforms the Definition into a Config. Relative paths in
// the definition are resolved against baseDir, the config file directory.
func (l *ConfigLoader) buildConfig(def Definition, baseDir string) (*Config, error) {
	cfg := &Config{
		Core: Core{
			Debug:     def.Debug,
			LogFormat: strings.ToLower(def.LogFormat),
		},
		Expand: Expand{
			MaxDepth:        def.MaxDepth,
			AzureCompatible: def.AzureCompatible,
			SkipSyntaxCheck: def.SkipSyntaxCheck,
			Variables:       make(map[string]any),
			Repositories:    make(map[string]Repository),
		},
		Cache:   Cache{Capacity: defaultCacheSize, TTL: defaultCacheTTL},
		Diagram: Diagram{Direction: "LR"},
	}

	if def.VariablesFile != "" {
		path := l.relativeTo(baseDir, def.VariablesFile)
		vars, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read variables file %q: %w", path, err)
		}
		for k, v := range vars {
			cfg.Expand.Variables[k] = v
		}
	}
	maps.Copy(cfg.Expand.Variables, def.Variables)

	for alias, repo := range def.Repositories {
		location := repo.Location
		if location != "" {
			location = l.relativeTo(baseDir, location)
		}
		cfg.Expand.Repositories[alias] = Repository{
			Location: location,
			Match: Match{
				Name:     repo.Match.Name,
				Type:     repo.Match.Type,
				Endpoint: repo.Match.Endpoint,
				Ref:      repo.Match.Ref,
			},
		}
	}

	if def.Cache != nil {
		cfg.Cache.Capacity = def.Cache.Capacity
		if ttl := l.parseDuration("cache.ttl", def.Cache.TTL); ttl > 0 {
			cfg.Cache.TTL = ttl
		}
	}
	if def.Diagram != nil && def.Diagram.Direction != "" {
		cfg.Diagram.Direction = strings.ToUpper(def.Diagram.Direction)
	}
	return cfg, nil
}

// relativeTo resolves path against baseDir unless it is absolute or
// starts with a tilde.
func (l *ConfigLoader) relativeTo(baseDir, path string) string {
	if strings.HasPrefix(path, "~") || filepath.IsAbs(path) || baseDir == "" || baseDir == "." {
		return fileutil.ResolvePathOrBlank(path)
	}
	return filepath.Join(baseDir, path)
}

// resolvePath resolves a path to an absolute path. Empty paths are returned as-is.
func (l *ConfigLoader) resolvePath(fieldName, pathValue string) (string, error) {
	if pathValue == "" {
		return "", nil
	}
	resolved, err := fileutil.ResolvePath(pathValue)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s path %q: %w", fieldName, pathValue, err)
	}
	return resolved, nil
}

// parseDuration parses a duration string, returning zero and adding a warning if invalid.
func (l *ConfigLoader) parseDuration(fieldName, value string) time.Duration {
	if value == "" {
		return 0
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		l.warnings = append(l.warnings, fmt.Sprintf("Invalid %s value: %s", fieldName, value))
		return 0
	}
	return duration
}

func (l *ConfigLoader) setViperDefaultValues() {
	l.v.SetDefault("debug", false)
	l.v.SetDefault("logFormat", "text")
	l.v.SetDefault("maxDepth", 0)
	l.v.SetDefault("azureCompatible", false)
	l.v.SetDefault("skipSyntaxCheck", false)
	l.v.SetDefault("variablesFile", "")
	l.v.SetDefault("cache.capacity", defaultCacheSize)
	l.v.SetDefault("cache.ttl", defaultCacheTTL.String())
	l.v.SetDefault("diagram.direction", "LR")
}

func (l *ConfigLoader) configureViper() {
	if l.configFile == "" {
		dir := l.configDir
		if dir == "" {
			dir = DefaultConfigDir()
		}
		l.v.AddConfigPath(dir)
		l.v.SetConfigName("config")
	} else {
		l.v.SetConfigFile(l.configFile)
	}
	l.v.SetConfigType("yaml")
	l.v.SetEnvPrefix(strings.ToUpper(AppSlug))
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
	l.bindEnvironmentVariables()
}

// camel case keys have no natural env spelling, so they are bound explicitly
var envBindings = []struct {
	key string
	env string
}{
	{key: "logFormat", env: "LOG_FORMAT"},
	{key: "maxDepth", env: "MAX_DEPTH"},
	{key: "azureCompatible", env: "AZURE_COMPATIBLE"},
	{key: "skipSyntaxCheck", env: "SKIP_SYNTAX_CHECK"},
	{key: "variablesFile", env: "VARIABLES_FILE"},
}

func (l *ConfigLoader) bindEnvironmentVariables() {
	prefix := strings.ToUpper(AppSlug) + "_"
	for _, b := range envBindings {
		_ = l.v.BindEnv(b.key, prefix+b.env)
	}
}
