package config

// Definition holds the configuration as read from the config file and the
// environment. Each field maps to a configuration key.
type Definition struct {
	// Debug enables debug logging.
	Debug bool `mapstructure:"debug"`

	// LogFormat is "text" or "json".
	LogFormat string `mapstructure:"logFormat"`

	// MaxDepth limits template nesting.
	MaxDepth int `mapstructure:"maxDepth"`

	// AzureCompatible renders expanded text the way the hosted service does.
	AzureCompatible bool `mapstructure:"azureCompatible"`

	// SkipSyntaxCheck disables the expression syntax pre-pass.
	SkipSyntaxCheck bool `mapstructure:"skipSyntaxCheck"`

	// Variables are compile-time variables passed to every expansion.
	Variables map[string]any `mapstructure:"variables"`

	// VariablesFile is a dotenv file with additional compile-time variables.
	// Values in Variables win over the file.
	VariablesFile string `mapstructure:"variablesFile"`

	// Repositories maps repository resource aliases to local checkouts.
	Repositories map[string]RepositoryDef `mapstructure:"repositories"`

	// Cache configures the parsed template cache.
	Cache *CacheDef `mapstructure:"cache"`

	// Diagram configures the Mermaid diagram output.
	Diagram *DiagramDef `mapstructure:"diagram"`
}

// RepositoryDef is a local checkout of a repository resource.
type RepositoryDef struct {
	Location string   `mapstructure:"location"`
	Match    MatchDef `mapstructure:"match"`
}

// MatchDef holds optional criteria a repository resource must meet.
type MatchDef struct {
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"`
	Endpoint string `mapstructure:"endpoint"`
	Ref      string `mapstructure:"ref"`
}

// CacheDef configures the parsed template cache.
type CacheDef struct {
	Capacity int    `mapstructure:"capacity"`
	TTL      string `mapstructure:"ttl"`
}

// DiagramDef configures the diagram renderer.
type DiagramDef struct {
	Direction string `mapstructure:"direction"`
}
