package expand

import (
	"strings"

	"github.com/dagucloud/azpipe/internal/cmn/fileutil"
	"github.com/dagucloud/azpipe/internal/core/expr"
	"github.com/dagucloud/azpipe/internal/core/yamlnode"
)

// DefaultMaxDepth bounds template nesting when Options.MaxDepth is zero.
const DefaultMaxDepth = 100

// Options configures a single expansion. Options are never modified by
// the expander.
type Options struct {
	// FileName names the root document for diagnostics and relative
	// template resolution. Relative names are joined with BaseDir.
	FileName string
	// BaseDir is the root of the "self" repository. Defaults to the
	// directory of FileName, or the working directory.
	BaseDir string
	// AzureCompatible renders text the way the hosted service does.
	AzureCompatible bool
	// SkipSyntaxCheck disables the expression syntax pre-pass.
	SkipSyntaxCheck bool
	// Repositories maps repository resource aliases to local checkouts.
	Repositories RepositoryMap
	// Variables are compile-time variable values. They override
	// variables declared at the root of the document.
	Variables map[string]any
	// Parameters override the defaults of the root document's parameters.
	Parameters map[string]any
	// MaxDepth limits template nesting. Zero means DefaultMaxDepth.
	MaxDepth int
	// Counters backs counter(). Nil means a fresh store per call.
	Counters expr.CounterStore
	// Cache holds parsed templates between calls. Nil disables caching.
	Cache *fileutil.Cache[*yamlnode.Document]
}

// RepositoryMap maps a repository alias to its local location.
type RepositoryMap map[string]Repository

// lookup finds alias exactly, then ignoring case. Config files loaded
// through viper lowercase map keys.
func (m RepositoryMap) lookup(alias string) (Repository, bool) {
	if r, ok := m[alias]; ok {
		return r, true
	}
	for a, r := range m {
		if strings.EqualFold(a, alias) {
			return r, true
		}
	}
	return Repository{}, false
}

// Repository is a local checkout of a repository resource. Non-empty
// Match fields must equal the fields of the declared resource.
type Repository struct {
	Location string `mapstructure:"location"`
	Match    Match  `mapstructure:"match"`
}

// Match holds optional criteria compared against a repository resource.
type Match struct {
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"`
	Endpoint string `mapstructure:"endpoint"`
	Ref      string `mapstructure:"ref"`
}

func (m Match) matches(r repositoryResource) bool {
	return matchField(m.Name, r.Name) &&
		matchField(m.Type, r.Type) &&
		matchField(m.Endpoint, r.Endpoint) &&
		matchField(m.Ref, r.Ref)
}

func matchField(want, got string) bool {
	return want == "" || want == got
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}
