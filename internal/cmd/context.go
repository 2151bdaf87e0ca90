package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"

	"dario.cat/mergo"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dagucloud/azpipe/internal/cmn/config"
	"github.com/dagucloud/azpipe/internal/cmn/fileutil"
	"github.com/dagucloud/azpipe/internal/cmn/logger"
	"github.com/dagucloud/azpipe/internal/cmn/logger/tag"
	"github.com/dagucloud/azpipe/internal/cmn/stringutil"
	"github.com/dagucloud/azpipe/internal/core/diag"
	"github.com/dagucloud/azpipe/internal/core/expand"
	"github.com/dagucloud/azpipe/internal/core/yamlnode"
	"github.com/dagucloud/azpipe/internal/output"
)

// Context holds the configuration for a command.
type Context struct {
	context.Context

	Command   *cobra.Command
	Flags     []commandLineFlag
	Config    *config.Config
	Quiet     bool
	RequestID string
	Renderer  *output.Renderer

	// templates is shared by every expansion of one command run.
	templates *fileutil.Cache[*yamlnode.Document]
}

// NewContext loads the configuration, sets up the logger context and logs
// any warnings collected while loading.
func NewContext(cmd *cobra.Command, flags []commandLineFlag) (*Context, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	v := viper.New()
	if err := bindFlags(v, cmd, flags...); err != nil {
		return nil, err
	}

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return nil, fmt.Errorf("failed to get quiet flag: %w", err)
	}

	var configLoaderOpts []config.ConfigLoaderOption
	if cfgPath, _ := cmd.Flags().GetString("config"); cfgPath != "" {
		configLoaderOpts = append(configLoaderOpts, config.WithConfigFile(stringutil.RemoveQuotes(cfgPath)))
	}

	cfg, err := config.NewConfigLoader(v, configLoaderOpts...).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	var opts []logger.Option
	if cfg.Core.Debug || os.Getenv("DEBUG") != "" {
		opts = append(opts, logger.WithDebug())
	}
	if quiet {
		opts = append(opts, logger.WithQuiet())
	}
	if cfg.Core.LogFormat != "" {
		opts = append(opts, logger.WithFormat(cfg.Core.LogFormat))
	}
	ctx = logger.WithLogger(ctx, logger.NewLogger(opts...))

	requestID, err := genRequestID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate request ID: %w", err)
	}
	ctx = logger.WithValues(ctx, tag.RequestID(requestID))

	for _, w := range cfg.Warnings {
		logger.Warn(ctx, w)
	}
	if cfg.Core.ConfigFileUsed != "" {
		logger.Debug(ctx, "Loaded config", tag.Config(cfg.Core.ConfigFileUsed))
	}

	return &Context{
		Context:   ctx,
		Command:   cmd,
		Flags:     flags,
		Config:    cfg,
		Quiet:     quiet,
		RequestID: requestID,
		Renderer:  output.NewRenderer(rendererConfig(cmd.OutOrStdout())),
		templates: fileutil.NewCache[*yamlnode.Document]("template", cfg.Cache.Capacity, cfg.Cache.TTL),
	}, nil
}

// rendererConfig enables color only when w is the terminal stdout.
func rendererConfig(w io.Writer) output.Config {
	cfg := output.DefaultConfig()
	if f, ok := w.(*os.File); !ok || f != os.Stdout {
		cfg.ColorEnabled = false
	}
	return cfg
}

// Out returns the writer for command results.
func (c *Context) Out() io.Writer {
	return c.Command.OutOrStdout()
}

// StringParam retrieves a string parameter from the command line flags.
// It checks if the parameter is wrapped in quotes and removes them if necessary.
func (c *Context) StringParam(name string) (string, error) {
	val, err := c.Command.Flags().GetString(name)
	if err != nil {
		return "", fmt.Errorf("failed to get flag %s: %w", name, err)
	}
	return stringutil.RemoveQuotes(val), nil
}

// BoolParam retrieves a boolean flag.
func (c *Context) BoolParam(name string) (bool, error) {
	val, err := c.Command.Flags().GetBool(name)
	if err != nil {
		return false, fmt.Errorf("failed to get flag %s: %w", name, err)
	}
	return val, nil
}

// KeyValueParam parses a repeatable NAME=VALUE flag.
func (c *Context) KeyValueParam(name string) (map[string]string, error) {
	if c.Command.Flags().Lookup(name) == nil {
		return nil, nil
	}
	vals, err := c.Command.Flags().GetStringArray(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get flag %s: %w", name, err)
	}
	pairs, err := stringutil.ParseKeyValues(vals)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return pairs, nil
}

// ExpandOptions builds expansion options for file from the configuration,
// then layers the --var, --param and --repo flags on top.
func (c *Context) ExpandOptions(file string) (expand.Options, error) {
	ec := c.Config.Expand
	opts := expand.Options{
		FileName:        file,
		AzureCompatible: ec.AzureCompatible,
		SkipSyntaxCheck: ec.SkipSyntaxCheck,
		MaxDepth:        ec.MaxDepth,
		Variables:       maps.Clone(ec.Variables),
		Repositories:    make(expand.RepositoryMap, len(ec.Repositories)),
		Cache:           c.templates,
	}
	for alias, r := range ec.Repositories {
		opts.Repositories[alias] = expand.Repository{
			Location: r.Location,
			Match: expand.Match{
				Name:     r.Match.Name,
				Type:     r.Match.Type,
				Endpoint: r.Match.Endpoint,
				Ref:      r.Match.Ref,
			},
		}
	}

	overrides, err := c.flagOptions()
	if err != nil {
		return expand.Options{}, err
	}
	if err := mergo.Merge(&opts, overrides, mergo.WithOverride); err != nil {
		return expand.Options{}, fmt.Errorf("failed to merge options: %w", err)
	}
	return opts, nil
}

func (c *Context) flagOptions() (expand.Options, error) {
	var opts expand.Options

	vars, err := c.KeyValueParam(varFlag.name)
	if err != nil {
		return opts, err
	}
	if len(vars) > 0 {
		opts.Variables = make(map[string]any, len(vars))
		for k, v := range vars {
			opts.Variables[k] = v
		}
	}

	params, err := c.KeyValueParam(paramFlag.name)
	if err != nil {
		return opts, err
	}
	if len(params) > 0 {
		opts.Parameters = make(map[string]any, len(params))
		for k, v := range params {
			opts.Parameters[k] = parseParamValue(v)
		}
	}

	repos, err := c.KeyValueParam(repoFlag.name)
	if err != nil {
		return opts, err
	}
	if len(repos) > 0 {
		opts.Repositories = make(expand.RepositoryMap, len(repos))
		for alias, location := range repos {
			opts.Repositories[alias] = expand.Repository{Location: fileutil.ResolvePathOrBlank(location)}
		}
	}
	return opts, nil
}

// parseParamValue reads a parameter value as YAML so that numbers, booleans
// and lists keep their type. Values that are not valid YAML stay strings.
func parseParamValue(s string) any {
	doc, err := yamlnode.Parse(s, "", false)
	if err != nil || doc.Root == nil {
		return s
	}
	if _, ok := doc.Root.(*yamlnode.Mapping); ok && s != "" && s[0] != '{' {
		return s
	}
	return yamlnode.ToValue(doc.Root)
}

// errReported wraps an error whose details were already written to the
// command output.
type errReported struct {
	err error
}

func (e *errReported) Error() string { return e.err.Error() }
func (e *errReported) Unwrap() error { return e.err }

// NewCommand creates a new command instance with the given cobra command and run function.
func NewCommand(cmd *cobra.Command, flags []commandLineFlag, runFunc func(cmd *Context, args []string) error) *cobra.Command {
	initFlags(cmd, flags...)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext(cmd, flags)
		if err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Initialization error: %v\n", err)
			return err
		}
		if err := runFunc(ctx, args); err != nil {
			var reported *errReported
			if !errors.As(err, &reported) {
				_, _ = fmt.Fprint(cmd.ErrOrStderr(), ctx.Renderer.RenderError(err))
			}
			var derr *diag.Error
			if errors.As(err, &derr) {
				logger.Debug(ctx.Context, "Command failed", tag.Kind(string(derr.Kind)), tag.Error(err))
			} else {
				logger.Debug(ctx.Context, "Command failed", tag.Error(err))
			}
			return err
		}
		return nil
	}

	return cmd
}

// genRequestID creates a new UUID string identifying one command run.
func genRequestID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
