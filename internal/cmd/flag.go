package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultPipelineFile = "azure-pipelines.yml"

type commandLineFlag struct {
	name, shorthand, defaultValue, usage string
	required                             bool
	// isBool marks a boolean flag.
	isBool bool
	// isArray marks a repeatable flag.
	isArray bool
	// bindViper names the configuration key the flag overrides.
	bindViper string
}

var (
	configFlag = commandLineFlag{
		name:      "config",
		shorthand: "c",
		usage:     "config file (default is $XDG_CONFIG_HOME/azpipe/config.yaml)",
	}
	quietFlag = commandLineFlag{
		name:      "quiet",
		shorthand: "q",
		usage:     "suppress log output",
		isBool:    true,
	}
	debugFlag = commandLineFlag{
		name:      "debug",
		usage:     "enable debug logging",
		isBool:    true,
		bindViper: "debug",
	}
	logFormatFlag = commandLineFlag{
		name:      "log-format",
		usage:     "log format (text or json)",
		bindViper: "logFormat",
	}
	outputFlag = commandLineFlag{
		name:      "output",
		shorthand: "o",
		usage:     "write the result to a file instead of stdout",
	}
	expandFormatFlag = commandLineFlag{
		name:         "format",
		shorthand:    "f",
		defaultValue: "yaml",
		usage:        "output format (yaml or json)",
	}
	analyzeFormatFlag = commandLineFlag{
		name:         "format",
		shorthand:    "f",
		defaultValue: "report",
		usage:        "output format (report, diagram or json)",
	}
	queryFlag = commandLineFlag{
		name:  "query",
		usage: "jq filter applied to the expanded document",
	}
	watchFlag = commandLineFlag{
		name:      "watch",
		shorthand: "w",
		usage:     "expand again whenever a pipeline or template file changes",
		isBool:    true,
	}
	varFlag = commandLineFlag{
		name:    "var",
		usage:   "compile-time variable as NAME=VALUE (repeatable)",
		isArray: true,
	}
	varsFileFlag = commandLineFlag{
		name:      "vars-file",
		usage:     "dotenv file with compile-time variables",
		bindViper: "variablesFile",
	}
	paramFlag = commandLineFlag{
		name:      "param",
		shorthand: "p",
		usage:     "root parameter as NAME=VALUE, VALUE is read as YAML (repeatable)",
		isArray:   true,
	}
	repoFlag = commandLineFlag{
		name:    "repo",
		usage:   "local checkout of a repository resource as ALIAS=PATH (repeatable)",
		isArray: true,
	}
	azureCompatibleFlag = commandLineFlag{
		name:      "azure-compatible",
		usage:     "render output the way the hosted service does",
		isBool:    true,
		bindViper: "azureCompatible",
	}
	skipSyntaxCheckFlag = commandLineFlag{
		name:      "skip-syntax-check",
		usage:     "skip the expression syntax check of templates",
		isBool:    true,
		bindViper: "skipSyntaxCheck",
	}
	maxDepthFlag = commandLineFlag{
		name:      "max-depth",
		usage:     "maximum template nesting depth",
		bindViper: "maxDepth",
	}
	directionFlag = commandLineFlag{
		name:      "direction",
		usage:     "diagram direction (LR, RL, TB or BT)",
		bindViper: "diagram.direction",
	}
	rawFlag = commandLineFlag{
		name:   "raw",
		usage:  "analyze the file as written, without expanding templates",
		isBool: true,
	}
	listFunctionsFlag = commandLineFlag{
		name:   "list",
		usage:  "list the supported functions",
		isBool: true,
	}
)

// expansionFlags are shared by every command that expands a pipeline.
var expansionFlags = []commandLineFlag{
	varFlag,
	varsFileFlag,
	paramFlag,
	repoFlag,
	azureCompatibleFlag,
	skipSyntaxCheckFlag,
	maxDepthFlag,
}

var commonFlags = []commandLineFlag{configFlag, quietFlag, debugFlag, logFormatFlag}

// initFlags registers the common flags and the given flags on cmd.
func initFlags(cmd *cobra.Command, addFlags ...commandLineFlag) {
	for _, flag := range append(append([]commandLineFlag{}, commonFlags...), addFlags...) {
		if cmd.Flags().Lookup(flag.name) != nil {
			continue
		}
		switch {
		case flag.isBool:
			cmd.Flags().BoolP(flag.name, flag.shorthand, flag.defaultValue == "true", flag.usage)
		case flag.isArray:
			cmd.Flags().StringArrayP(flag.name, flag.shorthand, nil, flag.usage)
		default:
			cmd.Flags().StringP(flag.name, flag.shorthand, flag.defaultValue, flag.usage)
		}
		if flag.required {
			if err := cmd.MarkFlagRequired(flag.name); err != nil {
				fmt.Printf("failed to mark flag %s as required: %v\n", flag.name, err)
			}
		}
	}
}

// bindFlags binds flags that override configuration keys to v. Only flags
// set on the command line take precedence over the config file.
func bindFlags(v *viper.Viper, cmd *cobra.Command, flags ...commandLineFlag) error {
	for _, flag := range append(append([]commandLineFlag{}, commonFlags...), flags...) {
		if flag.bindViper == "" {
			continue
		}
		if err := v.BindPFlag(flag.bindViper, cmd.Flags().Lookup(flag.name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag.name, err)
		}
	}
	return nil
}
