package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dagucloud/azpipe/internal/cmd"
	"github.com/dagucloud/azpipe/internal/cmn/config"
)

var rootCmd = &cobra.Command{
	Use:   config.AppSlug,
	Short: "azpipe expands and analyzes Azure Pipelines YAML locally",
	Long: `azpipe expands and analyzes Azure Pipelines YAML locally.

It resolves template references, compile-time ${{ }} expressions and step
shorthands the way the hosted service does, without contacting it, and
reports the dependency structure and critical path of the result.
`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(cmd.Expand())
	rootCmd.AddCommand(cmd.Analyze())
	rootCmd.AddCommand(cmd.Eval())
	rootCmd.AddCommand(cmd.Validate())
	rootCmd.AddCommand(cmd.Version())

	config.Version = version
}

var version = "0.0.0"
