package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dagucloud/azpipe/internal/cmn/logger"
	"github.com/dagucloud/azpipe/internal/cmn/logger/tag"
	"github.com/dagucloud/azpipe/internal/core/analyze"
	"github.com/dagucloud/azpipe/internal/core/expand"
)

// Analyze returns the analyze command.
func Analyze() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "analyze [flags] [pipeline.yml]",
			Short: "Show the stages, jobs and critical path of a pipeline",
			Long: `Expand a pipeline and report its stages, jobs, template usages, resources
and the longest dependency chain.

Formats:
  report   tables and the critical path (default)
  diagram  Mermaid flowchart with the critical path highlighted
  json     the full analysis

Example:
  azpipe analyze azure-pipelines.yml --format diagram --direction TB
  azpipe analyze expanded.yml --raw
`,
			Args: cobra.MaximumNArgs(1),
		},
		append([]commandLineFlag{analyzeFormatFlag, directionFlag, outputFlag, rawFlag}, expansionFlags...),
		runAnalyze,
	)
}

func runAnalyze(ctx *Context, args []string) error {
	file := pipelineFile(args)

	format, err := ctx.StringParam(analyzeFormatFlag.name)
	if err != nil {
		return err
	}
	raw, err := ctx.BoolParam(rawFlag.name)
	if err != nil {
		return err
	}
	outFile, err := ctx.StringParam(outputFlag.name)
	if err != nil {
		return err
	}

	var a *analyze.Analysis
	if raw {
		data, err := os.ReadFile(file) //nolint:gosec
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		a = analyze.AnalyzeText(string(data))
	} else {
		opts, err := ctx.ExpandOptions(file)
		if err != nil {
			return err
		}
		doc, err := expand.ExpandFile(ctx, file, opts)
		if err != nil {
			return err
		}
		a = analyze.Analyze(doc)
	}
	if a.Error != "" {
		logger.Warn(ctx, "Analysis incomplete", tag.File(file), tag.Error(a.Error))
	}
	logger.Debug(ctx, "Pipeline analyzed", tag.File(file), tag.Count(len(a.Stages)+len(a.Jobs)))

	var out string
	switch strings.ToLower(format) {
	case "", "report":
		out = ctx.Renderer.RenderCriticalPath(a.CriticalPath) + "\n" + analyze.RenderReport(a)
	case "diagram":
		out = analyze.RenderDiagram(a, analyze.WithDirection(ctx.Config.Diagram.Direction))
	case "json":
		data, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return err
		}
		out = string(data) + "\n"
	default:
		return fmt.Errorf("unsupported format %q (must be report, diagram or json)", format)
	}

	if outFile != "" {
		if err := os.WriteFile(outFile, []byte(out), 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", outFile, err)
		}
		return nil
	}
	_, err = fmt.Fprint(ctx.Out(), out)
	return err
}
