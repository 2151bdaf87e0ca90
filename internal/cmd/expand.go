package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"

	"github.com/dagucloud/azpipe/internal/cmn/logger"
	"github.com/dagucloud/azpipe/internal/cmn/logger/tag"
	"github.com/dagucloud/azpipe/internal/core/expand"
	"github.com/dagucloud/azpipe/internal/core/yamlnode"
)

// Expand returns the expand command.
func Expand() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "expand [flags] [pipeline.yml]",
			Short: "Expand the templates of a pipeline",
			Long: `Resolve template references, compile-time expressions and step shorthands
of a pipeline file and print the result.

Example:
  azpipe expand azure-pipelines.yml --var env=prod --repo tools=../tools
  azpipe expand --format json --query '.stages[].stage'
  azpipe expand --watch -o expanded.yml

The pipeline file defaults to azure-pipelines.yml in the current directory.
`,
			Args: cobra.MaximumNArgs(1),
		},
		append([]commandLineFlag{outputFlag, expandFormatFlag, queryFlag, watchFlag}, expansionFlags...),
		runExpand,
	)
}

func pipelineFile(args []string) string {
	if len(args) == 0 || args[0] == "" {
		return defaultPipelineFile
	}
	return args[0]
}

func runExpand(ctx *Context, args []string) error {
	file := pipelineFile(args)

	watch, err := ctx.BoolParam(watchFlag.name)
	if err != nil {
		return err
	}
	if watch {
		return watchPipeline(ctx, file, func() error {
			return expandOnce(ctx, file)
		})
	}
	return expandOnce(ctx, file)
}

func expandOnce(ctx *Context, file string) error {
	format, err := ctx.StringParam(expandFormatFlag.name)
	if err != nil {
		return err
	}
	query, err := ctx.StringParam(queryFlag.name)
	if err != nil {
		return err
	}
	outFile, err := ctx.StringParam(outputFlag.name)
	if err != nil {
		return err
	}

	opts, err := ctx.ExpandOptions(file)
	if err != nil {
		return err
	}
	doc, err := expand.ExpandFile(ctx, file, opts)
	if err != nil {
		return err
	}
	logger.Info(ctx, "Pipeline expanded", tag.File(file), tag.Format(format))

	var out string
	switch {
	case query != "":
		out, err = runQuery(query, doc)
	case strings.EqualFold(format, "json"):
		var data []byte
		data, err = yamlnode.ToJSON(doc.Root)
		out = string(data) + "\n"
	case format == "" || strings.EqualFold(format, "yaml"):
		out, err = yamlnode.Encode(doc.Root, yamlnode.EncodeOptions{AzureCompatible: opts.AzureCompatible})
	default:
		return fmt.Errorf("unsupported format %q (must be yaml or json)", format)
	}
	if err != nil {
		return err
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

// runQuery applies a jq filter to the expanded document and renders each
// result as indented JSON.
func runQuery(src string, doc *yamlnode.Document) (string, error) {
	q, err := gojq.Parse(src)
	if err != nil {
		return "", fmt.Errorf("invalid query: %w", err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return "", fmt.Errorf("invalid query: %w", err)
	}

	input, err := jqInput(doc.Root)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			if err, ok := err.(*gojq.HaltError); ok && err.Value() == nil {
				break
			}
			return "", fmt.Errorf("query failed: %w", err)
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return "", err
		}
		sb.Write(data)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// jqInput converts the document to the plain JSON value types gojq works on.
func jqInput(n yamlnode.Node) (any, error) {
	data, err := yamlnode.ToJSON(n)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
