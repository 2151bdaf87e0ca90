package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/dagucloud/azpipe/internal/cmn/logger"
	"github.com/dagucloud/azpipe/internal/cmn/logger/tag"
	"github.com/dagucloud/azpipe/internal/core/diag"
	"github.com/dagucloud/azpipe/internal/core/expand"
	"github.com/dagucloud/azpipe/internal/output"
)

const defaultValidatePattern = "**/azure-pipelines*.{yml,yaml}"

// Validate returns the validate command.
func Validate() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "validate [flags] [pattern...]",
			Short: "Expand many pipelines and report every failure",
			Long: `Expand every pipeline file matching the given glob patterns and report
which ones fail. Patterns support ** for any number of directories.

Example:
  azpipe validate
  azpipe validate 'pipelines/**/*.yml' azure-pipelines.yml

The default pattern is ` + defaultValidatePattern + `.
`,
		},
		expansionFlags,
		runValidate,
	)
}

func runValidate(ctx *Context, args []string) error {
	patterns := args
	if len(patterns) == 0 {
		patterns = []string{defaultValidatePattern}
	}

	files, err := globFiles(patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no pipeline files match %v", patterns)
	}
	logger.Debug(ctx, "Matched pipeline files", tag.Pattern(strings.Join(patterns, " ")), tag.Count(len(files)))

	var (
		results []output.FileResult
		errs    diag.ErrorList
	)
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		opts, err := ctx.ExpandOptions(file)
		if err != nil {
			return err
		}
		_, err = expand.ExpandFile(ctx, file, opts)
		results = append(results, output.FileResult{File: file, Err: err})
		if err != nil {
			errs = append(errs, &diag.FileError{File: file, Err: err})
			logger.Debug(ctx, "Pipeline failed validation", tag.File(file), tag.Error(err))
		}
	}

	if _, err := fmt.Fprint(ctx.Out(), ctx.Renderer.RenderValidation(results)); err != nil {
		return err
	}
	if err := errs.ErrOrNil(); err != nil {
		return &errReported{err: err}
	}
	return nil
}

// globFiles expands the patterns into a sorted list of unique files. A
// pattern without glob meta characters names a file directly.
func globFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePathPattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to match %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !slices.Contains(files, m) {
				files = append(files, m)
			}
		}
	}
	slices.Sort(files)
	return files, nil
}
