package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dagucloud/azpipe/internal/core/expr"
)

var errExpressionRequired = errors.New("an expression is required")

// Eval returns the eval command.
func Eval() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "eval [flags] <expression>",
			Short: "Evaluate a compile-time expression",
			Long: `Evaluate a compile-time expression against the given variables and
parameters. The expression may be a bare expression or a string containing
${{ }} blocks.

Example:
  azpipe eval "format('{0}-{1}', variables.env, parameters.region)" --var env=prod -p region=west
  azpipe eval 'image-${{ lower(variables.tag) }}' --var tag=LATEST
  azpipe eval --list
`,
			Args: cobra.MaximumNArgs(1),
		},
		[]commandLineFlag{varFlag, varsFileFlag, paramFlag, listFunctionsFlag},
		runEval,
	)
}

func runEval(ctx *Context, args []string) error {
	list, err := ctx.BoolParam(listFunctionsFlag.name)
	if err != nil {
		return err
	}
	if list {
		_, err := fmt.Fprintln(ctx.Out(), strings.Join(expr.FunctionNames(), "\n"))
		return err
	}
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return errExpressionRequired
	}

	opts, err := ctx.ExpandOptions("")
	if err != nil {
		return err
	}
	env := expr.Env{
		Resolver: expr.MapResolver{
			"variables":  mapOrEmpty(opts.Variables),
			"parameters": mapOrEmpty(opts.Parameters),
		},
		Counters: expr.NewCounters(),
	}

	var v any
	if src := args[0]; expr.ContainsExpression(src) {
		v, err = expr.Interpolate(src, env)
	} else {
		v, err = expr.Evaluate(src, env)
	}
	if err != nil {
		return err
	}

	if s, ok := v.(string); ok {
		_, err = fmt.Fprint(ctx.Out(), ctx.Renderer.RenderValue(s))
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(ctx.Out(), string(data))
	return err
}

func mapOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
