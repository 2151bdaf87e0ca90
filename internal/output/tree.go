package output

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dagucloud/azpipe/internal/cmn/stringutil"
	"github.com/dagucloud/azpipe/internal/core/diag"
)

// Tree drawing characters using Unicode box-drawing characters.
const (
	TreeBranch     = "├─"
	TreeLastBranch = "└─"
	TreePipe       = "│ "
	TreeSpace      = "  "
)

// branchChar returns the appropriate tree branch character based on position.
func branchChar(isLast bool) string {
	if isLast {
		return TreeLastBranch
	}
	return TreeBranch
}

// childPrefix returns the prefix for child elements based on parent position.
func childPrefix(prefix string, isLast bool) string {
	if isLast {
		return prefix + TreeSpace
	}
	return prefix + TreePipe
}

// FileResult is the outcome of processing one pipeline file.
type FileResult struct {
	File string
	Err  error
}

// RenderError renders an error. Expansion failures show their kind, the
// potential issues and the template call stack as a tree.
func (r *Renderer) RenderError(err error) string {
	var sb strings.Builder
	r.writeError(&sb, "", err)
	return sb.String()
}

func (r *Renderer) writeError(sb *strings.Builder, prefix string, err error) {
	var de *diag.Error
	if !errors.As(err, &de) {
		lines := strings.Split(err.Error(), "\n")
		fmt.Fprintf(sb, "%s%s %s\n", prefix, r.red(SymbolFailed), lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintf(sb, "%s  %s\n", prefix, line)
		}
		return
	}

	fmt.Fprintf(sb, "%s%s %s %s\n", prefix, r.red(SymbolFailed), r.gray("["+string(de.Kind)+"]"), de.Message)
	if len(de.Issues) > 0 {
		fmt.Fprintf(sb, "%s  %s\n", prefix, r.yellow("Potential issues"))
		for i, issue := range de.Issues {
			fmt.Fprintf(sb, "%s  %s %s\n", prefix, branchChar(i == len(de.Issues)-1), issue)
		}
	}
	if len(de.Stack) > 0 {
		fmt.Fprintf(sb, "%s  %s\n", prefix, r.yellow("Template call stack"))
		r.writeStack(sb, prefix+"  ", de.Stack)
	}
}

func (r *Renderer) writeStack(sb *strings.Builder, prefix string, stack diag.Stack) {
	for i, f := range stack {
		if i == 0 {
			fmt.Fprintf(sb, "%s%s\n", prefix, f.File)
			continue
		}
		name := f.Template
		if name == "" {
			name = f.File
		}
		loc := stack[i-1].File
		if f.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, f.Line)
		}
		fmt.Fprintf(sb, "%s%s%s %s %s\n", prefix, strings.Repeat(TreeSpace+" ", i-1), TreeLastBranch, name, r.gray("("+loc+")"))
	}
}

// RenderValidation renders one line per file followed by a summary.
// Failed files list their errors beneath them.
func (r *Renderer) RenderValidation(results []FileResult) string {
	var (
		sb     strings.Builder
		failed int
	)
	for i, res := range results {
		if res.Err == nil {
			fmt.Fprintf(&sb, "%s %s\n", r.green(SymbolSucceeded), res.File)
			continue
		}
		failed++
		fmt.Fprintf(&sb, "%s %s\n", r.red(SymbolFailed), res.File)
		r.writeError(&sb, childPrefix("", i == len(results)-1)+" ", res.Err)
	}
	summary := fmt.Sprintf("%d file(s) checked, %d failed", len(results), failed)
	if failed > 0 {
		summary = r.red(summary)
	} else {
		summary = r.green(summary)
	}
	sb.WriteString("\n" + summary + "\n")
	return sb.String()
}

// RenderCriticalPath renders the critical path on one line.
func (r *Renderer) RenderCriticalPath(path []string) string {
	if len(path) == 0 {
		return r.gray("Critical path: (none)") + "\n"
	}
	return fmt.Sprintf("%s Critical path: %s\n", r.yellow(SymbolCritical), r.yellow(strings.Join(path, " → ")))
}

// RenderValue renders a value from an eval command. Strings print as-is;
// multi-line strings are indented under a marker.
func (r *Renderer) RenderValue(s string) string {
	if stringutil.IsMultiLine(s) {
		return r.gray("|") + "\n" + stringutil.Indent(s, "  ") + "\n"
	}
	return s + "\n"
}
