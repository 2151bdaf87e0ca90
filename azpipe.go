// Package azpipe expands Azure Pipelines YAML locally and analyzes the
// dependency structure of the result.
//
// Expansion resolves "template:" references, compile-time ${{ }}
// expressions, conditional and iterative insertion and shorthand steps:
//
//	doc, err := azpipe.Expand(ctx, source, azpipe.Options{
//		FileName: "azure-pipelines.yml",
//		Repositories: azpipe.RepositoryMap{
//			"tools": {Location: "../tools"},
//		},
//	})
//
// Failures are returned as *diag.Error values carrying the template call
// stack. The analyzer never fails; problems are reported in
// Analysis.Error.
package azpipe

import (
	"context"

	"github.com/dagucloud/azpipe/internal/core/analyze"
	"github.com/dagucloud/azpipe/internal/core/diag"
	"github.com/dagucloud/azpipe/internal/core/expand"
	"github.com/dagucloud/azpipe/internal/core/expr"
	"github.com/dagucloud/azpipe/internal/core/yamlnode"
)

type (
	// Options configures an expansion.
	Options = expand.Options
	// RepositoryMap maps repository resource aliases to local checkouts.
	RepositoryMap = expand.RepositoryMap
	// Repository is a local checkout of a repository resource.
	Repository = expand.Repository
	// Match holds optional criteria a repository resource must meet.
	Match = expand.Match

	// Document is a parsed or expanded pipeline.
	Document = yamlnode.Document
	// Node is a node of a Document.
	Node = yamlnode.Node

	// Error is an expansion failure with its template call stack.
	Error = diag.Error
	// ErrorKind classifies an Error.
	ErrorKind = diag.Kind

	// Analysis is the result of AnalyzeDependencies.
	Analysis = analyze.Analysis
	// DiagramOption configures RenderDiagram.
	DiagramOption = analyze.DiagramOption
)

// Expand expands source and returns the resolved document.
func Expand(ctx context.Context, source string, opts Options) (*Document, error) {
	return expand.Expand(ctx, source, opts)
}

// ExpandFile reads and expands the pipeline at path.
func ExpandFile(ctx context.Context, path string, opts Options) (*Document, error) {
	return expand.ExpandFile(ctx, path, opts)
}

// ExpandToText expands source and renders the result as YAML.
func ExpandToText(ctx context.Context, source string, opts Options) (string, error) {
	return expand.ExpandToText(ctx, source, opts)
}

// EncodeDocument renders doc as YAML.
func EncodeDocument(doc *Document, azureCompatible bool) (string, error) {
	return yamlnode.Encode(doc.Root, yamlnode.EncodeOptions{AzureCompatible: azureCompatible})
}

// EvaluateFunction calls an expression function with already evaluated
// arguments, e.g. EvaluateFunction("format", []any{"{0}-{1}", "a", 1}).
func EvaluateFunction(name string, args []any) (any, error) {
	return expr.EvaluateFunction(name, args)
}

// ParseDocument parses YAML text. In strict mode duplicate keys are
// rejected even when they are expressions.
func ParseDocument(source, fileName string, strict bool) (*Document, error) {
	return yamlnode.Parse(source, fileName, strict)
}

// AnalyzeDependencies analyzes an expanded pipeline given as YAML text.
func AnalyzeDependencies(expandedSource string) *Analysis {
	return analyze.AnalyzeText(expandedSource)
}

// RenderDiagram renders the analysis as a Mermaid flowchart.
func RenderDiagram(a *Analysis, opts ...DiagramOption) string {
	return analyze.RenderDiagram(a, opts...)
}

// RenderReport renders the analysis as text tables.
func RenderReport(a *Analysis) string {
	return analyze.RenderReport(a)
}

// WithDirection sets the flowchart direction of RenderDiagram.
func WithDirection(direction string) DiagramOption {
	return analyze.WithDirection(direction)
}
