// Package expand resolves templates, compile-time expressions and shorthand
// steps of a pipeline document.
package expand

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dagucloud/azpipe/internal/cmn/logger"
	"github.com/dagucloud/azpipe/internal/cmn/logger/tag"
	"github.com/dagucloud/azpipe/internal/core/diag"
	"github.com/dagucloud/azpipe/internal/core/expr"
	"github.com/dagucloud/azpipe/internal/core/yamlnode"
)

const inlineFileName = "(inline)"

// Expand expands source and returns the resolved document. The first error
// aborts the expansion and is returned as a *diag.Error.
func Expand(ctx context.Context, source string, opts Options) (*yamlnode.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x, err := newExpander(ctx, opts)
	if err != nil {
		return nil, err
	}
	return x.run(source)
}

// ExpandToText expands source and renders the result as YAML.
func ExpandToText(ctx context.Context, source string, opts Options) (string, error) {
	doc, err := Expand(ctx, source, opts)
	if err != nil {
		return "", err
	}
	return yamlnode.Encode(doc.Root, yamlnode.EncodeOptions{AzureCompatible: opts.AzureCompatible})
}

// ExpandFile reads and expands the pipeline at path.
func ExpandFile(ctx context.Context, path string, opts Options) (*yamlnode.Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(abs) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	opts.FileName = abs
	if opts.BaseDir == "" {
		opts.BaseDir = filepath.Dir(abs)
	}
	return Expand(ctx, string(data), opts)
}

type expander struct {
	opts     Options
	log      logger.Logger
	counters expr.CounterStore
	baseDir  string
	rootPath string
	rootName string
	repos    map[string]repositoryResource
	globals  *Scope
}

// frame is the state of the file currently being expanded.
type frame struct {
	stack    diag.Stack
	file     string
	dir      string
	repoRoot string
	// repoAlias is empty for the self repository.
	repoAlias string
	scope     *Scope
	// paramContexts maps caller parameter names to the collection key
	// their values are expanded under (steps, jobs or stages).
	paramContexts map[string]string
}

func (f *frame) location(pos yamlnode.Pos) string {
	if pos.Line == 0 {
		return f.file
	}
	return fmt.Sprintf("%s:%d", f.file, pos.Line)
}

func (f *frame) withScope(s *Scope) *frame {
	c := *f
	c.scope = s
	return &c
}

func (f *frame) plain() *frame {
	if f.paramContexts == nil {
		return f
	}
	c := *f
	c.paramContexts = nil
	return &c
}

func newExpander(ctx context.Context, opts Options) (*expander, error) {
	x := &expander{
		opts:     opts,
		log:      logger.FromContext(ctx),
		counters: opts.Counters,
	}
	if x.counters == nil {
		x.counters = expr.NewCounters()
	}

	baseDir := opts.BaseDir
	if baseDir == "" && opts.FileName != "" {
		abs, err := filepath.Abs(opts.FileName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", opts.FileName, err)
		}
		baseDir = filepath.Dir(abs)
	}
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory %s: %w", baseDir, err)
	}
	x.baseDir = abs

	x.rootName = inlineFileName
	if opts.FileName != "" {
		x.rootPath = opts.FileName
		if !filepath.IsAbs(x.rootPath) {
			x.rootPath = filepath.Join(x.baseDir, x.rootPath)
		}
		x.rootName = x.displayName(x.rootPath, x.baseDir, "")
	}
	return x, nil
}

// displayName renders path relative to the repository it belongs to.
func (x *expander) displayName(path, repoRoot, alias string) string {
	name := path
	if rel, err := filepath.Rel(repoRoot, path); err == nil && !filepath.IsAbs(rel) && rel != ".." && !hasParentPrefix(rel) {
		name = filepath.ToSlash(rel)
	}
	if alias != "" {
		name += "@" + alias
	}
	return name
}

func hasParentPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}

func (x *expander) run(source string) (*yamlnode.Document, error) {
	start := time.Now()
	rootStack := diag.Stack{{File: x.rootName}}

	doc, err := yamlnode.Parse(source, x.rootName, false)
	if err != nil {
		return nil, diag.Wrap(diag.TemplateParseFailure, rootStack, err, "failed to parse %s: %v", x.rootName, err)
	}
	if !x.opts.SkipSyntaxCheck {
		if err := checkSyntax(doc.Root, x.rootName, rootStack); err != nil {
			return nil, err
		}
	}

	dir := x.baseDir
	if x.rootPath != "" {
		dir = filepath.Dir(x.rootPath)
	}
	fr := &frame{stack: rootStack, file: x.rootName, dir: dir, repoRoot: x.baseDir}

	rootMap, ok := doc.Root.(*yamlnode.Mapping)
	if !ok {
		fr.scope = NewScope(map[string]any{"variables": x.variables(nil), "parameters": expr.NewObject()})
		x.globals = fr.scope
		out, err := x.expandNode(doc.Root, fr, "")
		if err != nil {
			return nil, err
		}
		return &yamlnode.Document{FileName: x.rootName, Root: out}, nil
	}

	repos, err := declaredRepositories(rootMap.Get("resources"), fr)
	if err != nil {
		return nil, err
	}
	x.repos = repos

	x.globals = NewScope(map[string]any{
		"variables": x.variables(rootMap.Get("variables")),
		"resources": resourcesValue(rootMap.Get("resources")),
	})

	params, err := x.bindRootParameters(rootMap, fr)
	if err != nil {
		return nil, err
	}
	fr.scope = x.globals.Child(map[string]any{"parameters": params})

	out, err := x.expandMapping(rootMap, fr, modeRoot)
	if err != nil {
		return nil, err
	}
	if err := x.normalize(out, rootStack); err != nil {
		return nil, err
	}
	x.log.Debug("Expanded pipeline", tag.File(x.rootName), tag.Duration(time.Since(start)))
	return &yamlnode.Document{FileName: x.rootName, Root: out}, nil
}

// variables builds the compile-time variables object from the root
// variables block, overridden by Options.Variables.
func (x *expander) variables(n yamlnode.Node) *expr.Object {
	vars := expr.NewObject()
	switch v := n.(type) {
	case *yamlnode.Mapping:
		for _, e := range v.Entries {
			if yamlnode.IsDirectiveKey(e.Key) {
				continue
			}
			if _, isScalar := e.Value.(*yamlnode.Scalar); isScalar {
				vars.Set(e.Key, toValue(e.Value))
			}
		}
	case *yamlnode.Sequence:
		for _, item := range v.Items {
			m, ok := item.(*yamlnode.Mapping)
			if !ok {
				continue
			}
			name, ok := yamlnode.StringValue(m.Get("name"))
			if !ok {
				continue
			}
			vars.Set(name, toValue(m.Get("value")))
		}
	}
	keys := make([]string, 0, len(x.opts.Variables))
	for k := range x.opts.Variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vars.Set(k, expr.Normalize(x.opts.Variables[k]))
	}
	return vars
}

func resourcesValue(n yamlnode.Node) any {
	if yamlnode.IsNull(n) {
		return expr.NewObject()
	}
	return toValue(n)
}

type entryMode int

const (
	modeNested entryMode = iota
	modeRoot
	modeTemplate
)

func (x *expander) expandNode(n yamlnode.Node, fr *frame, key string) (yamlnode.Node, error) {
	switch v := n.(type) {
	case *yamlnode.Mapping:
		return x.expandMapping(v, fr, modeNested)
	case *yamlnode.Sequence:
		return x.expandSequence(v, fr, key)
	case *yamlnode.Scalar:
		if v.Kind != yamlnode.StringKind || !expr.ContainsExpression(v.Text) {
			return yamlnode.Clone(v), nil
		}
		val, err := x.interpolate(v.Text, fr, v.Pos)
		if err != nil {
			return nil, err
		}
		return x.valueNode(val, fr, v.Pos)
	default:
		return yamlnode.NewNull(), nil
	}
}

func (x *expander) valueNode(val any, fr *frame, pos yamlnode.Pos) (yamlnode.Node, error) {
	node, err := fromValue(val)
	if err != nil {
		return nil, diag.Wrap(diag.ExpressionFailure, fr.stack, err, "%s: %v", fr.location(pos), err)
	}
	return node, nil
}

func (x *expander) expandMapping(m *yamlnode.Mapping, fr *frame, mode entryMode) (yamlnode.Node, error) {
	out := &yamlnode.Mapping{Pos: m.Pos}
	replacement, err := x.expandEntries(m.Entries, fr, out, mode)
	if err != nil {
		return nil, err
	}
	if replacement != nil {
		if out.Len() > 0 {
			return nil, diag.New(diag.ExpressionFailure, fr.stack,
				"%s: a conditional value cannot be mixed with mapping keys", fr.location(m.Pos))
		}
		return replacement, nil
	}
	return out, nil
}

// expandEntries expands entries into out. When a selected directive body is
// not a mapping, it becomes the value of the whole mapping and is returned.
func (x *expander) expandEntries(entries []*yamlnode.Entry, fr *frame, out *yamlnode.Mapping, mode entryMode) (yamlnode.Node, error) {
	var (
		ch          chain
		replacement yamlnode.Node
	)
	merge := func(body yamlnode.Node, bfr *frame) error {
		rep, err := x.mergeBody(body, bfr, out, mode)
		if err != nil {
			return err
		}
		if rep != nil {
			if replacement != nil {
				return diag.New(diag.DuplicateKey, fr.stack, "%s: more than one conditional value selected", fr.location(body.Position()))
			}
			replacement = rep
		}
		return nil
	}

	for _, e := range entries {
		d, err := parseDirective(e.Key)
		if err != nil {
			return nil, diag.Wrap(diag.ExpressionSyntax, fr.stack, err, "%s: %v", fr.location(e.KeyPos), err)
		}
		switch d.kind {
		case dirIf:
			ch = chain{open: true}
			ok, err := x.condition(d.expr, fr, e.KeyPos)
			if err != nil {
				return nil, err
			}
			if ok {
				ch.taken = true
				if err := merge(e.Value, fr); err != nil {
					return nil, err
				}
			}
		case dirElseIf, dirElse:
			if !ch.open {
				return nil, diag.New(diag.ExpressionSyntax, fr.stack, "%s: %s without a preceding if", fr.location(e.KeyPos), d.kind)
			}
			take := !ch.taken
			if take && d.kind == dirElseIf {
				if take, err = x.condition(d.expr, fr, e.KeyPos); err != nil {
					return nil, err
				}
			}
			if take {
				ch.taken = true
				if err := merge(e.Value, fr); err != nil {
					return nil, err
				}
			}
			if d.kind == dirElse {
				ch = chain{}
			}
		case dirEach:
			ch = chain{}
			err := x.each(d, fr, e.KeyPos, func(child *frame) error {
				return merge(e.Value, child)
			})
			if err != nil {
				return nil, err
			}
		case dirInsert:
			ch = chain{}
			if err := x.insert(e, fr, out); err != nil {
				return nil, err
			}
		default:
			ch = chain{}
			if err := x.expandEntry(e, fr, out, mode); err != nil {
				return nil, err
			}
		}
	}
	return replacement, nil
}

func (x *expander) expandEntry(e *yamlnode.Entry, fr *frame, out *yamlnode.Mapping, mode entryMode) error {
	key := e.Key
	if expr.ContainsExpression(key) {
		v, err := x.interpolate(key, fr, e.KeyPos)
		if err != nil {
			return err
		}
		key = expr.ToString(v)
	}
	switch {
	case mode == modeTemplate && key == "parameters":
		return nil
	case mode == modeRoot && key == "parameters":
		return x.add(out, key, yamlnode.Clone(e.Value), fr, e.KeyPos)
	case mode == modeRoot && key == "extends":
		return x.extends(e, fr, out)
	}

	ctxKey := key
	if c, ok := fr.paramContexts[key]; ok {
		ctxKey = c
	}
	value, err := x.expandNode(e.Value, fr.plain(), ctxKey)
	if err != nil {
		return err
	}
	return x.add(out, key, value, fr, e.KeyPos)
}

func (x *expander) mergeBody(body yamlnode.Node, fr *frame, out *yamlnode.Mapping, mode entryMode) (yamlnode.Node, error) {
	if yamlnode.IsNull(body) {
		return nil, nil
	}
	if m, ok := body.(*yamlnode.Mapping); ok {
		return x.expandEntries(m.Entries, fr, out, mode)
	}
	return x.expandNode(body, fr.plain(), "")
}

func (x *expander) insert(e *yamlnode.Entry, fr *frame, out *yamlnode.Mapping) error {
	value, err := x.expandNode(e.Value, fr.plain(), "")
	if err != nil {
		return err
	}
	if yamlnode.IsNull(value) {
		return nil
	}
	m, ok := value.(*yamlnode.Mapping)
	if !ok {
		return diag.New(diag.ExpressionFailure, fr.stack, "%s: insert requires a mapping, got %s", fr.location(e.KeyPos), yamlnode.KindOf(value))
	}
	for _, ie := range m.Entries {
		pos := ie.KeyPos
		if pos.Line == 0 {
			pos = e.KeyPos
		}
		if err := x.add(out, ie.Key, ie.Value, fr, pos); err != nil {
			return err
		}
	}
	return nil
}

func (x *expander) add(out *yamlnode.Mapping, key string, value yamlnode.Node, fr *frame, pos yamlnode.Pos) error {
	if out.Has(key) {
		return diag.New(diag.DuplicateKey, fr.stack, "%s: duplicate key %q after expansion", fr.location(pos), key)
	}
	out.Entries = append(out.Entries, &yamlnode.Entry{Key: key, KeyPos: pos, Value: value})
	return nil
}

func (x *expander) expandSequence(seq *yamlnode.Sequence, fr *frame, key string) (yamlnode.Node, error) {
	out := &yamlnode.Sequence{Pos: seq.Pos, Items: make([]yamlnode.Node, 0, len(seq.Items))}
	var ch chain
	for _, item := range seq.Items {
		d, e, isDirective, err := sequenceDirective(item)
		if err != nil {
			return nil, diag.Wrap(diag.ExpressionSyntax, fr.stack, err, "%s: %v", fr.location(e.KeyPos), err)
		}
		if isDirective {
			if err := x.applySequenceDirective(d, e, fr, key, out, &ch); err != nil {
				return nil, err
			}
			continue
		}
		ch = chain{}
		items, err := x.expandItem(item, fr, key)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, items...)
	}
	return out, nil
}

func (x *expander) applySequenceDirective(d directive, e *yamlnode.Entry, fr *frame, key string, out *yamlnode.Sequence, ch *chain) error {
	appendBody := func(bfr *frame) error {
		items, err := x.expandBody(e.Value, bfr, key)
		if err != nil {
			return err
		}
		out.Items = append(out.Items, items...)
		return nil
	}
	switch d.kind {
	case dirIf:
		*ch = chain{open: true}
		ok, err := x.condition(d.expr, fr, e.KeyPos)
		if err != nil || !ok {
			return err
		}
		ch.taken = true
		return appendBody(fr)
	case dirElseIf, dirElse:
		if !ch.open {
			return diag.New(diag.ExpressionSyntax, fr.stack, "%s: %s without a preceding if", fr.location(e.KeyPos), d.kind)
		}
		take := !ch.taken
		if take && d.kind == dirElseIf {
			var err error
			if take, err = x.condition(d.expr, fr, e.KeyPos); err != nil {
				return err
			}
		}
		if d.kind == dirElse {
			*ch = chain{}
		}
		if !take {
			return nil
		}
		ch.taken = true
		return appendBody(fr)
	default:
		*ch = chain{}
		return x.each(d, fr, e.KeyPos, appendBody)
	}
}

// expandBody expands the body of a sequence directive. A sequence body is
// spliced; any other body is a single item.
func (x *expander) expandBody(body yamlnode.Node, fr *frame, key string) ([]yamlnode.Node, error) {
	if yamlnode.IsNull(body) {
		return nil, nil
	}
	seq, ok := body.(*yamlnode.Sequence)
	if !ok {
		seq = &yamlnode.Sequence{Pos: body.Position(), Items: []yamlnode.Node{body}}
	}
	expanded, err := x.expandSequence(seq, fr, key)
	if err != nil {
		return nil, err
	}
	return expanded.(*yamlnode.Sequence).Items, nil
}

// templateKeys are the collections whose items may be template calls.
var templateKeys = map[string]bool{
	"stages":    true,
	"jobs":      true,
	"steps":     true,
	"variables": true,
}

func (x *expander) expandItem(item yamlnode.Node, fr *frame, key string) ([]yamlnode.Node, error) {
	if m, ok := item.(*yamlnode.Mapping); ok && templateKeys[key] && m.Has("template") {
		return x.templateItems(m, fr, key)
	}
	if s, ok := item.(*yamlnode.Scalar); ok && s.Kind == yamlnode.StringKind && isWholeExpression(s.Text) {
		val, err := x.interpolate(s.Text, fr, s.Pos)
		if err != nil {
			return nil, err
		}
		if list, ok := val.([]any); ok {
			items := make([]yamlnode.Node, 0, len(list))
			for _, v := range list {
				n, err := x.valueNode(v, fr, s.Pos)
				if err != nil {
					return nil, err
				}
				items = append(items, n)
			}
			return items, nil
		}
		n, err := x.valueNode(val, fr, s.Pos)
		if err != nil {
			return nil, err
		}
		return []yamlnode.Node{n}, nil
	}
	n, err := x.expandNode(item, fr.plain(), key)
	if err != nil {
		return nil, err
	}
	return []yamlnode.Node{n}, nil
}

func isWholeExpression(s string) bool {
	spans, err := expr.ScanExpressions(s)
	if err != nil || len(spans) != 1 {
		return false
	}
	return spans[0].Start == len(s)-len(strings.TrimLeft(s, " \t\r\n")) &&
		spans[0].End == len(strings.TrimRight(s, " \t\r\n"))
}

func (x *expander) condition(src string, fr *frame, pos yamlnode.Pos) (bool, error) {
	v, err := x.evaluate(src, fr, pos)
	if err != nil {
		return false, err
	}
	return expr.Truthy(v), nil
}

func (x *expander) each(d directive, fr *frame, pos yamlnode.Pos, body func(*frame) error) error {
	coll, err := x.evaluate(d.expr, fr, pos)
	if err != nil {
		return err
	}
	var items []any
	switch c := coll.(type) {
	case nil:
	case []any:
		items = c
	case *expr.Object:
		for _, k := range c.Keys() {
			pair := expr.NewObject()
			pair.Set("key", k)
			pair.Set("value", c.Value(k))
			items = append(items, pair)
		}
	default:
		return diag.New(diag.ExpressionFailure, fr.stack, "%s: cannot iterate over scalar value %q of %q", fr.location(pos), expr.ToString(coll), d.expr)
	}
	for _, item := range items {
		child := fr.withScope(fr.scope.Child(map[string]any{d.loopVar: item}))
		if err := body(child); err != nil {
			return err
		}
	}
	return nil
}

func (x *expander) evaluate(src string, fr *frame, pos yamlnode.Pos) (any, error) {
	v, err := expr.Evaluate(src, x.env(fr))
	if err != nil {
		return nil, x.exprError(err, fr, pos)
	}
	return v, nil
}

func (x *expander) interpolate(s string, fr *frame, pos yamlnode.Pos) (any, error) {
	v, err := expr.Interpolate(s, x.env(fr))
	if err != nil {
		return nil, x.exprError(err, fr, pos)
	}
	return v, nil
}

func (x *expander) env(fr *frame) expr.Env {
	return expr.Env{Resolver: fr.scope, Counters: x.counters}
}

func (x *expander) exprError(err error, fr *frame, pos yamlnode.Pos) error {
	kind := diag.ExpressionFailure
	if expr.IsSyntax(err) {
		kind = diag.ExpressionSyntax
	}
	return diag.Wrap(kind, fr.stack, err, "%s: %v", fr.location(pos), err)
}
