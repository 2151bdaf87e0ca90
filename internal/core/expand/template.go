package expand

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/dagucloud/azpipe/internal/cmn/fileutil"
	"github.com/dagucloud/azpipe/internal/cmn/logger/tag"
	"github.com/dagucloud/azpipe/internal/core/diag"
	"github.com/dagucloud/azpipe/internal/core/expr"
	"github.com/dagucloud/azpipe/internal/core/yamlnode"
)

const selfRepository = "self"

// repositoryResource is an entry of resources.repositories.
type repositoryResource struct {
	Alias    string `mapstructure:"repository"`
	Type     string `mapstructure:"type"`
	Name     string `mapstructure:"name"`
	Ref      string `mapstructure:"ref"`
	Endpoint string `mapstructure:"endpoint"`
}

func declaredRepositories(resources yamlnode.Node, fr *frame) (map[string]repositoryResource, error) {
	repos := make(map[string]repositoryResource)
	m, ok := resources.(*yamlnode.Mapping)
	if !ok {
		return repos, nil
	}
	seq, ok := m.Get("repositories").(*yamlnode.Sequence)
	if !ok {
		return repos, nil
	}
	for _, item := range seq.Items {
		im, ok := item.(*yamlnode.Mapping)
		if !ok || !im.Has("repository") {
			continue
		}
		var r repositoryResource
		if err := decode(yamlnode.ToValue(im), &r); err != nil {
			return nil, diag.Wrap(diag.RepositoryNotDefined, fr.stack, err, "%s: invalid repository resource: %v", fr.location(im.Pos), err)
		}
		repos[r.Alias] = r
	}
	return repos, nil
}

func decode(input, output any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// resolvedTemplate is a template reference resolved to a file.
type resolvedTemplate struct {
	path      string
	display   string
	repoRoot  string
	repoAlias string
}

func splitTemplateRef(ref string) (string, string) {
	i := strings.LastIndex(ref, "@")
	if i < 0 {
		return ref, ""
	}
	return ref[:i], ref[i+1:]
}

func (x *expander) resolveTemplate(ref string, fr *frame, line int) (resolvedTemplate, error) {
	path, alias := splitTemplateRef(ref)
	failStack := fr.stack.Push(diag.Frame{File: ref, Template: ref, Line: line})

	var root, relTo, repoAlias string
	switch alias {
	case "":
		root = fr.repoRoot
		relTo = fr.dir
		repoAlias = fr.repoAlias
	case selfRepository:
		root = x.baseDir
		relTo = x.baseDir
	default:
		loc, err := x.repositoryLocation(alias, fr, line)
		if err != nil {
			return resolvedTemplate{}, err
		}
		root = loc
		relTo = loc
		repoAlias = alias
	}
	if strings.HasPrefix(path, "/") {
		path = strings.TrimLeft(path, "/")
		relTo = root
	}

	abs, err := fileutil.NewFileResolver(relTo).ResolveFilePath(filepath.FromSlash(path))
	if err != nil {
		return resolvedTemplate{}, diag.Wrap(diag.TemplateFileNotFound, failStack, err,
			"%s: template %q not found: %v", fr.location(yamlnode.Pos{Line: line}), ref, err)
	}
	return resolvedTemplate{
		path:      abs,
		display:   x.displayName(abs, root, repoAlias),
		repoRoot:  root,
		repoAlias: repoAlias,
	}, nil
}

// repositoryLocation maps a declared repository alias to a local directory.
func (x *expander) repositoryLocation(alias string, fr *frame, line int) (string, error) {
	where := fr.location(yamlnode.Pos{Line: line})
	res, ok := x.repos[alias]
	if !ok {
		return "", diag.New(diag.RepositoryNotDefined, fr.stack,
			"%s: repository %q is not defined in resources.repositories", where, alias)
	}
	if r, ok := x.opts.Repositories.lookup(alias); ok && r.Match.matches(res) {
		dir := x.location(r.Location)
		x.log.Debug("Resolved repository", tag.Repository(alias), tag.Dir(dir))
		return dir, nil
	}
	aliases := make([]string, 0, len(x.opts.Repositories))
	for a := range x.opts.Repositories {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	for _, a := range aliases {
		r := x.opts.Repositories[a]
		if r.Match != (Match{}) && r.Match.matches(res) {
			dir := x.location(r.Location)
			x.log.Debug("Resolved repository by match", tag.Repository(alias), tag.Name(a), tag.Dir(dir))
			return dir, nil
		}
	}
	return "", diag.New(diag.RepositoryNotMapped, fr.stack,
		"%s: repository %q (%s) has no local location", where, alias, describeRepository(res))
}

func (x *expander) location(loc string) string {
	if loc == "" {
		return x.baseDir
	}
	if strings.HasPrefix(loc, "~") {
		return fileutil.ResolvePathOrBlank(loc)
	}
	if !filepath.IsAbs(loc) {
		return filepath.Join(x.baseDir, loc)
	}
	return filepath.Clean(loc)
}

func describeRepository(r repositoryResource) string {
	var parts []string
	if r.Type != "" {
		parts = append(parts, "type "+r.Type)
	}
	if r.Name != "" {
		parts = append(parts, "name "+r.Name)
	}
	if r.Ref != "" {
		parts = append(parts, "ref "+r.Ref)
	}
	if len(parts) == 0 {
		return "no attributes"
	}
	return strings.Join(parts, ", ")
}

// load reads and parses a template, using the cache when configured.
func (x *expander) load(t resolvedTemplate, stack diag.Stack) (*yamlnode.Document, error) {
	parse := func() (*yamlnode.Document, error) {
		data, err := os.ReadFile(t.path) //nolint:gosec
		if err != nil {
			return nil, err
		}
		return yamlnode.Parse(string(data), t.display, false)
	}

	var (
		doc *yamlnode.Document
		err error
	)
	if x.opts.Cache != nil {
		var hit bool
		doc, hit, err = x.opts.Cache.LoadLatest(t.path, parse)
		if hit {
			x.log.Debug("Template cache hit", tag.File(t.display))
		}
	} else {
		doc, err = parse()
	}
	if err != nil {
		var perr *yamlnode.ParseError
		if errors.As(err, &perr) {
			return nil, diag.Wrap(diag.TemplateParseFailure, stack, err, "failed to parse template %s: %v", t.display, err)
		}
		return nil, diag.Wrap(diag.TemplateFileNotFound, stack, err, "failed to read template %s: %v", t.display, err)
	}
	return doc, nil
}

// call loads the template referenced by a "template:" mapping, binds the
// caller's parameters and expands the template body.
func (x *expander) call(ref string, params yamlnode.Node, fr *frame, line int) (*yamlnode.Mapping, error) {
	t, err := x.resolveTemplate(ref, fr, line)
	if err != nil {
		return nil, err
	}
	stack := fr.stack.Push(diag.Frame{File: t.display, Template: ref, Line: line})
	if fr.stack.Contains(t.display) {
		return nil, diag.New(diag.CycleOrDepthExceeded, stack, "circular template reference: %s is already being expanded", t.display)
	}
	if depth := len(stack) - 1; depth > x.opts.maxDepth() {
		return nil, diag.New(diag.CycleOrDepthExceeded, stack, "template nesting exceeds the maximum depth of %d", x.opts.maxDepth())
	}
	x.log.Debug("Expanding template", tag.Template(ref), tag.File(t.display), tag.Depth(len(stack)-1))

	doc, err := x.load(t, stack)
	if err != nil {
		return nil, err
	}
	if !x.opts.SkipSyntaxCheck {
		if err := checkSyntax(doc.Root, t.display, stack); err != nil {
			return nil, err
		}
	}
	tm, ok := doc.Root.(*yamlnode.Mapping)
	if !ok {
		if yamlnode.IsNull(doc.Root) {
			tm = yamlnode.NewMapping()
		} else {
			return nil, diag.New(diag.TemplateParseFailure, stack, "template %s must contain a mapping, got %s", t.display, yamlnode.KindOf(doc.Root))
		}
	}

	decls, err := parseDeclarations(tm.Get("parameters"), t.display, stack)
	if err != nil {
		return nil, err
	}

	callerFrame := *fr
	callerFrame.paramContexts = decls.contexts()
	var supplied *yamlnode.Mapping
	if !yamlnode.IsNull(params) {
		pm, ok := params.(*yamlnode.Mapping)
		if !ok {
			return nil, diag.New(diag.InvalidParameter, stack, "%s: parameters of template %q must be a mapping, got %s",
				fr.location(params.Position()), ref, yamlnode.KindOf(params))
		}
		expanded, err := x.expandMapping(pm, &callerFrame, modeNested)
		if err != nil {
			return nil, err
		}
		if supplied, ok = expanded.(*yamlnode.Mapping); !ok {
			return nil, diag.New(diag.InvalidParameter, stack, "%s: parameters of template %q must be a mapping", fr.location(params.Position()), ref)
		}
	}

	bound, err := decls.bind(supplied, ref, stack)
	if err != nil {
		return nil, err
	}

	callee := &frame{
		stack:     stack,
		file:      t.display,
		dir:       filepath.Dir(t.path),
		repoRoot:  t.repoRoot,
		repoAlias: t.repoAlias,
		scope:     x.globals.Child(map[string]any{"parameters": bound}),
	}
	body, err := x.expandMapping(tm, callee, modeTemplate)
	if err != nil {
		return nil, err
	}
	bm, ok := body.(*yamlnode.Mapping)
	if !ok {
		return nil, diag.New(diag.TemplateParseFailure, stack, "template %s must expand to a mapping", t.display)
	}
	return bm, nil
}

func (x *expander) templateRef(m *yamlnode.Mapping, fr *frame) (string, int, error) {
	e := m.Entry("template")
	line := e.KeyPos.Line
	v, err := x.expandNode(e.Value, fr.plain(), "")
	if err != nil {
		return "", line, err
	}
	ref, ok := yamlnode.StringValue(v)
	if !ok || strings.TrimSpace(ref) == "" {
		return "", line, diag.New(diag.TemplateFileNotFound, fr.stack, "%s: template reference must be a non-empty string", fr.location(e.KeyPos))
	}
	return strings.TrimSpace(ref), line, nil
}

// templateItems expands a template item of a stages, jobs, steps or
// variables sequence into the items it contributes.
func (x *expander) templateItems(m *yamlnode.Mapping, fr *frame, key string) ([]yamlnode.Node, error) {
	ref, line, err := x.templateRef(m, fr)
	if err != nil {
		return nil, err
	}
	body, err := x.call(ref, m.Get("parameters"), fr, line)
	if err != nil {
		return nil, err
	}

	section := body.Get(key)
	if section == nil && !body.Has(key) {
		if body.Len() != 1 {
			return nil, diag.New(diag.TemplateParseFailure, fr.stack.Push(diag.Frame{File: ref, Template: ref, Line: line}),
				"%s: template %q does not define %s", fr.location(yamlnode.Pos{Line: line}), ref, key)
		}
		section = body.Entries[0].Value
	}
	switch v := section.(type) {
	case *yamlnode.Sequence:
		return v.Items, nil
	case *yamlnode.Mapping:
		if key == "variables" {
			return variableItems(v), nil
		}
		return []yamlnode.Node{v}, nil
	default:
		if yamlnode.IsNull(section) {
			return nil, nil
		}
		return nil, diag.New(diag.TemplateParseFailure, fr.stack,
			"%s: %s of template %q must be a sequence, got %s", fr.location(yamlnode.Pos{Line: line}), key, ref, yamlnode.KindOf(section))
	}
}

// variableItems converts the mapping form of variables into name/value
// items so it can be spliced into a variables sequence.
func variableItems(m *yamlnode.Mapping) []yamlnode.Node {
	items := make([]yamlnode.Node, 0, m.Len())
	for _, e := range m.Entries {
		item := yamlnode.NewMapping()
		item.Append("name", yamlnode.NewString(e.Key))
		item.Append("value", e.Value)
		items = append(items, item)
	}
	return items
}

// extends replaces the root extends key with the top-level keys of the
// referenced template.
func (x *expander) extends(e *yamlnode.Entry, fr *frame, out *yamlnode.Mapping) error {
	m, ok := e.Value.(*yamlnode.Mapping)
	if !ok || !m.Has("template") {
		return diag.New(diag.TemplateFileNotFound, fr.stack, "%s: extends requires a template", fr.location(e.KeyPos))
	}
	ref, line, err := x.templateRef(m, fr)
	if err != nil {
		return err
	}
	body, err := x.call(ref, m.Get("parameters"), fr, line)
	if err != nil {
		return err
	}
	for _, be := range body.Entries {
		if err := x.add(out, be.Key, be.Value, fr, yamlnode.Pos{Line: line}); err != nil {
			return err
		}
	}
	return nil
}

// bindRootParameters binds Options.Parameters to the root declarations.
func (x *expander) bindRootParameters(root *yamlnode.Mapping, fr *frame) (*expr.Object, error) {
	decls, err := parseDeclarations(root.Get("parameters"), x.rootName, fr.stack)
	if err != nil {
		return nil, err
	}
	var supplied *yamlnode.Mapping
	if len(x.opts.Parameters) > 0 {
		n, err := yamlnode.FromValue(x.opts.Parameters)
		if err != nil {
			return nil, fmt.Errorf("invalid parameter overrides: %w", err)
		}
		supplied = n.(*yamlnode.Mapping)
	}
	return decls.bind(supplied, x.rootName, fr.stack)
}
