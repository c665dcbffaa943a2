package engine

import (
	"context"

	"github.com/walteh/luals/pkg/ast"
)

// Field is a member discovered on a value.
type Field struct {
	Name string
	// Node is the defining node: a member assignment, a table entry or a
	// virtual node for runtime and global members.
	Node *ast.Node
	// FromImport marks fields that came from an imported module's exports.
	FromImport bool
	// URI is the file the defining node lives in, empty for virtual nodes.
	URI string
}

// FieldOptions select how fields are tracked.
type FieldOptions struct {
	// OnlyDefinitions skips merging the exports of associated imports.
	OnlyDefinitions bool
}

// envRoots name the environment table; their fields are the globals.
var envRoots = map[string]bool{"_G": true, "_ENV": true}

type fieldSet struct {
	seen   map[*ast.Node]bool
	fields []*Field
}

func newFieldSet() *fieldSet {
	return &fieldSet{seen: map[*ast.Node]bool{}}
}

func (fs *fieldSet) add(f *Field) {
	if f == nil || f.Node == nil || fs.seen[f.Node] {
		return
	}
	fs.seen[f.Node] = true
	if f.URI == "" {
		f.URI = nodeURI(f.Node)
	}
	fs.fields = append(fs.fields, f)
}

func nodeURI(n *ast.Node) string {
	if n.File != nil {
		return n.File.URI
	}
	return n.URI
}

// walker carries the per-request state of one field resolution.
type walker struct {
	s         *Session
	ctx       context.Context
	opts      FieldOptions
	visiting  map[*ast.Node]bool
	exporting map[string]bool
}

func (s *Session) newWalker(ctx context.Context, opts FieldOptions) *walker {
	return &walker{
		s:         s,
		ctx:       ctx,
		opts:      opts,
		visiting:  map[*ast.Node]bool{},
		exporting: map[string]bool{},
	}
}

// Fields returns the members of the value of node, tracking assignments up to
// depth levels of indirection (the configured search depth when depth <= 0).
// Results are cached per node and options; a deeper request recomputes.
func (s *Session) Fields(ctx context.Context, node *ast.Node, depth int, opts FieldOptions) []*Field {
	if node == nil {
		return nil
	}
	if depth <= 0 {
		depth = s.searchDepth()
	}
	if err := Yield(ctx); err != nil {
		return nil
	}

	key := fieldKey{node: node, opts: opts}
	s.fieldMu.Lock()
	entry, ok := s.fields[key]
	epoch := s.fieldEpoch
	s.fieldMu.Unlock()
	if ok && entry.depth >= depth {
		return entry.fields
	}

	out := newFieldSet()
	s.newWalker(ctx, opts).fields(node, depth, out)

	s.fieldMu.Lock()
	if s.fieldEpoch == epoch {
		s.fields[key] = &fieldEntry{depth: depth, fields: out.fields}
	}
	s.fieldMu.Unlock()

	return out.fields
}

// ImportedExports returns the exports of the module source was imported
// from: a virtual import alias, a local annotated with `---@import` (or
// initialized by a dynamic load), or a global named like an import alias of
// its file. The boolean is false when source is not bound to an exporting
// module.
func (s *Session) ImportedExports(ctx context.Context, source *ast.Node) ([]*Field, bool) {
	if source == nil {
		return nil, false
	}
	return s.newWalker(ctx, FieldOptions{}).importExports(source)
}

func isEnvRoot(n *ast.Node) bool {
	switch n.Kind {
	case ast.GetGlobal, ast.SetGlobal:
		return envRoots[n.Name]
	case ast.Virtual:
		return n.Special == ast.SpecialEnv && envRoots[n.Name]
	}
	return false
}

func (w *walker) fields(node *ast.Node, depth int, out *fieldSet) {
	n := ast.Unparen(node)
	if n == nil || depth <= 0 || w.visiting[n] {
		return
	}
	if w.ctx.Err() != nil {
		return
	}
	w.visiting[n] = true
	defer delete(w.visiting, n)

	if isEnvRoot(n) {
		for _, g := range w.s.Globals(w.ctx, Wildcard, nodeURI(n), false) {
			out.add(&Field{Name: g.Name, Node: g})
		}
		return
	}

	switch n.Kind {
	case ast.Virtual:
		if n.IsImport() {
			w.addExports(n, out)
			return
		}
		if g, ok := w.s.builtin(n); ok {
			for _, name := range g.Fields {
				out.add(&Field{Name: name, Node: w.s.memberNode(n, name)})
			}
		}
		return
	case ast.Table:
		tableFields(n, out)
		return
	case ast.Call:
		w.callFields(n, depth, out)
		return
	case ast.Function, ast.String, ast.Number, ast.Boolean, ast.Nil, ast.Varargs,
		ast.Binary, ast.Unary, ast.Dummy:
		return
	}

	if n.Kind == ast.GetGlobal || n.Kind == ast.SetGlobal {
		for _, g := range w.s.Globals(w.ctx, n.Name, nodeURI(n), false) {
			if g.Kind == ast.Virtual {
				w.fields(g, depth, out)
			}
		}
	}

	for _, site := range w.sites(n) {
		w.memberSets(site, depth, out)
	}
	for _, v := range w.values(n, depth) {
		// table constructors are read in place and cost no depth
		if t := ast.Unparen(v); t != nil && t.Kind == ast.Table {
			tableFields(t, out)
			continue
		}
		w.fields(v, depth-1, out)
	}

	if !w.opts.OnlyDefinitions {
		w.addExports(n, out)
	}
}

func (w *walker) addExports(n *ast.Node, out *fieldSet) {
	exports, ok := w.importExports(n)
	if !ok {
		return
	}
	for _, f := range exports {
		out.add(f)
	}
}

func fieldName(member *ast.Node) (string, bool) {
	switch member.Kind {
	case ast.SetField, ast.SetMethod, ast.TableField:
		return member.Name, member.Name != ""
	case ast.SetIndex, ast.TableIndex:
		if idx := ast.Unparen(member.Index); idx != nil && idx.Kind == ast.String {
			return idx.Literal, true
		}
	}
	return "", false
}

func tableFields(t *ast.Node, out *fieldSet) {
	for _, entry := range t.Exprs {
		if name, ok := fieldName(entry); ok {
			out.add(&Field{Name: name, Node: entry})
		}
	}
}

// memberSets adds the member assignments made on site, such as `site.x = 1`
// and, for methods declared on site, the `self.x = 1` assignments inside.
func (w *walker) memberSets(site *ast.Node, depth int, out *fieldSet) {
	p := site.Parent
	if p == nil || p.Node != site {
		return
	}
	switch p.Kind {
	case ast.SetField, ast.SetMethod, ast.SetIndex:
	default:
		return
	}
	name, ok := fieldName(p)
	if !ok {
		return
	}
	out.add(&Field{Name: name, Node: p})

	fn := ast.Unparen(p.Value)
	if depth > 1 && fn != nil && fn.Kind == ast.Function && fn.Method && len(fn.Params) > 0 {
		self := fn.Params[0]
		for _, ref := range self.Refs {
			w.memberSets(ref, depth-1, out)
		}
	}
}

func isMember(n *ast.Node) bool {
	switch n.Kind {
	case ast.GetField, ast.SetField, ast.GetMethod, ast.SetMethod:
		return true
	}
	return false
}

// sites returns the nodes that read or write the same location as n.
func (w *walker) sites(n *ast.Node) []*ast.Node {
	switch n.Kind {
	case ast.Local:
		return n.Refs
	case ast.GetLocal, ast.SetLocal:
		if n.Ref != nil {
			return n.Ref.Refs
		}
	case ast.GetGlobal, ast.SetGlobal:
		return w.globalSites(n)
	case ast.GetField, ast.SetField, ast.GetMethod, ast.SetMethod:
		base := ast.Unparen(n.Node)
		if base == nil {
			break
		}
		var out []*ast.Node
		for _, site := range w.sites(base) {
			p := site.Parent
			if p != nil && p.Node == site && isMember(p) && p.Name == n.Name {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return []*ast.Node{n}
}

// globalSites returns the parsed reads and writes of the global named by n
// visible from n's file, including assignments in imported files. Reads in
// n's own file count even when the name is bound elsewhere, so `Game.x = 1`
// extends a configured Game.
func (w *walker) globalSites(n *ast.Node) []*ast.Node {
	var out []*ast.Node
	seen := map[*ast.Node]bool{}
	for _, g := range w.s.Globals(w.ctx, n.Name, nodeURI(n), false) {
		if g.Kind == ast.GetGlobal || g.Kind == ast.SetGlobal {
			seen[g] = true
			out = append(out, g)
		}
	}
	if n.File != nil {
		for _, g := range w.s.ownGlobals(n.File).all {
			if g.Name == n.Name && !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	if len(out) == 0 {
		out = append(out, n)
	}
	return out
}

// values returns the expressions assigned to the location of n.
func (w *walker) values(n *ast.Node, depth int) []*ast.Node {
	var out []*ast.Node
	switch n.Kind {
	case ast.Local:
		if n.Value != nil {
			out = append(out, n.Value)
		}
		for _, ref := range n.Refs {
			if ref.Kind == ast.SetLocal && ref.Value != nil {
				out = append(out, ref.Value)
			}
		}
	case ast.GetLocal, ast.SetLocal:
		if n.Ref != nil {
			return w.values(n.Ref, depth)
		}
	case ast.GetGlobal, ast.SetGlobal:
		for _, site := range w.globalSites(n) {
			if site.Kind == ast.SetGlobal && site.Value != nil {
				out = append(out, site.Value)
			}
		}
	case ast.GetField, ast.SetField, ast.GetMethod, ast.SetMethod:
		seen := map[*ast.Node]bool{}
		for _, site := range w.sites(n) {
			if site.IsSet() && site.Value != nil && !seen[site.Value] {
				seen[site.Value] = true
				out = append(out, site.Value)
			}
		}
		// entries of the parent's table constructors and imported members
		parent := newFieldSet()
		w.fields(n.Node, depth-1, parent)
		for _, f := range parent.fields {
			if f.Name == n.Name && f.Node.Value != nil && !seen[f.Node.Value] {
				seen[f.Node.Value] = true
				out = append(out, f.Node.Value)
			}
		}
	case ast.TableField, ast.TableIndex:
		if n.Value != nil {
			out = append(out, n.Value)
		}
	}
	return out
}

// callFields resolves the fields of a call's result.
func (w *walker) callFields(call *ast.Node, depth int, out *fieldSet) {
	if lit, ok := MatchDynamicLoad(call); ok && call.File != nil {
		exports, ok := w.exportsOfPath(lit.Literal, call.File.URI)
		if ok {
			for _, f := range exports {
				out.add(f)
			}
		}
		return
	}

	callee := ast.Unparen(call.Node)
	if callee == nil {
		return
	}
	if callee.Kind == ast.GetGlobal && callee.Name == "setmetatable" && len(call.Args) > 0 {
		w.fields(call.Args[0], depth-1, out)
		return
	}

	for _, v := range w.values(callee, depth-1) {
		fn := ast.Unparen(v)
		if fn == nil || fn.Kind != ast.Function {
			continue
		}
		for _, ret := range functionReturns(fn) {
			if len(ret.Exprs) > 0 {
				w.fields(ret.Exprs[0], depth-1, out)
			}
		}
	}
}

// functionReturns collects the return statements of fn, skipping nested
// functions.
func functionReturns(fn *ast.Node) []*ast.Node {
	var out []*ast.Node
	for _, stmt := range fn.Body {
		out = append(out, ast.Returns(stmt)...)
	}
	return out
}

// importExports finds the import bound to n, or failing that to one of its
// direct definitions, and returns that module's exports.
func (w *walker) importExports(n *ast.Node) ([]*Field, bool) {
	if exports, ok := w.directImport(n); ok {
		return exports, true
	}
	for _, v := range w.values(n, 1) {
		if exports, ok := w.directImport(v); ok {
			return exports, true
		}
	}
	return nil, false
}

func (w *walker) directImport(node *ast.Node) ([]*Field, bool) {
	n := ast.Unparen(node)
	if n == nil {
		return nil, false
	}
	switch {
	case n.IsImport():
		if n.Doc == nil {
			return nil, false
		}
		return w.exportsOfPath(n.Doc.Path, n.URI)
	case n.Kind == ast.Local:
		if n.File == nil {
			return nil, false
		}
		for _, doc := range n.File.DocsOf(n) {
			if doc.Kind == ast.DocImport && doc.Path != "" {
				return w.exportsOfPath(doc.Path, n.File.URI)
			}
		}
	case n.Kind == ast.GetLocal || n.Kind == ast.SetLocal:
		if n.Ref != nil {
			return w.directImport(n.Ref)
		}
	case n.Kind == ast.GetGlobal || n.Kind == ast.SetGlobal:
		if n.File == nil {
			return nil, false
		}
		if doc, ok := w.s.AliasDoc(n.File, n.Name); ok {
			return w.exportsOfPath(doc.Path, n.File.URI)
		}
	case n.Kind == ast.Call:
		if lit, ok := MatchDynamicLoad(n); ok && n.File != nil {
			return w.exportsOfPath(lit.Literal, n.File.URI)
		}
	}
	return nil, false
}

// exportsOfPath resolves importPath from the file from and returns the fields
// of every value the target returns at top level. An unresolvable path, a
// module returning nothing with fields, or an import cycle yields false.
func (w *walker) exportsOfPath(importPath string, from string) ([]*Field, bool) {
	target, ok := w.s.ResolveImportPath(from, importPath)
	if !ok || w.exporting[target] {
		return nil, false
	}
	w.exporting[target] = true
	defer delete(w.exporting, target)

	if err := Yield(w.ctx); err != nil {
		return nil, false
	}

	file, ok := w.s.load(w.ctx, target)
	if !ok {
		return nil, false
	}

	defs := *w
	defs.opts = FieldOptions{OnlyDefinitions: true}
	depth := w.s.searchDepth()

	out := newFieldSet()
	for _, ret := range ast.Returns(file.Root) {
		for _, expr := range ret.Exprs {
			e := ast.Unparen(expr)
			if e.Kind == ast.GetLocal && e.Ref != nil {
				e = e.Ref
			}
			found := newFieldSet()
			defs.fields(e, depth, found)
			for _, f := range found.fields {
				cp := *f
				cp.FromImport = true
				out.add(&cp)
			}
		}
	}
	if len(out.fields) == 0 {
		return nil, false
	}
	return out.fields, true
}
