package engine

import (
	"context"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/uri"
)

// importExtensions are tried in order after the bare path.
var importExtensions = []string{"", ".lua", ".luau"}

// ResolveImportPath resolves an import annotation path relative to the file
// u. Paths climbing out with `..`, drive-letter and UNC paths are rejected
// without touching the store. A leading `/` is resolved against the
// workspace root when absolute imports are enabled. The bare path is tried
// first, then with `.lua`, then with `.luau`.
func (s *Session) ResolveImportPath(u string, importPath string) (string, bool) {
	p := strings.TrimSpace(importPath)
	if p == "" {
		return "", false
	}
	p = strings.ReplaceAll(p, `\`, "/")

	if strings.HasPrefix(p, "//") || hasDriveLetter(p) {
		return "", false
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", false
		}
	}

	var base string
	if strings.HasPrefix(p, "/") {
		cfg := s.Config()
		if !cfg.AllowAbsoluteImports || cfg.WorkspaceRoot == "" {
			return "", false
		}
		base = uri.Normalize(cfg.WorkspaceRoot)
		p = strings.TrimLeft(p, "/")
	} else {
		base = path.Dir(uri.Decode(u))
	}

	candidate := uri.Normalize(path.Join(base, p))
	if candidate != base && !strings.HasPrefix(candidate, strings.TrimSuffix(base, "/")+"/") {
		return "", false
	}

	for _, ext := range importExtensions {
		target := uri.Encode(candidate + ext)
		if s.store.Exists(target) {
			return target, true
		}
	}
	return "", false
}

func hasDriveLetter(p string) bool {
	if len(p) < 2 || p[1] != ':' {
		return false
	}
	c := p[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// DynamicLoad is a `loadstring(readfile("<path>"))` occurrence in a local
// initializer, invoked or not.
type DynamicLoad struct {
	Path string
	// Local is the declaring statement and Literal the path string node.
	Local   *ast.Node
	Literal *ast.Node
}

// DynamicLoads finds the dynamic-load pattern in every local declaration.
func DynamicLoads(file *ast.File) []DynamicLoad {
	var out []DynamicLoad
	ast.Walk(file.Root, func(n *ast.Node) bool {
		if n.Kind != ast.Local || n.Value == nil {
			return true
		}
		if lit, ok := MatchDynamicLoad(n.Value); ok {
			out = append(out, DynamicLoad{Path: lit.Literal, Local: n, Literal: lit})
		}
		return true
	})
	return out
}

// MatchDynamicLoad matches `loadstring(readfile(<string>))`, optionally
// followed by a call, and returns the string literal.
func MatchDynamicLoad(n *ast.Node) (*ast.Node, bool) {
	n = ast.Unparen(n)
	if n == nil || n.Kind != ast.Call {
		return nil, false
	}
	if lit, ok := matchLoadstring(n); ok {
		return lit, true
	}
	if len(n.Args) == 0 {
		return matchLoadstring(ast.Unparen(n.Node))
	}
	return nil, false
}

func matchLoadstring(call *ast.Node) (*ast.Node, bool) {
	inner, ok := matchGlobalCall(call, "loadstring")
	if !ok {
		return nil, false
	}
	lit, ok := matchGlobalCall(ast.Unparen(inner), "readfile")
	if !ok {
		return nil, false
	}
	lit = ast.Unparen(lit)
	if lit.Kind != ast.String {
		return nil, false
	}
	return lit, true
}

// matchGlobalCall matches `name(arg)` where name is a global and returns arg.
func matchGlobalCall(call *ast.Node, name string) (*ast.Node, bool) {
	if call == nil || call.Kind != ast.Call || call.Method || len(call.Args) != 1 {
		return nil, false
	}
	callee := ast.Unparen(call.Node)
	if callee == nil || callee.Kind != ast.GetGlobal || callee.Name != name {
		return nil, false
	}
	return call.Args[0], true
}

// importTargets resolves every import annotation of the file, aliased or
// not, skipping paths that do not resolve.
func (s *Session) importTargets(ctx context.Context, file *ast.File) []string {
	var out []string
	for _, doc := range file.Imports() {
		target, ok := s.ResolveImportPath(file.URI, doc.Path)
		if !ok {
			if doc.Path != "" {
				zerolog.Ctx(ctx).Trace().Str("uri", file.URI).Str("path", doc.Path).Msg("unresolved import")
			}
			continue
		}
		out = append(out, target)
	}
	return out
}

func (s *Session) dynamicTargets(file *ast.File) []string {
	var out []string
	for _, dl := range DynamicLoads(file) {
		if target, ok := s.ResolveImportPath(file.URI, dl.Path); ok {
			out = append(out, target)
		}
	}
	return out
}

// loadImportedGlobals returns the globals declared by target and, through
// its own imports, by every file reachable from it. Files already in visited
// contribute nothing, which stops import cycles. Per-file results come from
// the LRU; a file that fails to load is memoized as empty.
func (s *Session) loadImportedGlobals(ctx context.Context, target string, visited map[string]bool) ([]*ast.Node, error) {
	target = uri.Canonical(target)
	if visited[target] {
		return nil, nil
	}
	visited[target] = true

	own, file, err := s.fileGlobals(ctx, target)
	if err != nil {
		return nil, err
	}

	out := append([]*ast.Node(nil), own...)
	if file == nil {
		return out, nil
	}

	targets := append(s.importTargets(ctx, file), s.dynamicTargets(file)...)
	for _, next := range targets {
		globals, err := s.loadImportedGlobals(ctx, next, visited)
		if err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Str("uri", target).Str("import", next).Msg("nested import contributed no globals")
			continue
		}
		out = append(out, globals...)
	}
	return out, nil
}

// fileGlobals returns the declared globals of a single file, using the LRU.
func (s *Session) fileGlobals(ctx context.Context, target string) (globals []*ast.Node, file *ast.File, err error) {
	// a nil snapshot records a failed load
	if cached, ok := s.imports.Get(target); ok {
		if cached == nil {
			return nil, nil, nil
		}
		file, _ := s.store.GetAST(ctx, target)
		return cached, file, nil
	}

	globals, file, gen, err := s.collectFileGlobals(ctx, target)
	if err != nil {
		globals, file = nil, nil
	}

	if s.gen(target) == gen {
		s.imports.Add(target, globals)
	}
	return globals, file, err
}

// collectFileGlobals also returns the generation the snapshot was taken at.
// It is read after the load so that registering an unknown file does not
// count as an edit.
func (s *Session) collectFileGlobals(ctx context.Context, target string) (globals []*ast.Node, file *ast.File, gen uint64, err error) {
	gen = s.gen(target)

	defer func() {
		if r := recover(); r != nil {
			globals, file = nil, nil
			err = errors.Errorf("loading globals of %s: %v", target, r)
		}
	}()

	file, ok := s.load(ctx, target)
	gen = s.gen(target)
	if !ok {
		return nil, nil, gen, errors.Errorf("loading %s: no syntax tree", target)
	}
	own := s.ownGlobals(file)
	return append([]*ast.Node{}, own.sets...), file, gen, nil
}

// load returns the syntax tree of target. A file the store does not know
// but that exists on the backing filesystem is read and registered first.
func (s *Session) load(ctx context.Context, target string) (*ast.File, bool) {
	if file, ok := s.store.GetAST(ctx, target); ok {
		return file, true
	}
	if s.fs == nil {
		return nil, false
	}
	data, err := afero.ReadFile(s.fs, uri.Decode(target))
	if err != nil {
		return nil, false
	}
	s.store.SetText(ctx, target, string(data), false)
	return s.store.GetAST(ctx, target)
}

// ImportCacheKeys lists the URIs held by the cross-file cache, oldest first.
func (s *Session) ImportCacheKeys() []string {
	return s.imports.Keys()
}
