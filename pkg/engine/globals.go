package engine

import (
	"context"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/builtins"
	"github.com/walteh/luals/pkg/uri"
)

// Wildcard matches every global name.
const Wildcard = "*"

// testSpecPatterns match files that get the test runner's globals.
var testSpecPatterns = []string{
	"**/*.spec.{lua,luau}",
	"**/*.spec/init.{lua,luau}",
}

// IsTestSpec reports whether u names a test spec file.
func IsTestSpec(u string) bool {
	p := strings.TrimPrefix(uri.Decode(u), "/")
	for _, pattern := range testSpecPatterns {
		if ok, _ := doublestar.Match(pattern, p); ok {
			return true
		}
	}
	return false
}

// nodeSet accumulates nodes in order, de-duplicated by identity.
type nodeSet struct {
	key   string
	seen  map[*ast.Node]bool
	bound map[string]bool
	nodes []*ast.Node
}

func newNodeSet(key string) *nodeSet {
	return &nodeSet{key: key, seen: map[*ast.Node]bool{}, bound: map[string]bool{}}
}

// addOwn adds a file's own globals. A read of a name an earlier source
// already binds is a use of that binding, not a binding of its own.
func (ns *nodeSet) addOwn(nodes ...*ast.Node) {
	for _, n := range nodes {
		if n != nil && n.Kind == ast.GetGlobal && ns.bound[n.Name] {
			continue
		}
		ns.add(n)
	}
}

func (ns *nodeSet) add(nodes ...*ast.Node) {
	for _, n := range nodes {
		if n == nil || ns.seen[n] {
			continue
		}
		if ns.key != Wildcard && n.Name != ns.key {
			continue
		}
		ns.seen[n] = true
		ns.bound[n.Name] = true
		ns.nodes = append(ns.nodes, n)
	}
}

// Globals returns the global bindings named key (or all of them for
// Wildcard) visible from the file u. Sources are merged in a fixed order:
// runtime globals, configured globals, import aliases, globals of imported
// files, globals of dynamically loaded files, the file's own globals and,
// for test specs, the test runner's globals. With onlySet the file's own
// globals are limited to assignments. Reads in the file of a name an earlier
// source binds are left out.
func (s *Session) Globals(ctx context.Context, key string, u string, onlySet bool) []*ast.Node {
	if key == "" {
		key = Wildcard
	}
	if u != "" {
		u = uri.Canonical(u)
	}
	out := newNodeSet(key)

	out.add(s.envGlobals(u)...)
	out.add(s.configGlobals()...)

	if u != "" {
		if file, ok := s.store.GetAST(ctx, u); ok {
			out.add(s.importAliases(file)...)

			visited := map[string]bool{u: true}
			for _, target := range s.importTargets(ctx, file) {
				globals, err := s.loadImportedGlobals(ctx, target, visited)
				if err != nil {
					zerolog.Ctx(ctx).Debug().Err(err).Str("uri", u).Str("import", target).Msg("import contributed no globals")
				}
				out.add(globals...)
			}
			for _, target := range s.dynamicTargets(file) {
				globals, err := s.loadImportedGlobals(ctx, target, visited)
				if err != nil {
					zerolog.Ctx(ctx).Debug().Err(err).Str("uri", u).Str("load", target).Msg("dynamic load contributed no globals")
				}
				out.add(globals...)
			}

			own := s.ownGlobals(file)
			if onlySet {
				out.addOwn(own.sets...)
			} else {
				out.addOwn(own.all...)
			}
		}

		if IsTestSpec(u) {
			out.add(s.testGlobals()...)
		}
	}

	return out.nodes
}

// Origin names where a global binding comes from.
func Origin(g *ast.Node) string {
	switch g.Special {
	case ast.SpecialEnv:
		return "runtime global"
	case ast.SpecialConfig:
		return "configured global"
	case ast.SpecialImport:
		return "imported module"
	case ast.SpecialTest:
		return "test global"
	}
	if g.File != nil && g.File.URI != "" {
		return "global in " + g.File.URI
	}
	return "global"
}

func virtual(name, special string) *ast.Node {
	return &ast.Node{Kind: ast.Virtual, Name: name, Special: special}
}

// envGlobals returns the runtime globals, with per-file nodes for the
// context-sensitive names.
func (s *Session) envGlobals(u string) []*ast.Node {
	s.envMu.Lock()
	defer s.envMu.Unlock()

	out := make([]*ast.Node, 0, len(s.tables.Environment)+len(s.tables.Context))
	for _, g := range s.tables.Environment {
		n, ok := s.env[g.Name]
		if !ok {
			n = virtual(g.Name, ast.SpecialEnv)
			s.env[g.Name] = n
		}
		out = append(out, n)
	}

	perFile, ok := s.contextual[u]
	if !ok {
		perFile = map[string]*ast.Node{}
		s.contextual[u] = perFile
	}
	for _, g := range s.tables.Context {
		n, ok := perFile[g.Name]
		if !ok {
			n = virtual(g.Name, ast.SpecialEnv)
			n.URI = u
			perFile[g.Name] = n
		}
		out = append(out, n)
	}
	return out
}

// configGlobals returns zero-span placeholders for configured names, one
// stable node per name.
func (s *Session) configGlobals() []*ast.Node {
	names := s.Config().Globals

	s.envMu.Lock()
	defer s.envMu.Unlock()

	out := make([]*ast.Node, 0, len(names))
	for _, name := range names {
		n, ok := s.configured[name]
		if !ok {
			n = virtual(name, ast.SpecialConfig)
			s.configured[name] = n
		}
		out = append(out, n)
	}
	return out
}

func (s *Session) testGlobals() []*ast.Node {
	s.envMu.Lock()
	defer s.envMu.Unlock()

	out := make([]*ast.Node, 0, len(s.tables.Test))
	for _, g := range s.tables.Test {
		n, ok := s.tests[g.Name]
		if !ok {
			n = virtual(g.Name, ast.SpecialTest)
			s.tests[g.Name] = n
		}
		out = append(out, n)
	}
	return out
}

// builtin returns the table entry behind a runtime or test virtual node.
func (s *Session) builtin(n *ast.Node) (*builtins.Global, bool) {
	if n.Kind != ast.Virtual {
		return nil, false
	}
	switch n.Special {
	case ast.SpecialEnv, ast.SpecialTest:
		return s.tables.Lookup(n.Name)
	}
	return nil, false
}

// memberNode returns the stable virtual node for a field of a builtin table.
func (s *Session) memberNode(owner *ast.Node, field string) *ast.Node {
	key := owner.Name + "." + field
	s.envMu.Lock()
	defer s.envMu.Unlock()
	n, ok := s.members[key]
	if !ok {
		n = virtual(field, owner.Special)
		s.members[key] = n
	}
	return n
}

// importAliases returns the virtual bindings of the file's aliased import
// annotations. The index is built once per file version; a later annotation
// with the same alias wins.
func (s *Session) importAliases(file *ast.File) []*ast.Node {
	return s.aliasIndex(file).nodes
}

// AliasDoc returns the import annotation registered for alias in file.
func (s *Session) AliasDoc(file *ast.File, alias string) (*ast.Doc, bool) {
	doc, ok := s.aliasIndex(file).docs[alias]
	return doc, ok
}

func (s *Session) aliasIndex(file *ast.File) *aliasEntry {
	u := file.URI

	s.aliasMu.Lock()
	entry, ok := s.aliases[u]
	s.aliasMu.Unlock()
	if ok && entry.file == file {
		return entry
	}

	gen := s.gen(u)

	entry = &aliasEntry{file: file, docs: map[string]*ast.Doc{}}
	var order []string
	for _, doc := range file.Imports() {
		if doc.Alias == "" {
			continue
		}
		if _, seen := entry.docs[doc.Alias]; !seen {
			order = append(order, doc.Alias)
		}
		entry.docs[doc.Alias] = doc
	}
	for _, alias := range order {
		doc := entry.docs[alias]
		n := virtual(alias, ast.SpecialImport)
		n.Doc = doc
		n.URI = u
		n.File = file
		n.Start = doc.Start
		n.Finish = doc.Finish
		entry.nodes = append(entry.nodes, n)
	}

	s.aliasMu.Lock()
	defer s.aliasMu.Unlock()
	if current, ok := s.aliases[u]; ok && current.file == file {
		// another request finished first; keep its nodes stable
		return current
	}
	if s.gen(u) == gen {
		s.aliases[u] = entry
	}
	return entry
}

// ownGlobals returns the global reads and writes in the file itself.
func (s *Session) ownGlobals(file *ast.File) *ownEntry {
	u := file.URI

	s.ownMu.Lock()
	entry, ok := s.own[u]
	s.ownMu.Unlock()
	if ok && entry.file == file {
		return entry
	}

	gen := s.gen(u)
	entry = &ownEntry{file: file}
	ast.Walk(file.Root, func(n *ast.Node) bool {
		switch n.Kind {
		case ast.SetGlobal:
			entry.all = append(entry.all, n)
			entry.sets = append(entry.sets, n)
		case ast.GetGlobal:
			entry.all = append(entry.all, n)
		}
		return true
	})

	if s.gen(u) == gen {
		s.ownMu.Lock()
		s.own[u] = entry
		s.ownMu.Unlock()
	}
	return entry
}
