package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/config"
)

func findNode(t *testing.T, file *ast.File, kind ast.Kind, name string) *ast.Node {
	t.Helper()
	n := ast.Find(file.Root, func(n *ast.Node) bool { return n.Kind == kind && n.Name == name })
	require.NotNil(t, n, "%s %q", kind, name)
	return n
}

func TestFields_LocalTable(t *testing.T) {
	w := newWorkspace(t, nil, map[string]string{
		"/ws/main.lua": `local M = { a = 1, ["b"] = 2, 3 }
M.c = 1
M[1] = 2
function M.d() end
function M:e()
	self.f = 1
end
return M`,
	})
	ctx := context.Background()
	file := w.file(t, mainURI)

	local := findNode(t, file, ast.Local, "M")
	fields := w.session.Fields(ctx, local, 0, FieldOptions{})
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e", "f"}, fieldNames(fields))
	for _, f := range fields {
		assert.False(t, f.FromImport, f.Name)
		assert.Equal(t, mainURI, f.URI, f.Name)
	}

	// a read of the same local resolves to the same members
	ref := local.Refs[len(local.Refs)-1]
	assert.ElementsMatch(t, fieldNames(fields), fieldNames(w.session.Fields(ctx, ref, 0, FieldOptions{})))
}

func TestFields_GlobalTableAcrossFiles(t *testing.T) {
	w := newWorkspace(t, nil, map[string]string{
		"/ws/main.lua": `---@import "./lib1.lua"
Config.extra = true
print(Config)`,
		"/ws/lib1.lua": `Config = { debug = false }`,
	})
	ctx := context.Background()
	file := w.file(t, mainURI)

	read := ast.Find(file.Root, func(n *ast.Node) bool {
		return n.Kind == ast.GetGlobal && n.Name == "Config" && n.Parent.Kind == ast.Call
	})
	require.NotNil(t, read)

	fields := w.session.Fields(ctx, read, 0, FieldOptions{})
	assert.ElementsMatch(t, []string{"debug", "extra"}, fieldNames(fields))

	byName := map[string]*Field{}
	for _, f := range fields {
		byName[f.Name] = f
	}
	assert.Equal(t, libURI, byName["debug"].URI)
	assert.Equal(t, mainURI, byName["extra"].URI)
}

func TestFields_ConfiguredGlobalExtendedInFile(t *testing.T) {
	cfg := config.Default("/ws")
	cfg.Globals = []string{"Game"}
	w := newWorkspace(t, cfg, map[string]string{
		"/ws/main.lua": `Game.score = 0
print(Game)`,
	})
	file := w.file(t, mainURI)

	read := ast.Find(file.Root, func(n *ast.Node) bool {
		return n.Kind == ast.GetGlobal && n.Name == "Game" && n.Parent.Kind == ast.Call
	})
	require.NotNil(t, read)

	fields := w.session.Fields(context.Background(), read, 0, FieldOptions{})
	assert.Equal(t, []string{"score"}, fieldNames(fields))
}

func TestFields_EnvironmentTable(t *testing.T) {
	w := newWorkspace(t, nil, map[string]string{
		"/ws/main.lua": `Mine = 1
print(_G)`,
	})
	file := w.file(t, mainURI)
	root := findNode(t, file, ast.GetGlobal, "_G")

	got := fieldNames(w.session.Fields(context.Background(), root, 0, FieldOptions{}))
	assert.Contains(t, got, "Mine")
	assert.Contains(t, got, "print")
	assert.Contains(t, got, "math")
}

func TestFields_BuiltinLibrary(t *testing.T) {
	w := newWorkspace(t, nil, map[string]string{
		"/ws/main.lua": `local a = math.floor
local b = math`,
	})
	ctx := context.Background()
	file := w.file(t, mainURI)

	var reads []*ast.Node
	ast.Walk(file.Root, func(n *ast.Node) bool {
		if n.Kind == ast.GetGlobal && n.Name == "math" {
			reads = append(reads, n)
		}
		return true
	})
	require.Len(t, reads, 2)

	first := w.session.Fields(ctx, reads[0], 0, FieldOptions{})
	second := w.session.Fields(ctx, reads[1], 0, FieldOptions{})
	assert.Contains(t, fieldNames(first), "floor")
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Same(t, first[i].Node, second[i].Node)
		assert.Equal(t, ast.Virtual, first[i].Node.Kind)
	}

	// fields flow through a local alias of the library
	b := findNode(t, file, ast.Local, "b")
	assert.Contains(t, fieldNames(w.session.Fields(ctx, b, 0, FieldOptions{})), "floor")
}

func TestFields_SearchDepth(t *testing.T) {
	w := newWorkspace(t, nil, map[string]string{
		"/ws/main.lua": `local a = { x = 1 }
local b = a
local c = b
return c`,
	})
	ctx := context.Background()
	c := findNode(t, w.file(t, mainURI), ast.Local, "c")

	assert.Empty(t, w.session.Fields(ctx, c, 2, FieldOptions{}))
	assert.Equal(t, []string{"x"}, fieldNames(w.session.Fields(ctx, c, 3, FieldOptions{})))
	// a shallower request is served by the deeper result
	assert.Equal(t, []string{"x"}, fieldNames(w.session.Fields(ctx, c, 2, FieldOptions{})))
}

func TestFields_FunctionResults(t *testing.T) {
	w := newWorkspace(t, nil, map[string]string{
		"/ws/main.lua": `local function new()
	local obj = { name = "x" }
	return obj
end
local inst = new()
local meta = setmetatable({ size = 1 }, {})`,
	})
	ctx := context.Background()
	file := w.file(t, mainURI)

	assert.Equal(t, []string{"name"}, fieldNames(w.session.Fields(ctx, findNode(t, file, ast.Local, "inst"), 0, FieldOptions{})))
	assert.Equal(t, []string{"size"}, fieldNames(w.session.Fields(ctx, findNode(t, file, ast.Local, "meta"), 0, FieldOptions{})))
}

func TestFields_ImportedLocal(t *testing.T) {
	w := newWorkspace(t, nil, map[string]string{
		"/ws/main.lua": `---@import "./lib1.lua"
local U = {}
U.extra = 1`,
		"/ws/lib1.lua": libSource,
	})
	ctx := context.Background()
	u := findNode(t, w.file(t, mainURI), ast.Local, "U")

	all := w.session.Fields(ctx, u, 0, FieldOptions{})
	assert.ElementsMatch(t, []string{"extra", "greet"}, fieldNames(all))
	for _, f := range all {
		assert.Equal(t, f.Name == "greet", f.FromImport, f.Name)
	}

	defs := w.session.Fields(ctx, u, 0, FieldOptions{OnlyDefinitions: true})
	assert.Equal(t, []string{"extra"}, fieldNames(defs))
}

func TestFields_CancelledContext(t *testing.T) {
	w := newWorkspace(t, nil, map[string]string{"/ws/main.lua": "local t = { a = 1 }"})
	local := findNode(t, w.file(t, mainURI), ast.Local, "t")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, w.session.Fields(ctx, local, 0, FieldOptions{}))
	assert.Equal(t, []string{"a"}, fieldNames(w.session.Fields(context.Background(), local, 0, FieldOptions{})))
}

func TestImportedExports(t *testing.T) {
	tests := []struct {
		name   string
		main   string
		lib    string
		local  string
		want   []string
		wantOk bool
	}{
		{
			name:   "annotated local",
			main:   "---@import \"./lib1.lua\"\nlocal U = nil",
			lib:    libSource,
			local:  "U",
			want:   []string{"greet"},
			wantOk: true,
		},
		{
			name:   "dynamic load",
			main:   `local L = loadstring(readfile("./lib1.lua"))()`,
			lib:    libSource,
			local:  "L",
			want:   []string{"greet"},
			wantOk: true,
		},
		{
			name:   "returned table constructor",
			main:   "---@import \"./lib1\"\nlocal U = nil",
			lib:    `return { a = 1, b = function() end }`,
			local:  "U",
			want:   []string{"a", "b"},
			wantOk: true,
		},
		{
			name:  "not an import",
			main:  "local z = 1",
			lib:   libSource,
			local: "z",
		},
		{
			name:  "empty module",
			main:  "---@import \"./lib1.lua\"\nlocal U = nil",
			lib:   "return {}",
			local: "U",
		},
		{
			name:  "module without return",
			main:  "---@import \"./lib1.lua\"\nlocal U = nil",
			lib:   "X = 1",
			local: "U",
		},
		{
			name:  "unresolved path",
			main:  "---@import \"./missing.lua\"\nlocal U = nil",
			lib:   libSource,
			local: "U",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newWorkspace(t, nil, map[string]string{
				"/ws/main.lua": tt.main,
				"/ws/lib1.lua": tt.lib,
			})
			local := findNode(t, w.file(t, mainURI), ast.Local, tt.local)

			got, ok := w.session.ImportedExports(context.Background(), local)
			assert.Equal(t, tt.wantOk, ok)
			if !tt.wantOk {
				assert.Empty(t, got)
				return
			}
			assert.ElementsMatch(t, tt.want, fieldNames(got))
			for _, f := range got {
				assert.True(t, f.FromImport)
				assert.Equal(t, libURI, f.URI)
			}
		})
	}
}
