package docs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/parser"
)

func parse(t *testing.T, text string) *ast.File {
	t.Helper()
	file, err := parser.Parse(context.Background(), "file:///docs.lua", text)
	require.NoError(t, err)
	return file
}

func TestParse_Import(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantPath  string
		wantAlias string
		wantSpan  string
	}{
		{
			name:      "double quoted with alias",
			text:      `---@import "./lib1.lua" as Utils`,
			wantPath:  "./lib1.lua",
			wantAlias: "Utils",
			wantSpan:  `"./lib1.lua"`,
		},
		{
			name:      "single quoted without alias",
			text:      `---@import './lib1'`,
			wantPath:  "./lib1",
			wantAlias: "",
			wantSpan:  `'./lib1'`,
		},
		{
			name:      "path whitespace is trimmed",
			text:      `--- @import "  ./padded.lua  " as P`,
			wantPath:  "./padded.lua",
			wantAlias: "P",
			wantSpan:  `"  ./padded.lua  "`,
		},
		{
			name:      "trailing comment after alias",
			text:      `---@import "./lib1.lua" as Utils -- helpers`,
			wantPath:  "./lib1.lua",
			wantAlias: "Utils",
			wantSpan:  `"./lib1.lua"`,
		},
		{
			name:      "trailing text without alias",
			text:      `---@import "./lib1.lua" -- shared state, see below`,
			wantPath:  "./lib1.lua",
			wantAlias: "",
			wantSpan:  `"./lib1.lua"`,
		},
		{
			name:     "missing path",
			text:     `---@import`,
			wantPath: "",
		},
		{
			name:     "empty path",
			text:     `---@import "" as E`,
			wantPath: "",
		},
		{
			name:     "unterminated path",
			text:     `---@import "./broken.lua as B`,
			wantPath: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := tt.text + "\nlocal x = 1"
			file := parse(t, text)
			require.Len(t, file.Docs, 1)

			doc := file.Docs[0]
			assert.Equal(t, ast.DocImport, doc.Kind)
			assert.Equal(t, tt.wantPath, doc.Path)
			if tt.wantSpan != "" {
				assert.Equal(t, tt.wantAlias, doc.Alias)
				assert.Equal(t, tt.wantSpan, text[doc.PathStart:doc.PathFinish])
			}
			assert.Equal(t, 0, doc.Start)
			assert.Equal(t, len(tt.text), doc.Finish)
			assert.Same(t, file.Root.Body[0], doc.Owner)
		})
	}
}

func TestParse_OtherTags(t *testing.T) {
	text := `---@class Point
---@field x number
---@param n string
---@return boolean
---@type Point
---@alias Id string
---@cast v Point
---@deprecated
local x = 1`

	file := parse(t, text)
	want := []struct {
		kind ast.DocKind
		name string
		typ  string
	}{
		{ast.DocClass, "Point", ""},
		{ast.DocField, "x", "number"},
		{ast.DocParam, "n", "string"},
		{ast.DocReturn, "", "boolean"},
		{ast.DocType, "", "Point"},
		{ast.DocAlias, "Id", "string"},
		{ast.DocCast, "v", "Point"},
		{ast.DocUnknown, "deprecated", ""},
	}
	require.Len(t, file.Docs, len(want))
	for i, w := range want {
		assert.Equal(t, w.kind, file.Docs[i].Kind, "doc %d", i)
		assert.Equal(t, w.name, file.Docs[i].Name, "doc %d", i)
		assert.Equal(t, w.typ, file.Docs[i].Type, "doc %d", i)
	}
}

func TestParse_IgnoresPlainComments(t *testing.T) {
	file := parse(t, "-- @import \"x\"\n--[[ ---@import \"y\" ]]\n--- just prose\nlocal x = 1")
	assert.Empty(t, file.Docs)
}

func TestParse_Binding(t *testing.T) {
	text := `local a = 1
local function f()
	---@type number
	local inner = 2
	---@import "./trailing.lua"
end
---@import "./eof.lua"`

	file := parse(t, text)
	require.Len(t, file.Docs, 3)

	fnLocal := file.Root.Body[1]
	fn := fnLocal.Value
	require.Equal(t, ast.Function, fn.Kind)

	assert.Same(t, fn.Body[0], file.Docs[0].Owner, "binds to the following statement")
	assert.Same(t, fn, file.Docs[1].Owner, "binds to the enclosing block when nothing follows")
	assert.Same(t, file.Root, file.Docs[2].Owner)
}
