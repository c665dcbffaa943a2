package parser_test

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
	file, err := parser.Parse(context.Background(), "file:///test.lua", text)
	require.NoError(t, err)
	require.NotNil(t, file.Root)
	return file
}

func kinds(nodes []*ast.Node) []ast.Kind {
	out := make([]ast.Kind, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Kind)
	}
	return out
}

func TestParse_Statements(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []ast.Kind
	}{
		{
			name: "local and global",
			text: "local a = 1\nb = a",
			want: []ast.Kind{ast.Local, ast.SetGlobal},
		},
		{
			name: "multiple locals",
			text: "local a, b = 1, 2",
			want: []ast.Kind{ast.Local, ast.Local},
		},
		{
			name: "function declarations",
			text: "function f() end\nlocal function g() end\nfunction t.a.b() end\nfunction t:m() end",
			want: []ast.Kind{ast.SetGlobal, ast.Local, ast.SetField, ast.SetMethod},
		},
		{
			name: "control flow",
			text: "if a then elseif b then else end\nwhile a do end\nrepeat until a\nfor i = 1, 10 do end\nfor k, v in pairs(t) do end\ndo end",
			want: []ast.Kind{ast.If, ast.While, ast.Repeat, ast.NumericFor, ast.GenericFor, ast.Do},
		},
		{
			name: "goto and labels",
			text: "::top:: goto top",
			want: []ast.Kind{ast.Label, ast.Goto},
		},
		{
			name: "calls",
			text: "print('x')\nobj:method{1}\nrequire 'mod'",
			want: []ast.Kind{ast.Call, ast.Call, ast.Call},
		},
		{
			name: "luau compound assignment and continue",
			text: "local n = 0\nfor i = 1, 3 do n += i continue end",
			want: []ast.Kind{ast.Local, ast.NumericFor},
		},
		{
			name: "luau type aliases",
			text: "type Point = { x: number, y: number }\nexport type Map<K, V> = { [K]: V }\nlocal p: Point = { x = 1, y = 2 }",
			want: []ast.Kind{ast.TypeAlias, ast.TypeAlias, ast.Local},
		},
		{
			name: "return",
			text: "local M = {}\nreturn M",
			want: []ast.Kind{ast.Local, ast.Return},
		},
		{
			name: "semicolons",
			text: "a = 1; b = 2;",
			want: []ast.Kind{ast.SetGlobal, ast.SetGlobal},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := parse(t, tt.text)
			assert.Empty(t, file.Errors)
			assert.Equal(t, tt.want, kinds(file.Root.Body))
		})
	}
}

func TestParse_BindsLocals(t *testing.T) {
	file := parse(t, "local x = 1\nprint(x, y)\nx = 2")

	local := file.Root.Body[0]
	require.Equal(t, ast.Local, local.Kind)

	call := file.Root.Body[1]
	require.Equal(t, ast.Call, call.Kind)
	require.Len(t, call.Args, 2)

	assert.Equal(t, ast.GetGlobal, call.Node.Kind)
	assert.Equal(t, "print", call.Node.Name)
	assert.Equal(t, ast.GetLocal, call.Args[0].Kind)
	assert.Same(t, local, call.Args[0].Ref)
	assert.Equal(t, ast.GetGlobal, call.Args[1].Kind)

	set := file.Root.Body[2]
	assert.Equal(t, ast.SetLocal, set.Kind)
	assert.Same(t, local, set.Ref)
	assert.Len(t, local.Refs, 2)
}

func TestParse_LocalInitializerSeesOuterScope(t *testing.T) {
	file := parse(t, "local x = x")
	local := file.Root.Body[0]
	assert.Equal(t, ast.GetGlobal, local.Value.Kind)
}

func TestParse_LocalFunctionIsRecursive(t *testing.T) {
	file := parse(t, "local function f() return f() end")
	local := file.Root.Body[0]
	calls := ast.Collect(local.Value, ast.Call)
	require.Len(t, calls, 1)
	assert.Equal(t, ast.GetLocal, calls[0].Node.Kind)
	assert.Same(t, local, calls[0].Node.Ref)
}

func TestParse_RepeatConditionSeesBody(t *testing.T) {
	file := parse(t, "repeat local done = true until done")
	rep := file.Root.Body[0]
	require.Equal(t, ast.Repeat, rep.Kind)
	assert.Equal(t, ast.GetLocal, rep.Value.Kind)
}

func TestParse_MethodHasSelf(t *testing.T) {
	file := parse(t, "local C = {}\nfunction C:get() return self.v end")
	set := file.Root.Body[1]
	require.Equal(t, ast.SetMethod, set.Kind)
	assert.Equal(t, "get", set.Name)
	fn := set.Value
	require.Equal(t, ast.Function, fn.Kind)
	require.True(t, fn.Method)
	require.NotEmpty(t, fn.Params)
	assert.Equal(t, "self", fn.Params[0].Name)

	field := ast.Find(fn, func(n *ast.Node) bool { return n.Kind == ast.GetField })
	require.NotNil(t, field)
	assert.Equal(t, ast.GetLocal, field.Node.Kind)
	assert.Same(t, fn.Params[0], field.Node.Ref)
}

func TestParse_Precedence(t *testing.T) {
	file := parse(t, "x = 1 + 2 * 3 .. 'a' .. 'b'")
	value := file.Root.Body[0].Value
	require.Equal(t, ast.Binary, value.Kind)
	assert.Equal(t, "..", value.Op)
	assert.Equal(t, "+", value.Exprs[0].Op)
	assert.Equal(t, "*", value.Exprs[0].Exprs[1].Op)
	// concatenation is right associative
	assert.Equal(t, "..", value.Exprs[1].Op)

	file = parse(t, "x = -2 ^ 2")
	value = file.Root.Body[0].Value
	require.Equal(t, ast.Unary, value.Kind)
	assert.Equal(t, "^", value.Value.Op)
}

func TestParse_Tables(t *testing.T) {
	file := parse(t, "t = { a = 1, [2] = 'b'; 3, f = function() end }")
	table := file.Root.Body[0].Value
	require.Equal(t, ast.Table, table.Kind)
	assert.Equal(t, []ast.Kind{ast.TableField, ast.TableIndex, ast.TableValue, ast.TableField}, kinds(table.Exprs))
	assert.Equal(t, "a", table.Exprs[0].Name)
	assert.Equal(t, ast.Function, table.Exprs[3].Value.Kind)
}

func TestParse_Strings(t *testing.T) {
	file := parse(t, `a = "x\ty"; b = [[
long]]; c = 'q'`)
	assert.Equal(t, "x\ty", file.Root.Body[0].Value.Literal)
	assert.Equal(t, "long", file.Root.Body[1].Value.Literal)
	assert.Equal(t, "q", file.Root.Body[2].Value.Literal)
}

func TestParse_LuauSyntax(t *testing.T) {
	text := `local function map<T, U>(list: {T}, fn: (T) -> U): {U}
	local out: {U} = {}
	for i: number, v in list do
		out[i] = fn(v)
	end
	return out
end
local n = (x :: number) + 1
local s = if n > 1 then "big" else "small"
local greeting = ` + "`hello {n}`" + `
@native
function fast(...: number): ...number return ... end`

	file := parse(t, text)
	assert.Empty(t, file.Errors)
	assert.Equal(t, []ast.Kind{ast.Local, ast.Local, ast.Local, ast.Local, ast.SetGlobal}, kinds(file.Root.Body))
	assert.Equal(t, ast.IfExpr, file.Root.Body[2].Value.Kind)
}

func TestParse_Attributes(t *testing.T) {
	file := parse(t, "local x <const> = 5")
	require.Len(t, file.Root.Body, 1)
	assert.Equal(t, "const", file.Root.Body[0].Attrib)
}

func TestParse_ExtraValuesAreKept(t *testing.T) {
	file := parse(t, "local a = 1, undefinedCall()")
	local := file.Root.Body[0]
	require.Len(t, local.Exprs, 1)
	assert.Equal(t, ast.Call, local.Exprs[0].Kind)
	globals := ast.Collect(file.Root, ast.GetGlobal)
	require.Len(t, globals, 1)
	assert.Equal(t, "undefinedCall", globals[0].Name)
}

func TestParse_ErrorRecovery(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantErrors int
		wantGlobal string
	}{
		{
			name:       "garbage line then valid statement",
			text:       "local = 5\nprint(ok)",
			wantErrors: 1,
			wantGlobal: "ok",
		},
		{
			name:       "missing end",
			text:       "function f()\nprint(ok)",
			wantErrors: 1,
			wantGlobal: "ok",
		},
		{
			name:       "two broken lines",
			text:       "x = = 1\ny = )\nprint(ok)",
			wantErrors: 2,
			wantGlobal: "ok",
		},
		{
			name:       "expression statement that is not a call",
			text:       "a.b\nprint(ok)",
			wantErrors: 1,
			wantGlobal: "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file := parse(t, tt.text)
			assert.Len(t, file.Errors, tt.wantErrors)
			found := ast.Find(file.Root, func(n *ast.Node) bool {
				return n.Kind == ast.GetGlobal && n.Name == tt.wantGlobal
			})
			assert.NotNil(t, found, "parsing should continue after the error")
		})
	}
}

func TestParse_MissingEndMessage(t *testing.T) {
	file := parse(t, "if a then\nprint(1)\n")
	require.Len(t, file.Errors, 1)
	assert.Contains(t, file.Errors[0].Expected, "'end' expected (to close 'if' at line 1)")
}

func TestParse_DeepNestingDoesNotOverflow(t *testing.T) {
	text := "x = "
	for i := 0; i < 500; i++ {
		text += "("
	}
	text += "1"
	for i := 0; i < 500; i++ {
		text += ")"
	}
	file := parse(t, text)
	assert.NotEmpty(t, file.Errors)
}

func TestParse_ParentsAndSpans(t *testing.T) {
	text := "local t = {}\nfunction t.greet(n) return n end"
	file := parse(t, text)

	set := file.Root.Body[1]
	assert.Same(t, file.Root, set.Parent)
	assert.Same(t, set, set.Value.Parent)
	assert.Same(t, file, set.File)
	assert.Equal(t, "greet", text[set.NameStart:set.NameFinish()])
	assert.Equal(t, text[13:], text[set.Start:set.Finish])

	ret := ast.Returns(file.Root)
	assert.Empty(t, ret, "returns inside functions are not top level")
}

func TestParse_Shebang(t *testing.T) {
	file := parse(t, "#!/usr/bin/lua\nprint(1)")
	assert.Empty(t, file.Errors)
	require.Len(t, file.Root.Body, 1)
	assert.Equal(t, 15, file.Root.Body[0].Start)
}

func TestParse_Docs(t *testing.T) {
	file := parse(t, "---@import \"./lib.lua\" as Lib\nLib.run()")
	require.Len(t, file.Docs, 1)
	assert.Equal(t, "./lib.lua", file.Docs[0].Path)
	assert.Same(t, file.Root.Body[0], file.Docs[0].Owner)
}
