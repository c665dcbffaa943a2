package diagnostic_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/luals/pkg/config"
	"github.com/walteh/luals/pkg/diagnostic"
	"github.com/walteh/luals/pkg/engine"
	"github.com/walteh/luals/pkg/files"
)

type want struct {
	code     string
	message  string
	text     string
	severity diagnostic.Severity
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		globals []string
		text    string
		want    []want
	}{
		{
			name: "clean file",
			text: `local t = {}
print(t, math.floor(1))
Shared = 1
print(Shared)`,
			want: nil,
		},
		{
			name: "undefined global",
			text: `local x = 1
print(y)
print(y)`,
			want: []want{
				{code: diagnostic.CodeUndefinedGlobal, message: `undefined global "y"`, text: "y", severity: diagnostic.SeverityWarning},
				{code: diagnostic.CodeUndefinedGlobal, message: `undefined global "y"`, text: "y", severity: diagnostic.SeverityWarning},
			},
		},
		{
			name: "locals are not globals",
			text: `local y = 1
local function f(z) return y + z end`,
			want: nil,
		},
		{
			name:    "configured globals",
			globals: []string{"vim"},
			text:    `vim.cmd("x")`,
			want:    nil,
		},
		{
			name: "assigned later in the file",
			text: `print(Later)
Later = 1`,
			want: nil,
		},
		{
			name: "import alias and imported globals",
			text: `---@import "./lib1.lua" as Utils
Utils.greet(Exported)`,
			want: nil,
		},
		{
			name: "import with a trailing comment",
			text: `---@import "./lib1.lua" as Utils -- helpers
Utils.greet(Exported)`,
			want: nil,
		},
		{
			name: "invalid import path",
			text: `---@import "./missing.lua" as M
print(M)`,
			want: []want{
				{code: diagnostic.CodeInvalidImportPath, message: `cannot resolve import path "./missing.lua"`, text: `"./missing.lua"`, severity: diagnostic.SeverityWarning},
			},
		},
		{
			name: "traversal path",
			text: `---@import "../../etc/passwd"`,
			want: []want{
				{code: diagnostic.CodeInvalidImportPath, message: `cannot resolve import path "../../etc/passwd"`, text: `"../../etc/passwd"`, severity: diagnostic.SeverityWarning},
			},
		},
		{
			name: "empty import path",
			text: `---@import ""`,
			want: []want{
				{code: diagnostic.CodeInvalidImportPath, message: "import annotation has no path", severity: diagnostic.SeverityWarning},
			},
		},
		{
			name: "unresolved dynamic load",
			text: `local m = loadstring(readfile("./gone.lua"))()`,
			want: []want{
				{code: diagnostic.CodeInvalidImportPath, message: `cannot resolve loaded file "./gone.lua"`, text: `"./gone.lua"`, severity: diagnostic.SeverityWarning},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/ws/lib1.lua", []byte(`Exported = {}
local M = {}
function M.greet() end
return M`), 0o644))

			cfg := config.Default("/ws")
			cfg.Globals = tt.globals
			store := files.NewManager(fs)
			session := engine.New(store, cfg, engine.WithFs(fs))

			store.SetText(ctx, "file:///ws/main.lua", tt.text, true)
			file, ok := store.GetAST(ctx, "file:///ws/main.lua")
			require.True(t, ok)

			got := diagnostic.Check(ctx, session, file)
			require.Len(t, got, len(tt.want))
			for i, w := range tt.want {
				assert.Equal(t, w.code, got[i].Code)
				assert.Equal(t, w.severity, got[i].Severity)
				if w.message != "" {
					assert.Equal(t, w.message, got[i].Message)
				}
				if w.text != "" {
					assert.Equal(t, w.text, got[i].Location.Text)
				}
			}
		})
	}
}

func TestCheck_SyntaxErrors(t *testing.T) {
	ctx := context.Background()
	store := files.NewManager(afero.NewMemMapFs())
	session := engine.New(store, config.Default("/ws"))

	store.SetText(ctx, "file:///ws/main.lua", "local t = {}\nif t then\n", true)
	file, ok := store.GetAST(ctx, "file:///ws/main.lua")
	require.True(t, ok)

	got := diagnostic.Check(ctx, session, file)
	require.NotEmpty(t, got)
	for _, d := range got {
		assert.Equal(t, diagnostic.CodeSyntax, d.Code)
		assert.Equal(t, diagnostic.SeverityError, d.Severity)
	}
	assert.Contains(t, got[0].Message, "'end' expected")
}

func TestCheck_NilFile(t *testing.T) {
	store := files.NewManager(afero.NewMemMapFs())
	session := engine.New(store, config.Default(""))
	assert.Nil(t, diagnostic.Check(context.Background(), session, nil))
}

func TestSeverity_String(t *testing.T) {
	assert.Equal(t, "error", diagnostic.SeverityError.String())
	assert.Equal(t, "warning", diagnostic.SeverityWarning.String())
	assert.Equal(t, "info", diagnostic.SeverityInformation.String())
	assert.Equal(t, "hint", diagnostic.SeverityHint.String())
}
