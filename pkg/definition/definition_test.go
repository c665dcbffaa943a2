package definition_test

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/luals/pkg/config"
	"github.com/walteh/luals/pkg/definition"
	"github.com/walteh/luals/pkg/engine"
	"github.com/walteh/luals/pkg/files"
)

const (
	mainURI = "file:///ws/main.lua"
	libURI  = "file:///ws/lib1.lua"
)

type target struct {
	uri  string
	text string
}

func TestFind(t *testing.T) {
	tests := []struct {
		name string
		// the cursor sits at the `|`
		text string
		want []target
	}{
		{
			name: "local read",
			text: "local count = 1\nprint(co|unt)",
			want: []target{{uri: mainURI, text: "local count = 1"}},
		},
		{
			name: "parameter",
			text: "local function f(arg)\n\treturn a|rg\nend",
			want: []target{{uri: mainURI, text: "arg"}},
		},
		{
			name: "global in this file",
			text: "Counter = 1\nprint(Count|er)",
			want: []target{{uri: mainURI, text: "Counter = 1"}},
		},
		{
			name: "global in imported file",
			text: "---@import \"./lib1.lua\"\nprint(Sha|red)",
			want: []target{{uri: libURI, text: "Shared = {}"}},
		},
		{
			name: "import alias",
			text: "---@import \"./lib1.lua\" as Utils\nUt|ils.greet()",
			want: []target{{uri: libURI}},
		},
		{
			name: "import path",
			text: "---@import \"./li|b1.lua\" as Utils",
			want: []target{{uri: libURI}},
		},
		{
			name: "dynamic load path",
			text: "local m = loadstring(readfile(\"./li|b1.lua\"))()",
			want: []target{{uri: libURI}},
		},
		{
			name: "imported member",
			text: "---@import \"./lib1.lua\" as Utils\nUtils.gr|eet()",
			want: []target{{uri: libURI, text: "greet"}},
		},
		{
			name: "local member",
			text: "local t = {}\nt.value = 1\nprint(t.val|ue)",
			want: []target{{uri: mainURI, text: "value"}},
		},
		{
			name: "runtime global has no source",
			text: "pri|nt(1)",
			want: nil,
		},
		{
			name: "unresolved import path",
			text: "---@import \"./mis|sing.lua\"",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/ws/lib1.lua", []byte(`Shared = {}
local GG = {}
function GG.greet() end
return GG`), 0o644))
			store := files.NewManager(fs)
			session := engine.New(store, config.Default("/ws"), engine.WithFs(fs))

			offset := strings.Index(tt.text, "|")
			require.GreaterOrEqual(t, offset, 0)
			store.SetText(ctx, mainURI, strings.Replace(tt.text, "|", "", 1), true)
			file, ok := store.GetAST(ctx, mainURI)
			require.True(t, ok)

			got := definition.Find(ctx, session, file, offset)
			require.Len(t, got, len(tt.want))
			for i, w := range tt.want {
				assert.Equal(t, w.uri, got[i].URI)
				if w.text != "" {
					assert.Equal(t, w.text, got[i].Position.Text)
				} else {
					assert.Equal(t, 0, got[i].Position.Offset)
				}
			}
		})
	}
}
