package lsp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/walteh/luals/pkg/lsp/protocol"
)

func TestReplaceContentFromRange(t *testing.T) {
	pos := func(line, char uint32) protocol.Position {
		return protocol.Position{Line: line, Character: char}
	}
	tests := []struct {
		name    string
		content string
		rng     protocol.Range
		text    string
		want    string
	}{
		{"insert", "local x = 1", protocol.Range{Start: pos(0, 10), End: pos(0, 10)}, "1", "local x = 11"},
		{"insert before", "local x = 1", protocol.Range{Start: pos(0, 9), End: pos(0, 9)}, "1", "local x =1 1"},
		{"replace across lines", "a = 1\nb = 2\nc = 3", protocol.Range{Start: pos(0, 4), End: pos(2, 1)}, "9\nd", "a = 9\nd = 3"},
		{"utf16 columns", "s = 'é😀'\nx", protocol.Range{Start: pos(0, 6), End: pos(0, 8)}, "", "s = 'é'\nx"},
		{"past end of line clamps", "ab\ncd", protocol.Range{Start: pos(0, 10), End: pos(1, 0)}, "", "abcd"},
		{"reversed range", "abc", protocol.Range{Start: pos(0, 2), End: pos(0, 1)}, "X", "aXc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, replaceContentFromRange(context.Background(), tt.content, &tt.rng, tt.text))
		})
	}
}

func TestEditorSettings(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"own section", `{"luals":{"runtime":{"searchDepth":3}}}`, `{"runtime":{"searchDepth":3}}`},
		{"lua section", `{"Lua":{"diagnostics":{"globals":["A"]}}}`, `{"diagnostics":{"globals":["A"]}}`},
		{"flat", `{"diagnostics.globals":["A"]}`, `{"diagnostics.globals":["A"]}`},
		{"not an object", `[1]`, `[1]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, string(editorSettings(json.RawMessage(tt.raw))))
		})
	}
}

func TestWorkspaceRoot(t *testing.T) {
	assert.Equal(t, "/ws", workspaceRoot(&protocol.InitializeParams{RootURI: "file:///ws/", RootPath: "/other"}))
	assert.Equal(t, "/other", workspaceRoot(&protocol.InitializeParams{RootPath: "/other"}))
	assert.Equal(t, "/folder", workspaceRoot(&protocol.InitializeParams{
		WorkspaceFolders: []protocol.WorkspaceFolder{{URI: "file:///folder", Name: "folder"}},
	}))
	assert.Equal(t, "", workspaceRoot(&protocol.InitializeParams{}))
}

func TestIsSource(t *testing.T) {
	assert.True(t, isSource("/ws/a.lua"))
	assert.True(t, isSource("/ws/a.luau"))
	assert.False(t, isSource("/ws/.luarc.json"))
}
