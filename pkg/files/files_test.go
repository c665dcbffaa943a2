package files_test

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/luals/pkg/files"
	"github.com/walteh/luals/pkg/uri"
)

func newManager(t *testing.T, disk map[string]string) *files.Manager {
	t.Helper()
	fs := afero.NewMemMapFs()
	for p, text := range disk {
		require.NoError(t, afero.WriteFile(fs, p, []byte(text), 0o644))
	}
	return files.NewManager(fs)
}

func TestManager_Exists(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, map[string]string{"/work/lib.lua": "return {}"})

	assert.True(t, m.Exists("file:///work/lib.lua"))
	assert.False(t, m.Exists("file:///work/missing.lua"))
	assert.False(t, m.Exists("file:///work"), "directories are not documents")

	m.SetText(ctx, "file:///work/unsaved.lua", "x = 1", true)
	assert.True(t, m.Exists("file:///work/unsaved.lua"))
}

func TestManager_GetASTFallsBackToDisk(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, map[string]string{"/work/lib.lua": "GG = 1"})

	file, ok := m.GetAST(ctx, "file:///work/lib.lua")
	require.True(t, ok)
	require.Len(t, file.Root.Body, 1)
	assert.Equal(t, "GG", file.Root.Body[0].Name)

	again, ok := m.GetAST(ctx, "file:///work/./lib.lua")
	require.True(t, ok)
	assert.Same(t, file, again, "parsed once and shared")

	_, ok = m.GetAST(ctx, "file:///work/none.lua")
	assert.False(t, ok)
}

func TestManager_SetTextReplacesAndNotifies(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, nil)

	var changed []string
	m.Subscribe(func(u string) { changed = append(changed, u) })

	m.SetText(ctx, "file:///a.lua", "A = 1", true)
	first, ok := m.GetAST(ctx, "file:///a.lua")
	require.True(t, ok)

	m.SetText(ctx, "file:///a.lua", "B = 1", true)
	second, ok := m.GetAST(ctx, "file:///a.lua")
	require.True(t, ok)

	assert.NotSame(t, first, second)
	assert.Equal(t, "B", second.Root.Body[0].Name)
	assert.Equal(t, []string{"file:///a.lua", "file:///a.lua"}, changed)
	assert.True(t, m.Open("file:///a.lua"))
}

func TestManager_CloseRereadsDisk(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, map[string]string{"/a.lua": "Disk = 1"})

	m.SetText(ctx, "file:///a.lua", "Buffer = 1", true)
	m.Close(ctx, "file:///a.lua")

	file, ok := m.GetAST(ctx, "file:///a.lua")
	require.True(t, ok)
	assert.Equal(t, "Disk", file.Root.Body[0].Name)
	assert.False(t, m.Open("file:///a.lua"))
}

func TestDiscover(t *testing.T) {
	m := newManager(t, map[string]string{
		"/ws/main.lua":         "",
		"/ws/lib/util.luau":    "",
		"/ws/lib/readme.md":    "",
		"/ws/vendor/skip.lua":  "",
		"/ws/tests/a.spec.lua": "",
		"/other/outside.lua":   "",
	})

	paths, err := files.Discover(m.Fs(), "/ws", func(rel string) bool { return rel == "vendor" })
	require.NoError(t, err)
	assert.Equal(t, []string{"/ws/lib/util.luau", "/ws/main.lua", "/ws/tests/a.spec.lua"}, paths)
}

func TestManager_Preload(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, map[string]string{
		"/ws/a.lua": "A = 1",
		"/ws/b.lua": "B = 1",
	})
	m.SetText(ctx, uri.Encode("/ws/a.lua"), "Edited = 1", true)

	n, err := m.Preload(ctx, "/ws", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "open buffers are not overwritten")

	file, ok := m.GetAST(ctx, "file:///ws/a.lua")
	require.True(t, ok)
	assert.Equal(t, "Edited", file.Root.Body[0].Name)
	assert.ElementsMatch(t, []string{"file:///ws/a.lua", "file:///ws/b.lua"}, m.URIs())
}
