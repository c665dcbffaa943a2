package files

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/luals/pkg/uri"
)

// SourcePattern matches Lua and Luau sources relative to a workspace root.
const SourcePattern = "**/*.{lua,luau}"

// Discover lists the source files under root whose root-relative path matches
// SourcePattern and is not rejected by skip. Paths are returned sorted.
func Discover(fs afero.Fs, root string, skip func(rel string) bool) ([]string, error) {
	root = uri.Normalize(root)
	var out []string
	err := afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path.Clean(p), root), "/")
		if info.IsDir() {
			if rel != "" && skip != nil && skip(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		ok, err := doublestar.Match(SourcePattern, rel)
		if err != nil {
			return errors.Errorf("matching %s: %w", rel, err)
		}
		if ok && (skip == nil || !skip(rel)) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}

// Preload registers every discovered source under root as a closed document
// so cross-file lookups can find files the editor never opened. Read failures
// are aggregated; the files that could be read are still loaded.
func (m *Manager) Preload(ctx context.Context, root string, skip func(rel string) bool) (int, error) {
	paths, err := Discover(m.fs, root, skip)
	if err != nil {
		return 0, err
	}

	var result *multierror.Error
	loaded := 0
	for _, p := range paths {
		u := uri.Encode(p)
		if m.Open(u) {
			continue
		}
		data, err := afero.ReadFile(m.fs, p)
		if err != nil {
			result = multierror.Append(result, errors.Errorf("reading %s: %w", p, err))
			continue
		}
		m.SetText(ctx, u, string(data), false)
		loaded++
	}

	zerolog.Ctx(ctx).Debug().Str("root", root).Int("files", loaded).Msg("preloaded workspace")

	return loaded, result.ErrorOrNil()
}
