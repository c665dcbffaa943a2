// Package config loads workspace settings from `.luarc.*` files.
package config

import (
	"path"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// DefaultSearchDepth bounds field tracking when no setting is present.
const DefaultSearchDepth = 5

// FileNames are the settings files looked for in the workspace root, in order.
var FileNames = []string{".luarc.json", ".luarc.yaml", ".luarc.yml", ".luarc.toml"}

// Config is the resolved workspace configuration.
type Config struct {
	// Globals are names declared to exist outside the analyzed sources.
	Globals []string
	// SearchDepth bounds assignment tracking in the field resolver.
	SearchDepth int
	// WorkspaceRoot is the slash-separated root directory; absolute imports
	// resolve against it.
	WorkspaceRoot string
	// AllowAbsoluteImports enables `/`-prefixed imports relative to the root.
	AllowAbsoluteImports bool
	// Ignore holds the glob patterns of workspace-relative paths to skip.
	Ignore []string
	// Source is the settings file the config was read from, if any.
	Source string

	ignore []glob.Glob
}

type settings struct {
	Diagnostics struct {
		Globals []string `yaml:"globals" toml:"globals"`
	} `yaml:"diagnostics" toml:"diagnostics"`
	Runtime struct {
		SearchDepth int `yaml:"searchDepth" toml:"searchDepth"`
	} `yaml:"runtime" toml:"runtime"`
	Workspace struct {
		Ignore               []string `yaml:"ignore" toml:"ignore"`
		AllowAbsoluteImports *bool    `yaml:"allowAbsoluteImports" toml:"allowAbsoluteImports"`
	} `yaml:"workspace" toml:"workspace"`
}

// flatSettings is the dotted-key form common in `.luarc.json` files.
type flatSettings struct {
	Globals              []string `yaml:"diagnostics.globals"`
	SearchDepth          int      `yaml:"runtime.searchDepth"`
	Ignore               []string `yaml:"workspace.ignore"`
	AllowAbsoluteImports *bool    `yaml:"workspace.allowAbsoluteImports"`
}

// Default returns the configuration used when no settings file exists.
func Default(root string) *Config {
	cfg := &Config{
		SearchDepth:          DefaultSearchDepth,
		WorkspaceRoot:        root,
		AllowAbsoluteImports: root != "",
	}
	return cfg
}

// Load reads the first settings file found in root. A missing file yields the
// defaults; a malformed one is an error.
func Load(fs afero.Fs, root string) (*Config, error) {
	for _, name := range FileNames {
		p := path.Join(root, name)
		data, err := afero.ReadFile(fs, p)
		if err != nil {
			continue
		}
		cfg, err := Parse(name, data, root)
		if err != nil {
			return nil, errors.Errorf("loading %s: %w", p, err)
		}
		cfg.Source = p
		return cfg, nil
	}
	return Default(root), nil
}

// Parse decodes settings data; the format is chosen by the file name.
func Parse(name string, data []byte, root string) (*Config, error) {
	var s settings
	var flat flatSettings

	switch path.Ext(name) {
	case ".toml":
		if _, err := toml.Decode(string(data), &s); err != nil {
			return nil, errors.Errorf("decoding toml: %w", err)
		}
	default:
		// JSON is valid YAML, so one decoder covers both.
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, errors.Errorf("decoding settings: %w", err)
		}
		if err := yaml.Unmarshal(data, &flat); err != nil {
			return nil, errors.Errorf("decoding settings: %w", err)
		}
	}

	cfg := Default(root)
	cfg.Globals = dedupe(append(s.Diagnostics.Globals, flat.Globals...))
	if s.Runtime.SearchDepth > 0 {
		cfg.SearchDepth = s.Runtime.SearchDepth
	}
	if flat.SearchDepth > 0 {
		cfg.SearchDepth = flat.SearchDepth
	}
	if s.Workspace.AllowAbsoluteImports != nil {
		cfg.AllowAbsoluteImports = *s.Workspace.AllowAbsoluteImports
	}
	if flat.AllowAbsoluteImports != nil {
		cfg.AllowAbsoluteImports = *flat.AllowAbsoluteImports
	}
	if err := cfg.SetIgnore(append(s.Workspace.Ignore, flat.Ignore...)); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetIgnore compiles the ignore patterns.
func (me *Config) SetIgnore(patterns []string) error {
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return errors.Errorf("compiling ignore pattern %q: %w", p, err)
		}
		compiled = append(compiled, g)
	}
	me.Ignore = patterns
	me.ignore = compiled
	return nil
}

// Ignored reports whether a workspace-relative path matches an ignore pattern.
func (me *Config) Ignored(rel string) bool {
	for _, g := range me.ignore {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// WithGlobals returns a copy whose globals are replaced by names.
func (me *Config) WithGlobals(names []string) *Config {
	cp := *me
	cp.Globals = dedupe(names)
	return &cp
}

// HasGlobal reports whether name is a configured global.
func (me *Config) HasGlobal(name string) bool {
	for _, g := range me.Globals {
		if g == name {
			return true
		}
	}
	return false
}

func dedupe(names []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
