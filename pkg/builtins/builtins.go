// Package builtins holds the static tables of runtime-provided globals.
package builtins

import (
	_ "embed"
	"sync"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

//go:embed globals.yaml
var globalsYAML []byte

// Global describes a name provided by the runtime.
type Global struct {
	Name   string   `yaml:"name"`
	Kind   string   `yaml:"kind"`
	Doc    string   `yaml:"doc"`
	Fields []string `yaml:"fields"`
}

// Tables groups the globals by how they become visible.
type Tables struct {
	// Environment globals are visible in every file.
	Environment []*Global `yaml:"environment"`
	// Context globals are visible in every file, with a value specific to it.
	Context []*Global `yaml:"context"`
	// Test globals are visible in test spec files only.
	Test []*Global `yaml:"test"`

	byName map[string]*Global
}

// Parse decodes tables from YAML.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.Errorf("decoding builtin tables: %w", err)
	}
	t.byName = map[string]*Global{}
	for _, group := range [][]*Global{t.Environment, t.Context, t.Test} {
		for _, g := range group {
			if g.Name == "" {
				return nil, errors.New("builtin global without a name")
			}
			t.byName[g.Name] = g
		}
	}
	return &t, nil
}

var (
	defaultOnce   sync.Once
	defaultTables *Tables
)

// Default returns the embedded tables.
func Default() *Tables {
	defaultOnce.Do(func() {
		t, err := Parse(globalsYAML)
		if err != nil {
			panic(err)
		}
		defaultTables = t
	})
	return defaultTables
}

// Lookup finds a global in any table.
func (t *Tables) Lookup(name string) (*Global, bool) {
	g, ok := t.byName[name]
	return g, ok
}

// IsContext reports whether name is a per-file global.
func (t *Tables) IsContext(name string) bool {
	for _, g := range t.Context {
		if g.Name == name {
			return true
		}
	}
	return false
}
