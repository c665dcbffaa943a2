// Package engine resolves what identifiers refer to and what fields values
// have. All caches live on a Session, which is safe for concurrent use and is
// invalidated through the file store's change notifications.
package engine

import (
	"context"
	"runtime"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"

	"github.com/walteh/luals/pkg/ast"
	"github.com/walteh/luals/pkg/builtins"
	"github.com/walteh/luals/pkg/config"
	"github.com/walteh/luals/pkg/files"
	"github.com/walteh/luals/pkg/uri"
)

// ImportCacheSize is the capacity of the cross-file resolution cache.
const ImportCacheSize = 100

// aliasEntry is the processed alias index of one file.
type aliasEntry struct {
	file  *ast.File
	docs  map[string]*ast.Doc
	nodes []*ast.Node
}

type ownEntry struct {
	file *ast.File
	all  []*ast.Node
	sets []*ast.Node
}

type fieldKey struct {
	node *ast.Node
	opts FieldOptions
}

type fieldEntry struct {
	depth  int
	fields []*Field
}

// Session holds the resolver state for one analysis session.
type Session struct {
	store  files.Store
	fs     afero.Fs
	tables *builtins.Tables

	cfgMu sync.RWMutex
	cfg   *config.Config

	envMu      sync.Mutex
	env        map[string]*ast.Node
	contextual map[string]map[string]*ast.Node
	configured map[string]*ast.Node
	tests      map[string]*ast.Node
	members    map[string]*ast.Node

	aliasMu sync.Mutex
	aliases map[string]*aliasEntry

	ownMu sync.Mutex
	own   map[string]*ownEntry

	imports *lru.Cache[string, []*ast.Node]

	fieldMu    sync.Mutex
	fields     map[fieldKey]*fieldEntry
	fieldEpoch uint64

	genMu      sync.Mutex
	generation map[string]uint64
}

// Option configures a Session.
type Option func(*Session)

// WithFs lets the session read import targets the store does not know yet.
func WithFs(fs afero.Fs) Option {
	return func(s *Session) { s.fs = fs }
}

// WithTables replaces the builtin global tables.
func WithTables(t *builtins.Tables) Option {
	return func(s *Session) { s.tables = t }
}

// New creates a session over store and subscribes it to the store's change
// notifications.
func New(store files.Store, cfg *config.Config, opts ...Option) *Session {
	if cfg == nil {
		cfg = config.Default("")
	}
	imports, err := lru.New[string, []*ast.Node](ImportCacheSize)
	if err != nil {
		// only returned for a non-positive size
		panic(err)
	}
	s := &Session{
		store:      store,
		tables:     builtins.Default(),
		cfg:        cfg,
		env:        map[string]*ast.Node{},
		contextual: map[string]map[string]*ast.Node{},
		configured: map[string]*ast.Node{},
		tests:      map[string]*ast.Node{},
		members:    map[string]*ast.Node{},
		aliases:    map[string]*aliasEntry{},
		own:        map[string]*ownEntry{},
		imports:    imports,
		fields:     map[fieldKey]*fieldEntry{},
		generation: map[string]uint64{},
	}
	for _, opt := range opts {
		opt(s)
	}
	store.Subscribe(s.Invalidate)
	return s
}

// Store returns the file collaborator.
func (s *Session) Store() files.Store {
	return s.store
}

// Tables returns the builtin global tables.
func (s *Session) Tables() *builtins.Tables {
	return s.tables
}

// Config returns the current configuration.
func (s *Session) Config() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// SetConfig replaces the configuration. Configured globals are rebuilt on
// next use and every field result is dropped.
func (s *Session) SetConfig(cfg *config.Config) {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()

	s.envMu.Lock()
	s.configured = map[string]*ast.Node{}
	s.envMu.Unlock()

	s.dropFields()
}

func (s *Session) searchDepth() int {
	if d := s.Config().SearchDepth; d > 0 {
		return d
	}
	return config.DefaultSearchDepth
}

// Invalidate forgets everything cached about u. Computations that started
// before the call will not publish their results.
func (s *Session) Invalidate(u string) {
	u = uri.Canonical(u)

	s.genMu.Lock()
	s.generation[u]++
	s.genMu.Unlock()

	s.aliasMu.Lock()
	delete(s.aliases, u)
	s.aliasMu.Unlock()

	s.ownMu.Lock()
	delete(s.own, u)
	s.ownMu.Unlock()

	s.envMu.Lock()
	delete(s.contextual, u)
	s.envMu.Unlock()

	s.imports.Remove(u)

	// field results of any file may include exports of u
	s.dropFields()
}

func (s *Session) dropFields() {
	s.fieldMu.Lock()
	s.fields = map[fieldKey]*fieldEntry{}
	s.fieldEpoch++
	s.fieldMu.Unlock()
}

func (s *Session) gen(u string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generation[u]
}

// Yield marks a point where a long resolution may give way to other work. It
// returns the context error once the request is cancelled.
func Yield(ctx context.Context) error {
	runtime.Gosched()
	return ctx.Err()
}
